package main

import (
	"context"
	"log"

	"github.com/commercekit/settlement/internal/app/api"
)

func main() {
	if err := api.Run(context.Background()); err != nil {
		log.Fatalf("settlement API failed: %v", err)
	}
}
