package migrations

import (
	"gorm.io/gorm"

	ledgerpostgres "github.com/commercekit/settlement/internal/domains/ledger/adapters/persistence/postgres"
	orderspostgres "github.com/commercekit/settlement/internal/domains/orders/adapters/persistence/postgres"
)

// Run applies the schema for the bounded contexts over the adapters' own
// record types, so migrations cannot drift from what the adapters write.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&ledgerpostgres.ProductRecord{},
		&ledgerpostgres.WalletRecord{},
		&ledgerpostgres.CouponRecord{},
		&orderspostgres.OrderRecord{},
	)
}
