package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProduct_Reserve_DecrementsStock(t *testing.T) {
	p := Product{ID: 1, Name: "keyboard", Price: 50_000, Stock: 10}

	require.NoError(t, p.Reserve(3))
	require.Equal(t, int64(7), p.Stock)
}

func TestProduct_Reserve_RejectsOverdraw(t *testing.T) {
	p := Product{ID: 1, Name: "keyboard", Price: 50_000, Stock: 2}

	err := p.Reserve(3)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, int64(2), p.Stock)
}

func TestProduct_Reserve_RejectsNonPositiveQuantity(t *testing.T) {
	p := Product{ID: 1, Stock: 5}

	require.Error(t, p.Reserve(0))
	require.Error(t, p.Reserve(-1))
	require.Equal(t, int64(5), p.Stock)
}

func TestProduct_Restock_ReturnsStock(t *testing.T) {
	p := Product{ID: 1, Stock: 1}

	require.NoError(t, p.Restock(4))
	require.Equal(t, int64(5), p.Stock)
	require.Error(t, p.Restock(0))
}

func TestWallet_Deduct_RejectsOverdraw(t *testing.T) {
	w := Wallet{OwnerRef: "user-1", Balance: 1_000}

	require.NoError(t, w.Deduct(400))
	require.Equal(t, int64(600), w.Balance)

	err := w.Deduct(601)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, int64(600), w.Balance)
}

func TestWallet_Refund_RestoresBalance(t *testing.T) {
	w := Wallet{OwnerRef: "user-1", Balance: 100}

	require.NoError(t, w.Refund(400))
	require.Equal(t, int64(500), w.Balance)
	require.Error(t, w.Refund(-1))
}
