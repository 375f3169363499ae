package market

import (
	"context"

	"kisaanconnect/internal/db"
)

// pgOrderTxManager runs order placement callbacks inside a pgx transaction,
// handing the callback repositories bound to the transaction connection.
type pgOrderTxManager struct {
	runner *db.TxRunner
}

// NewOrderTxManager creates the production OrderTxManager over a db.TxRunner.
func NewOrderTxManager(runner *db.TxRunner) OrderTxManager {
	return &pgOrderTxManager{runner: runner}
}

func (m *pgOrderTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos OrderTxRepos) error) error {
	return m.runner.RunInTx(ctx, func(tx db.DBTX) error {
		orders := db.NewOrderRepository(tx)
		cart := db.NewCartRepository(tx)
		return fn(ctx, OrderTxRepos{
			CreateOrder:      orders.Create,
			CreateOrderItems: orders.CreateItems,
			ClearCart:        cart.Clear,
		})
	})
}
