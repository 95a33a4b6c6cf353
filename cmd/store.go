package main

import (
	"context"

	"github.com/sells-group/sales-etl/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Table, &cfg.Store.Pool)
}

func initReadOnlyStore(ctx context.Context) (store.Store, error) {
	return store.OpenReadOnly(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Table, &cfg.Store.Pool)
}
