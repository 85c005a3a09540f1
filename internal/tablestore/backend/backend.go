// Package backend opens the table store named by configuration.
package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/davidahmann/counterpoint/internal/config"
	"github.com/davidahmann/counterpoint/internal/tablestore"
	"github.com/davidahmann/counterpoint/internal/tablestore/aztable"
	"github.com/davidahmann/counterpoint/internal/tablestore/pgstore"
	"github.com/davidahmann/counterpoint/internal/tablestore/redisstore"
	"github.com/davidahmann/counterpoint/internal/tablestore/sqlstore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns a ready store; the table is created if missing. The closer
// releases the underlying connection.
func Open(ctx context.Context, cfg config.StoreConfig) (tablestore.Store, io.Closer, error) {
	table := cfg.Table
	if table == "" {
		table = config.DefaultTable
	}

	var (
		store  tablestore.Store
		closer io.Closer = nopCloser{}
	)
	switch cfg.Driver {
	case "", "memory":
		store = tablestore.NewInMemoryStore()
	case "sqlite":
		s, err := sqlstore.OpenSQLite(cfg.DSN, table)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, closer = s, s
	case "postgres":
		s, err := pgstore.OpenPostgres(cfg.DSN, table)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store, closer = s, s
	case "aztable":
		s, err := aztable.Open(cfg.DSN, table)
		if err != nil {
			return nil, nil, fmt.Errorf("open table storage: %w", err)
		}
		store = s
	case "redis":
		s, err := redisstore.Open(cfg.DSN, table)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis: %w", err)
		}
		store, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	if err := store.EnsureTable(ctx); err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("ensure table %s: %w", table, err)
	}
	return store, closer, nil
}
