package server

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/ports"
	"github.com/jacksonlee411/orgchart/modules/orgchart/infrastructure/persistence"
)

// OpenSource returns the configured record source. The returned close func
// releases the database pool, if any, and is always safe to call.
func OpenSource(ctx context.Context, cfg Config) (ports.SourceStore, func(), error) {
	switch cfg.Source {
	case SourceCSV:
		if _, err := os.Stat(cfg.DataDir); err != nil {
			return nil, func() {}, fmt.Errorf("server: data dir: %w", err)
		}
		return persistence.NewCSVSource(os.DirFS(cfg.DataDir)), func() {}, nil
	case SourcePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return persistence.NewPGSource(pool), pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("server: unknown source %q", cfg.Source)
	}
}
