package business

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/internal/config"
	storagesql "github.com/openkcm/api-client/pkg/storage/postgres"
)

// PurgeMain removes expired entries from the postgres storage backend. The
// other backends expire entries on their own.
func PurgeMain(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Type != config.StoragePostgres {
		slogctx.Info(ctx, "Nothing to purge", "storage", cfg.Storage.Type)
		return nil
	}

	db, err := newPgxPool(ctx, cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("failed to initialise the storage: %w", err)
	}
	defer db.Close()

	n, err := storagesql.New(db).PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purging expired entries: %w", err)
	}

	slogctx.Info(ctx, "Purged expired entries", "count", n)

	return nil
}
