package catalog

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/iapkit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

const selectPacks = `
SELECT pack_id, item_type, item_value, item_name, asset, tag, in_store_raw, in_store
FROM iap_packs
WHERE enabled
ORDER BY sort_order, pack_id`

// Querier is the subset of pgxpool.Pool used by PostgresLoader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLoader reads enabled packs from the iap_packs table.
type PostgresLoader struct {
	db Querier
}

// NewPostgresLoader creates a loader over db.
func NewPostgresLoader(db Querier) *PostgresLoader {
	return &PostgresLoader{db: db}
}

func (l *PostgresLoader) Load(ctx context.Context) ([]Pack, error) {
	rows, err := l.db.Query(ctx, selectPacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	packs, err := pgx.CollectRows(rows, scanPack)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := validate(packs); err != nil {
		return nil, err
	}
	return packs, nil
}

func scanPack(row pgx.CollectableRow) (Pack, error) {
	var p Pack
	err := row.Scan(&p.PackID, &p.ItemType, &p.ItemValue, &p.ItemName, &p.Asset, &p.Tag, &p.InStoreRaw, &p.InStore)
	return p, err
}

// Migrate creates or upgrades the iap_packs table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return pg.MigrateFS(ctx, pool, migrations, "migrations", "iap_catalog_migrations", log)
}
