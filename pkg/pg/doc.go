// Package pg connects to PostgreSQL through a pgx pool and applies goose
// migrations. The catalog package uses it to read static pack metadata.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := catalog.Migrate(ctx, pool, log); err != nil {
//		return err
//	}
package pg
