package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"listing_ledger/identity"
	"listing_ledger/models"
)

const mirrorBatchSize = 200

// PostgresStore mirrors the Features and History tables into Postgres so
// they can be queried alongside other data. The CSV files stay authoritative.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listing_features (
			addr_str TEXT PRIMARY KEY,
			beds INTEGER NOT NULL,
			baths INTEGER NOT NULL,
			sqft BIGINT NOT NULL,
			lot_size INTEGER NOT NULL,
			street TEXT NOT NULL,
			apt INTEGER NOT NULL,
			city TEXT NOT NULL,
			state CHAR(2) NOT NULL,
			zip INTEGER NOT NULL,
			address_display TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS price_history (
			addr_str TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			price BIGINT NOT NULL,
			PRIMARY KEY (addr_str, observed_at, price)
		);

		CREATE INDEX IF NOT EXISTS idx_features_zip ON listing_features(zip);
	`)
	return err
}

// MirrorFeatures inserts rows not yet mirrored and returns how many were new.
func (s *PostgresStore) MirrorFeatures(ctx context.Context, rows []models.FeatureRow) (int, error) {
	return s.sendBatches(ctx, len(rows), func(b *pgx.Batch, i int) {
		r := rows[i]
		b.Queue(`
			INSERT INTO listing_features
				(addr_str, beds, baths, sqft, lot_size, street, apt, city, state, zip, address_display)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (addr_str) DO NOTHING`,
			r.AddrStr, r.Beds, r.Baths, int64(r.SqFt), r.LotSize, r.Street, r.Apt,
			r.City, r.State, int64(r.Zip), identity.Display(identity.AddressFromRow(r)),
		)
	})
}

// MirrorHistory inserts price observations. Re-sending an observation is a no-op.
func (s *PostgresStore) MirrorHistory(ctx context.Context, obs []models.PriceObservation) (int, error) {
	return s.sendBatches(ctx, len(obs), func(b *pgx.Batch, i int) {
		o := obs[i]
		b.Queue(`
			INSERT INTO price_history (addr_str, observed_at, price)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			o.AddressKey, time.Unix(o.ObservedAt, 0).UTC(), int64(o.Price),
		)
	})
}

func (s *PostgresStore) sendBatches(ctx context.Context, n int, queue func(*pgx.Batch, int)) (int, error) {
	total := 0
	for i := 0; i < n; i += mirrorBatchSize {
		j := min(i+mirrorBatchSize, n)

		b := &pgx.Batch{}
		for k := i; k < j; k++ {
			queue(b, k)
		}
		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, err
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, err
		}
	}
	return total, nil
}
