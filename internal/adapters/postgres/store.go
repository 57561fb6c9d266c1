// Package postgres implements record lookup and persistence on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// DefaultChunkSize is the number of upserts sent per pgx.Batch.
const DefaultChunkSize = 500

const createTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    identifier  TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    origins     TEXT[],
    content     JSONB,
    updated_at  TIMESTAMPTZ NOT NULL
)`

const lookupSQL = `SELECT identifier, fingerprint FROM records WHERE identifier = ANY($1)`

const upsertSQL = `
INSERT INTO records (identifier, fingerprint, origins, content, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (identifier) DO UPDATE SET
    fingerprint = EXCLUDED.fingerprint,
    origins     = EXCLUDED.origins,
    content     = EXCLUDED.content,
    updated_at  = EXCLUDED.updated_at`

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements ports.RecordLookup and ports.Persister.
type Store struct {
	db        DB
	pool      *pgxpool.Pool
	chunkSize int
	logger    ports.Logger
	now       func() time.Time
}

// Open connects to dsn, creates the records table if needed and returns a
// store owning the pool.
func Open(ctx context.Context, dsn string, logger ports.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewStore(pool, logger)
	s.pool = pool
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("postgres store ready", ports.String("host", cfg.ConnConfig.Host), ports.String("database", cfg.ConnConfig.Database))
	return s, nil
}

// NewStore wraps an existing connection.
func NewStore(db DB, logger ports.Logger) *Store {
	return &Store{
		db:        db,
		chunkSize: DefaultChunkSize,
		logger:    logger,
		now:       time.Now,
	}
}

// InitSchema creates the records table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// LookupNew returns the records that are unknown or whose fingerprint changed.
func (s *Store) LookupNew(ctx context.Context, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, lookupSQL, domain.IDs(records))
	if err != nil {
		return nil, fmt.Errorf("query stored fingerprints: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string, len(records))
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, fmt.Errorf("scan stored fingerprint: %w", err)
		}
		stored[id] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stored fingerprints: %w", err)
	}

	fresh := domain.SelectChanged(records, stored)
	s.logger.Debug("postgres lookup",
		ports.Int("requested", len(records)),
		ports.Int("known", len(stored)),
		ports.Int("new", len(fresh)),
	)
	return fresh, nil
}

// Persist upserts merged records in chunks of pgx.Batch.
func (s *Store) Persist(ctx context.Context, merged []domain.MergedRecord) error {
	now := s.now().UTC()
	for start := 0; start < len(merged); start += s.chunkSize {
		end := min(start+s.chunkSize, len(merged))
		if err := s.upsertChunk(ctx, merged[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertChunk(ctx context.Context, chunk []domain.MergedRecord, now time.Time) error {
	b := &pgx.Batch{}
	for _, m := range chunk {
		var content any
		if len(m.Content) > 0 {
			content = m.Content
		}
		b.Queue(upsertSQL, m.ID, m.Fingerprint, m.Origins, content, now)
	}

	br := s.db.SendBatch(ctx, b)
	for i := range chunk {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert %s: %w", chunk[i].ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}
	return nil
}

// Close releases the pool if the store opened it.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}
