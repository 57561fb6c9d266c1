// Package clickhouse implements record lookup and persistence on ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    identifier  String,
    fingerprint String,
    origins     Array(String),
    content     String,
    updated_at  DateTime64(3)
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY identifier`

const lookupSQL = `
SELECT identifier, argMax(fingerprint, updated_at)
FROM records
WHERE has(?, identifier)
GROUP BY identifier`

const insertSQL = `INSERT INTO records`

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type batchWriter interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// session narrows driver.Conn to what the store needs.
type session interface {
	exec(ctx context.Context, query string) error
	query(ctx context.Context, query string, args ...any) (rowIter, error)
	prepareBatch(ctx context.Context, query string) (batchWriter, error)
	close() error
}

type driverSession struct {
	conn driver.Conn
}

func (s driverSession) exec(ctx context.Context, query string) error {
	return s.conn.Exec(ctx, query)
}

func (s driverSession) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	return s.conn.Query(ctx, query, args...)
}

func (s driverSession) prepareBatch(ctx context.Context, query string) (batchWriter, error) {
	return s.conn.PrepareBatch(ctx, query)
}

func (s driverSession) close() error {
	return s.conn.Close()
}

// Store implements ports.RecordLookup and ports.Persister.
type Store struct {
	sess   session
	logger ports.Logger
	now    func() time.Time
}

// Open connects using a clickhouse:// DSN and creates the records table.
func Open(ctx context.Context, dsn string, logger ports.Logger) (*Store, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	s := newStore(driverSession{conn: conn}, logger)
	if err := s.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("clickhouse store ready", ports.Strings("addr", opts.Addr), ports.String("database", opts.Auth.Database))
	return s, nil
}

func newStore(sess session, logger ports.Logger) *Store {
	return &Store{
		sess:   sess,
		logger: logger,
		now:    time.Now,
	}
}

// InitSchema creates the records table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if err := s.sess.exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// LookupNew returns the records that are unknown or whose latest stored
// fingerprint differs.
func (s *Store) LookupNew(ctx context.Context, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows, err := s.sess.query(ctx, lookupSQL, domain.IDs(records))
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
	s.logger.Debug("clickhouse lookup",
		ports.Int("requested", len(records)),
		ports.Int("known", len(stored)),
		ports.Int("new", len(fresh)),
	)
	return fresh, nil
}

// Persist appends merged records as new versions; ReplacingMergeTree keeps
// the latest per identifier.
func (s *Store) Persist(ctx context.Context, merged []domain.MergedRecord) error {
	if len(merged) == 0 {
		return nil
	}
	batch, err := s.sess.prepareBatch(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	now := s.now().UTC()
	for _, m := range merged {
		origins := m.Origins
		if origins == nil {
			origins = []string{}
		}
		if err := batch.Append(m.ID, m.Fingerprint, origins, string(m.Content), now); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s: %w", m.ID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send insert: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.sess.close()
}
