package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/pkg/log"
)

type fakeRows struct {
	data [][2]string
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.data[r.i-1][0]
	*dest[1].(*string) = r.data[r.i-1][1]
	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

type fakeBatch struct {
	rows    [][]any
	sent    bool
	aborted bool
	sendErr error
}

func (b *fakeBatch) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}
func (b *fakeBatch) Send() error {
	b.sent = true
	return b.sendErr
}
func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

type fakeSession struct {
	rows    *fakeRows
	args    []any
	batch   *fakeBatch
	queries []string
}

func (s *fakeSession) exec(ctx context.Context, query string) error {
	s.queries = append(s.queries, query)
	return nil
}

func (s *fakeSession) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	s.args = args
	return s.rows, nil
}

func (s *fakeSession) prepareBatch(ctx context.Context, query string) (batchWriter, error) {
	if s.batch == nil {
		return nil, errors.New("no batch")
	}
	return s.batch, nil
}

func (s *fakeSession) close() error { return nil }

func TestStore_LookupNew(t *testing.T) {
	sess := &fakeSession{rows: &fakeRows{data: [][2]string{{"A", "f1"}, {"C", "old"}}}}
	s := newStore(sess, log.NewNoopLogger())

	recs := []domain.Record{
		{ID: "A", Fingerprint: "f1"},
		{ID: "B", Fingerprint: "f2"},
		{ID: "C", Fingerprint: "f3"},
	}
	got, err := s.LookupNew(context.Background(), recs)
	if err != nil {
		t.Fatalf("LookupNew() error = %v", err)
	}
	want := []domain.Record{{ID: "B", Fingerprint: "f2"}, {ID: "C", Fingerprint: "f3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupNew() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{[]string{"A", "B", "C"}}, sess.args); diff != "" {
		t.Errorf("query args mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Persist(t *testing.T) {
	sess := &fakeSession{batch: &fakeBatch{}}
	s := newStore(sess, log.NewNoopLogger())
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.now = func() time.Time { return now }

	merged := []domain.MergedRecord{
		{ID: "A", Fingerprint: "f1", Origins: []string{"x", "y"}, Content: json.RawMessage(`{"a":1}`)},
		{ID: "B", Fingerprint: "f2"},
	}
	if err := s.Persist(context.Background(), merged); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	want := [][]any{
		{"A", "f1", []string{"x", "y"}, `{"a":1}`, now},
		{"B", "f2", []string{}, "", now},
	}
	if diff := cmp.Diff(want, sess.batch.rows); diff != "" {
		t.Errorf("appended rows mismatch (-want +got):\n%s", diff)
	}
	if !sess.batch.sent {
		t.Error("batch not sent")
	}
}

func TestStore_PersistEmpty(t *testing.T) {
	s := newStore(&fakeSession{}, log.NewNoopLogger())
	if err := s.Persist(context.Background(), nil); err != nil {
		t.Fatalf("Persist(nil) error = %v", err)
	}
}

func TestStore_PersistSendFailure(t *testing.T) {
	sess := &fakeSession{batch: &fakeBatch{sendErr: errors.New("timeout")}}
	s := newStore(sess, log.NewNoopLogger())
	if err := s.Persist(context.Background(), []domain.MergedRecord{{ID: "A"}}); err == nil {
		t.Fatal("Persist() error = nil, want error")
	}
}
