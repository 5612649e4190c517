package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/experiences/internal/frequency"
)

// defaultStoreTimeout bounds each key-value round trip.
const defaultStoreTimeout = 2 * time.Second

// SQLStore implements frequency.KV over the kv table.
// The frequency interface is synchronous and context-free, so every call
// runs under its own timeout.
type SQLStore struct {
	q       *Queries
	timeout time.Duration
	now     func() time.Time
}

var _ frequency.KV = (*SQLStore)(nil)

// NewSQLStore creates a store over q. A non-positive timeout uses the default.
func NewSQLStore(q *Queries, timeout time.Duration) *SQLStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &SQLStore{q: q, timeout: timeout, now: time.Now}
}

// Get implements frequency.KV.
func (s *SQLStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var value string
	err := s.q.Get(ctx, "kv-get", &value, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements frequency.KV as an upsert.
func (s *SQLStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.q.Exec(ctx, "kv-set", key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Remove implements frequency.KV. Removing a missing key is not an error.
func (s *SQLStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.q.Exec(ctx, "kv-delete", key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.q.Get(ctx, "kv-count", &n); err != nil {
		return 0, fmt.Errorf("kv count: %w", err)
	}
	return n, nil
}
