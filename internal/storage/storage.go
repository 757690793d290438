// Package storage keeps a local ledger of transactions that were already exported.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store tracks exported transaction keys.
type Store interface {
	Close() error
	SeenTransaction(key string) (bool, error)
	MarkTransaction(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TransactionTTL  time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTransactionTTL  = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "memory":
		return newMemoryStore(opts), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		store, err := openBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// Persistent reports whether the store type keeps its ledger across processes.
func Persistent(typ string) bool {
	return strings.TrimSpace(strings.ToLower(typ)) == "bbolt"
}

// TransactionKey derives a stable key for a transaction record. The sandbox does not
// assign transaction ids, so the key hashes the account id with the record's JSON form
// (encoding/json sorts map keys).
func TransactionKey(accountID string, record map[string]any) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode transaction record: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalizeOptions(opts Options) Options {
	if opts.TransactionTTL <= 0 {
		opts.TransactionTTL = defaultTransactionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                         { return nil }
func (noopStore) SeenTransaction(string) (bool, error) { return false, nil }
func (noopStore) MarkTransaction(string) error         { return nil }
