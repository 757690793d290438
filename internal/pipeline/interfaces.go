package pipeline

import (
	"context"

	"github.com/samvad-hq/handelsbanken-explorer/internal/handelsbanken"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/publishers"
)

// BankClient is the subset of the API client the pipeline drives.
type BankClient interface {
	Authorize(ctx context.Context) (*handelsbanken.Session, error)
	ListAccounts(ctx context.Context) ([]handelsbanken.Account, error)
	ListTransactions(ctx context.Context, accountID string) ([]handelsbanken.Transaction, error)
}

// RowWriter persists one exported transaction (CSV in production).
type RowWriter interface {
	Write(acct handelsbanken.Account, tx handelsbanken.Transaction) error
}

// EventPublisher publishes exported transactions downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers which transactions were already exported.
type Deduper interface {
	SeenTransaction(key string) (bool, error)
	MarkTransaction(key string) error
}
