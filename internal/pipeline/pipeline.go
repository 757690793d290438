package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/handelsbanken-explorer/internal/handelsbanken"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
	"github.com/samvad-hq/handelsbanken-explorer/internal/storage"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/publishers"
)

// Options configures a Service.
type Options struct {
	Country           string
	SkipAuthorization bool
}

// Result summarises one export pass.
type Result struct {
	Accounts        int `json:"accounts"`
	Transactions    int `json:"transactions"`
	Exported        int `json:"exported"`
	Skipped         int `json:"skipped"`
	PublishFailures int `json:"publish_failures"`
}

// Service walks accounts and their transactions and exports every transaction
// not exported before.
type Service struct {
	bank      BankClient
	rows      RowWriter
	publisher EventPublisher
	dedupe    Deduper
	log       logger.Logger
	opts      Options
}

// NewService wires the pipeline. publisher and dedupe are optional.
func NewService(bank BankClient, rows RowWriter, publisher EventPublisher, dedupe Deduper, log logger.Logger, opts Options) *Service {
	return &Service{
		bank:      bank,
		rows:      rows,
		publisher: publisher,
		dedupe:    dedupe,
		log:       logger.Ensure(log),
		opts:      opts,
	}
}

// Run executes one export pass. A failing account is logged and skipped; its error
// is joined into the returned error.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var res Result
	if s == nil || s.bank == nil || s.rows == nil {
		return res, fmt.Errorf("pipeline service is not initialized")
	}

	if !s.opts.SkipAuthorization {
		if _, err := s.bank.Authorize(ctx); err != nil {
			return res, fmt.Errorf("authorize: %w", err)
		}
	}

	accounts, err := s.bank.ListAccounts(ctx)
	if err != nil {
		return res, fmt.Errorf("list accounts: %w", err)
	}
	res.Accounts = len(accounts)

	var errs []error
	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.runAccount(ctx, acct, &res); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("account export failed", "account_error", map[string]any{
				"account_id": acct.AccountID,
				"error":      err.Error(),
			})
		}
	}

	return res, errors.Join(errs...)
}

func (s *Service) runAccount(ctx context.Context, acct handelsbanken.Account, res *Result) error {
	txs, err := s.bank.ListTransactions(ctx, acct.AccountID)
	if err != nil {
		return fmt.Errorf("list transactions for account %s: %w", acct.AccountID, err)
	}
	res.Transactions += len(txs)

	exported := 0
	for _, tx := range txs {
		key, err := storage.TransactionKey(acct.AccountID, tx.Raw)
		if err != nil {
			return err
		}

		if s.dedupe != nil {
			seen, err := s.dedupe.SeenTransaction(key)
			if err != nil {
				return fmt.Errorf("check transaction %s: %w", key, err)
			}
			if seen {
				res.Skipped++
				continue
			}
		}

		if err := s.rows.Write(acct, tx); err != nil {
			return fmt.Errorf("write transaction for account %s: %w", acct.AccountID, err)
		}
		res.Exported++
		exported++

		if s.publisher != nil {
			evt := publishers.NewEvent(s.opts.Country, acct.AccountID, acct.OwnerName, key, tx.Raw)
			if _, err := s.publisher.Publish(ctx, evt); err != nil {
				res.PublishFailures++
			}
		}

		// The row is on disk, so mark it even when publishing failed.
		if s.dedupe != nil {
			if err := s.dedupe.MarkTransaction(key); err != nil {
				return fmt.Errorf("mark transaction %s: %w", key, err)
			}
		}
	}

	s.log.InfoObj("account export completed", "account_result", map[string]any{
		"account_id":   acct.AccountID,
		"transactions": len(txs),
		"exported":     exported,
	})
	return nil
}
