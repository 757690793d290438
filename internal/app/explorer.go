package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/samvad-hq/handelsbanken-explorer/internal/config"
	"github.com/samvad-hq/handelsbanken-explorer/internal/handelsbanken"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
)

// Explorer prints the accounts document followed by one transactions document
// per account.
type Explorer struct {
	client   *handelsbanken.Client
	skipAuth bool
	log      logger.Logger
}

// accountTransactions is the per-account block written by the explorer.
type accountTransactions struct {
	AccountID    string                 `json:"account_id"`
	Transactions handelsbanken.Document `json:"transactions"`
}

// NewExplorer builds an explorer runtime from config.
func NewExplorer(cfg *config.Config, log logger.Logger) (*Explorer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	client, err := newBankClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Explorer{client: client, skipAuth: cfg.SkipAuthorization, log: log}, nil
}

// Run writes indented JSON documents to w. A failing account is logged and skipped;
// its error is joined into the returned error.
func (e *Explorer) Run(ctx context.Context, w io.Writer) error {
	if e == nil || e.client == nil {
		return fmt.Errorf("explorer is not initialized")
	}

	if !e.skipAuth {
		session, err := e.client.Authorize(ctx)
		if err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		e.log.InfoObj("authorization completed", "session", map[string]any{
			"consent_id": session.ConsentID,
			"expiry":     session.Expiry,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	accountsDoc, err := e.client.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("get accounts: %w", err)
	}
	if err := enc.Encode(accountsDoc); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}

	accounts, err := handelsbanken.DecodeAccounts(accountsDoc)
	if err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}

	var errs []error
	for _, acct := range accounts {
		doc, err := e.client.GetTransactions(ctx, acct.AccountID)
		if err != nil {
			errs = append(errs, fmt.Errorf("get transactions for account %s: %w", acct.AccountID, err))
			e.log.ErrorObj("transactions fetch failed", "account_error", map[string]any{
				"account_id": acct.AccountID,
				"error":      err.Error(),
			})
			continue
		}
		if err := enc.Encode(accountTransactions{AccountID: acct.AccountID, Transactions: doc}); err != nil {
			return fmt.Errorf("write transactions: %w", err)
		}
	}

	e.log.InfoObj("explore completed", "explore_meta", map[string]any{
		"accounts": len(accounts),
		"failed":   len(errs),
	})
	return errors.Join(errs...)
}
