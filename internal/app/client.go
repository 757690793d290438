package app

import (
	"fmt"

	"github.com/samvad-hq/handelsbanken-explorer/internal/config"
	"github.com/samvad-hq/handelsbanken-explorer/internal/handelsbanken"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
)

// newBankClient builds the API client from config.
func newBankClient(cfg *config.Config, log logger.Logger) (*handelsbanken.Client, error) {
	client, err := handelsbanken.NewClient(handelsbanken.Options{
		ClientID:    cfg.ClientID,
		Country:     cfg.Country,
		BaseURL:     cfg.BaseURL,
		RedirectURI: cfg.RedirectURI,
		Timeout:     cfg.HTTPTimeout,
		Log:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("init handelsbanken client: %w", err)
	}
	log.InfoObj("handelsbanken client initialized", "client_config", map[string]any{
		"country":            client.Endpoints().Country,
		"base_url":           cfg.BaseURL,
		"skip_authorization": cfg.SkipAuthorization,
	})
	return client, nil
}
