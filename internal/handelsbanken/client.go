// Package handelsbanken is a client for the Handelsbanken Open Banking sandbox:
// the authorization flow and the Account Information endpoints.
//
// Each call is one request/response exchange. Nothing is retried; failures
// surface to the caller as wrapped transport errors or *APIError.
package handelsbanken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/httpclient"
)

const (
	// DefaultRedirectURI is the redirect URI registered for sandbox applications.
	DefaultRedirectURI = "https://example.com"

	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 2048
)

// ErrMissingClientID is returned by NewClient when no client identifier is supplied.
var ErrMissingClientID = errors.New("handelsbanken: client id is required")

// APIError is a non-2xx response from the API. Body holds the raw response body.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("handelsbanken: API error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("handelsbanken: %s API error (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	ClientID    string
	Country     string
	BaseURL     string
	RedirectURI string
	// HTTP overrides the transport. Defaults to a resty client with Timeout.
	HTTP    httpclient.Client
	Timeout time.Duration
	Log     logger.Logger
}

// Client talks to the Handelsbanken sandbox API on behalf of one application.
type Client struct {
	clientID    string
	endpoints   Endpoints
	redirectURI string
	http        httpclient.Client
	log         logger.Logger

	mu      sync.RWMutex
	session *Session
}

// NewClient validates opts and builds a Client. No request is issued.
func NewClient(opts Options) (*Client, error) {
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		return nil, ErrMissingClientID
	}

	endpoints, err := EndpointsFor(opts.Country, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	redirectURI := strings.TrimSpace(opts.RedirectURI)
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = httpclient.NewRestyClient(timeout)
	}

	return &Client{
		clientID:    clientID,
		endpoints:   endpoints,
		redirectURI: redirectURI,
		http:        hc,
		log:         logger.Ensure(opts.Log),
	}, nil
}

// Endpoints returns the endpoint config selected at construction.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Session returns the current authorization session, if any.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs a session whose access token is attached to Account Information calls.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// GetAccounts lists the accounts available to the customer and returns the decoded body unchanged.
func (c *Client) GetAccounts(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, EndpointAccounts, nil)
}

// GetTransactions lists the transactions of accountID and returns the decoded body unchanged.
// accountID is not validated locally.
func (c *Client) GetTransactions(ctx context.Context, accountID string) (Document, error) {
	return c.getDocument(ctx, EndpointTransactions, map[string]string{"accountId": accountID})
}

// ListAccounts fetches and decodes the account list.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	doc, err := c.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeAccounts(doc)
}

// ListTransactions fetches and decodes the transactions of one account.
func (c *Client) ListTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	doc, err := c.GetTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return DecodeTransactions(doc)
}

func (c *Client) getDocument(ctx context.Context, endpoint string, params map[string]string) (Document, error) {
	target, err := c.endpoints.URL(endpoint, params)
	if err != nil {
		return Document{}, err
	}

	c.log.DebugObj("handelsbanken request", "request", map[string]any{
		"endpoint": endpoint,
		"method":   http.MethodGet,
		"url":      target,
	})

	resp, err := c.http.Get(ctx, target, c.aisHeaders())
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if err := checkStatus(endpoint, resp); err != nil {
		return Document{}, err
	}

	doc, err := DecodeDocument(resp.Body())
	if err != nil {
		return Document{}, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return doc, nil
}

// aisHeaders builds the headers required by the Account Information endpoints.
func (c *Client) aisHeaders() map[string]string {
	headers := c.tppHeaders()
	if s := c.Session(); s != nil && s.AccessToken != "" {
		headers["Authorization"] = "Bearer " + s.AccessToken
	}
	return headers
}

// tppHeaders are sent on every call made on behalf of the third party provider.
func (c *Client) tppHeaders() map[string]string {
	return map[string]string{
		"Accept":             "application/json",
		"X-IBM-Client-Id":    c.clientID,
		"TPP-Request-ID":     uuid.NewString(),
		"TPP-Transaction-ID": uuid.NewString(),
	}
}

func checkStatus(endpoint string, resp httpclient.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: code,
		Body:       truncateBody(resp.Body()),
	}
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyLen {
		return s[:maxErrorBodyLen] + "..."
	}
	return s
}
