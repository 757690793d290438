package httpclient

import (
	"context"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	PostJSON(ctx context.Context, url string, headers map[string]string, body any) (Response, error)
}

// StdClientProvider is implemented by clients that can expose the underlying
// *http.Client, e.g. for libraries that only accept a standard client.
type StdClientProvider interface {
	StdClient() *http.Client
}
