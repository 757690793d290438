package handelsbanken

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	// DefaultBaseURL is the sandbox Open Banking base URL.
	DefaultBaseURL = "https://sandbox.handelsbanken.com/openbanking"
	// DefaultCountry is used when no country subscription is configured.
	DefaultCountry = "GB"
)

// Logical endpoint names.
const (
	EndpointAccounts     = "accounts"
	EndpointTransactions = "transactions"
	EndpointCCGToken     = "ccg_token"
	EndpointConsents     = "consents"
	EndpointACGToken     = "acg_token"
)

var endpointTemplates = map[string]string{
	EndpointAccounts:     "{base}/psd2/v2/accounts",
	EndpointTransactions: "{base}/psd2/v2/accounts/{accountId}/transactions",
	EndpointCCGToken:     "{base}/oauth2/token/1.0",
	EndpointConsents:     "{base}/psd2/v1/consents",
	EndpointACGToken:     "{base}/redirect/oauth2/token/1.0",
}

// Countries with an Account Information subscription in the sandbox.
var supportedCountries = map[string]struct{}{
	"DK": {},
	"FI": {},
	"GB": {},
	"NL": {},
	"NO": {},
	"SE": {},
}

// Endpoints maps logical operation names to URL templates for one country subscription.
// It is selected once and never mutated.
type Endpoints struct {
	Country   string
	BaseURL   string
	templates map[string]string
}

// EndpointsFor selects the endpoint config for the given country and base URL.
// Empty values fall back to DefaultCountry and DefaultBaseURL.
func EndpointsFor(country, baseURL string) (Endpoints, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = DefaultCountry
	}
	if _, ok := supportedCountries[country]; !ok {
		return Endpoints{}, fmt.Errorf("unsupported country %q (supported: %s)", country, strings.Join(SupportedCountries(), ", "))
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return Endpoints{}, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	templates := make(map[string]string, len(endpointTemplates))
	for name, tmpl := range endpointTemplates {
		templates[name] = strings.ReplaceAll(tmpl, "{base}", baseURL)
	}

	return Endpoints{Country: country, BaseURL: baseURL, templates: templates}, nil
}

// SupportedCountries lists the country codes EndpointsFor accepts.
func SupportedCountries() []string {
	out := make([]string, 0, len(supportedCountries))
	for c := range supportedCountries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// URL renders the named endpoint, path-escaping each parameter into its {placeholder}.
func (e Endpoints) URL(name string, params map[string]string) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown endpoint %q", name)
	}
	for k, v := range params {
		tmpl = strings.ReplaceAll(tmpl, "{"+k+"}", url.PathEscape(v))
	}
	if strings.Contains(tmpl, "{") {
		return "", fmt.Errorf("endpoint %q has unresolved placeholders: %s", name, tmpl)
	}
	return tmpl, nil
}
