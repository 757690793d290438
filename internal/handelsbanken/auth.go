package handelsbanken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	scopeAIS          = "AIS"
	consentAccessAll  = "ALL_ACCOUNTS"
	scaMethodRedirect = "REDIRECT"
)

var (
	// ErrNoRedirectMethod means the consent response offered no REDIRECT SCA method.
	ErrNoRedirectMethod = errors.New("handelsbanken: consent has no REDIRECT sca method")
	// ErrAuthorizationCodeNotFound means the authorization page did not carry a code.
	ErrAuthorizationCodeNotFound = errors.New("handelsbanken: authorization code not found in response")

	authorizationCodePattern = regexp.MustCompile(`var\s+authorizationCode\s*=\s*'([^']*)'`)
)

// Session holds the tokens obtained by Authorize.
type Session struct {
	ConsentID    string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type consentResponse struct {
	ConsentID  string      `json:"consentId"`
	ScaMethods []scaMethod `json:"scaMethods"`
}

type scaMethod struct {
	ScaMethodType string `json:"scaMethodType"`
	Links         struct {
		Authorization []struct {
			Href string `json:"href"`
		} `json:"authorization"`
	} `json:"_links"`
}

// Authorize runs the sandbox authorization flow (client credentials grant, consent,
// authorization, authorization code grant) and installs the resulting session.
func (c *Client) Authorize(ctx context.Context) (*Session, error) {
	ccgToken, err := c.requestCCGToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("request ccg token: %w", err)
	}

	consentID, authEndpoint, err := c.initiateConsent(ctx, ccgToken)
	if err != nil {
		return nil, fmt.Errorf("initiate consent: %w", err)
	}

	code, err := c.initiateAuthorization(ctx, authEndpoint, consentID)
	if err != nil {
		return nil, fmt.Errorf("initiate authorization: %w", err)
	}

	tok, err := c.requestACGToken(ctx, consentID, code)
	if err != nil {
		return nil, fmt.Errorf("request acg token: %w", err)
	}

	session := &Session{
		ConsentID:    consentID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	c.SetSession(session)

	c.log.InfoObj("handelsbanken authorization completed", "authorization", map[string]any{
		"country":    c.endpoints.Country,
		"consent_id": consentID,
		"expiry":     tok.Expiry,
	})
	return session, nil
}

// requestCCGToken obtains a client credentials grant used to create the consent.
func (c *Client) requestCCGToken(ctx context.Context) (string, error) {
	tokenURL, err := c.endpoints.URL(EndpointCCGToken, nil)
	if err != nil {
		return "", err
	}
	cfg := clientcredentials.Config{
		ClientID:  c.clientID,
		TokenURL:  tokenURL,
		Scopes:    []string{scopeAIS},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	tok, err := cfg.Token(c.oauthContext(ctx))
	if err != nil {
		return "", convertOAuthError(EndpointCCGToken, err)
	}
	return tok.AccessToken, nil
}

// initiateConsent creates an ALL_ACCOUNTS consent and returns its id with the
// authorization endpoint of the REDIRECT sca method.
func (c *Client) initiateConsent(ctx context.Context, ccgToken string) (string, string, error) {
	target, err := c.endpoints.URL(EndpointConsents, nil)
	if err != nil {
		return "", "", err
	}

	headers := c.tppHeaders()
	headers["Authorization"] = "Bearer " + ccgToken
	headers["Country"] = c.endpoints.Country

	resp, err := c.http.PostJSON(ctx, target, headers, map[string]string{"access": consentAccessAll})
	if err != nil {
		return "", "", fmt.Errorf("post %s: %w", EndpointConsents, err)
	}
	if err := checkStatus(EndpointConsents, resp); err != nil {
		return "", "", err
	}

	var body consentResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", "", fmt.Errorf("decode %s response: %w", EndpointConsents, err)
	}
	if body.ConsentID == "" {
		return "", "", fmt.Errorf("%s response has no consentId", EndpointConsents)
	}

	for _, m := range body.ScaMethods {
		if m.ScaMethodType != scaMethodRedirect || len(m.Links.Authorization) == 0 {
			continue
		}
		if href := m.Links.Authorization[0].Href; href != "" {
			return body.ConsentID, href, nil
		}
	}
	return "", "", ErrNoRedirectMethod
}

// initiateAuthorization authorizes the consent. The sandbox answers with a page
// that embeds the authorization code instead of redirecting.
func (c *Client) initiateAuthorization(ctx context.Context, endpoint, consentID string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse authorization endpoint: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("scope", scopeAIS+":"+consentID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("state", uuid.NewString())
	u.RawQuery = q.Encode()

	resp, err := c.http.Get(ctx, u.String(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return "", fmt.Errorf("get authorization: %w", err)
	}
	if err := checkStatus("authorization", resp); err != nil {
		return "", err
	}
	return extractAuthorizationCode(resp.Body())
}

// requestACGToken exchanges the authorization code for the AIS access token.
func (c *Client) requestACGToken(ctx context.Context, consentID, code string) (*oauth2.Token, error) {
	tokenURL, err := c.endpoints.URL(EndpointACGToken, nil)
	if err != nil {
		return nil, err
	}
	cfg := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := cfg.Exchange(c.oauthContext(ctx), code, oauth2.SetAuthURLParam("scope", scopeAIS+":"+consentID))
	if err != nil {
		return nil, convertOAuthError(EndpointACGToken, err)
	}
	return tok, nil
}

// oauthContext makes oauth2 send token requests through the client's transport.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	hc := http.DefaultClient
	if p, ok := c.http.(httpclient.StdClientProvider); ok {
		if std := p.StdClient(); std != nil {
			hc = std
		}
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

func convertOAuthError(endpoint string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: re.Response.StatusCode,
			Body:       truncateBody(re.Body),
		}
	}
	return err
}

// extractAuthorizationCode finds `var authorizationCode = '...'` in the page scripts,
// falling back to the raw body for non-HTML responses.
func extractAuthorizationCode(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse authorization page: %w", err)
	}

	var code string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := authorizationCodePattern.FindStringSubmatch(s.Text()); m != nil {
			code = m[1]
			return false
		}
		return true
	})
	if code == "" {
		if m := authorizationCodePattern.FindSubmatch(body); m != nil {
			code = string(m[1])
		}
	}
	if code == "" {
		return "", ErrAuthorizationCodeNotFound
	}
	return code, nil
}
