// Package nrfcloud resolves location and assistance requests against the nRF Cloud
// location services REST API.
package nrfcloud

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"encore.dev/rlog"

	"encore.app/locator/resolver"
)

// Config is everything the client needs; nothing is read from the environment.
type Config struct {
	// BaseURL of the API. Default: https://api.nrfcloud.com
	BaseURL string
	// TeamID is the subject of the service tokens.
	TeamID string
	// ServiceKey is the PEM encoded ES256 private key of the team's service key.
	ServiceKey string
	// RequestsPerSecond caps outbound calls across all domains. Default: 10
	RequestsPerSecond float64
	// Burst allows short bursts above the rate. Default: 5
	Burst int
	// Timeout bounds each HTTP call. Default: 10s
	Timeout time.Duration
	// TokenTTL is the lifetime of a minted service token. Default: 1h
	TokenTTL time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.nrfcloud.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// errNoData is returned by the client when the API has no answer for a request.
var errNoData = errors.New("nrfcloud: no data")

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	key     *ecdsa.PrivateKey
	limiter *rate.Limiter
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient parses the service key and builds a rate limited client.
func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	if cfg.TeamID == "" {
		return nil, errors.New("nrfcloud: team ID is required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.ServiceKey))
	if err != nil {
		return nil, fmt.Errorf("nrfcloud: parse service key: %w", err)
	}

	return &Client{
		cfg:     cfg,
		key:     key,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		now:     time.Now,
	}, nil
}

// bearer returns a cached service token, minting a new one shortly before expiry.
func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(time.Minute).Before(c.tokenExpiry) {
		return c.token, nil
	}

	expiry := now.Add(c.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   c.cfg.TeamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(c.key)
	if err != nil {
		return "", err
	}

	c.token = signed
	c.tokenExpiry = expiry
	return signed, nil
}

// call performs one API request and translates the response into the resolver taxonomy.
// A nil error means a 2xx with a body; errNoData means the API definitively has nothing.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindRateLimit, Err: err}
	}

	token, err := c.bearer()
	if err != nil {
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindAuth, Err: err}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("nrfcloud %s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("nrfcloud %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindNetwork, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindNetwork, Err: err}
	}

	switch {
	case res.StatusCode == http.StatusNoContent,
		res.StatusCode == http.StatusNotFound,
		res.StatusCode == http.StatusUnprocessableEntity:
		rlog.Debug("third party has no data", "op", op, "status", res.StatusCode)
		return nil, errNoData
	case res.StatusCode >= 200 && res.StatusCode < 300:
		if len(data) == 0 {
			return nil, errNoData
		}
		return data, nil
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindAuth, Err: statusError(res.StatusCode, data)}
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindRateLimit, Err: statusError(res.StatusCode, data)}
	default:
		return nil, &resolver.InfrastructureError{Op: op, Kind: resolver.KindUpstream, Err: statusError(res.StatusCode, data)}
	}
}

func statusError(status int, body []byte) error {
	const maxBody = 256
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
}
