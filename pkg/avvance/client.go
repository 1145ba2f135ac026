// Package avvance is the outbound client for the Avvance installment
// financing API: OAuth2 client-credentials token acquisition with caching,
// financing application lifecycle calls, and the pre-approval lead flow.
//
// The client performs no automatic retries. Retry policy belongs to the
// caller; on a timeout the operation must be treated as failed-unknown, not
// failed-negative.
package avvance

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Environment selects the remote routing key for the endpoints that require
// one (pre-approval, price breakdown, notification status).
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

// Header names required on every business call.
const (
	headerCorrelationID = "Correlation-ID"
	headerPartnerID     = "X-Partner-ID"
	headerRoutingKey    = "X-Routing-Key"
)

const defaultTimeout = 30 * time.Second

// Config carries everything the client needs. It is passed by value into
// NewClient; there is no package-level state.
type Config struct {
	BaseURL string // financing API base, e.g. https://api.avvance.example
	AuthURL string // OAuth2 token endpoint

	PartnerID    string // constant partner identifier header value
	MerchantHash string // merchant routing hash for pre-approval leads

	Environment          Environment
	RoutingKeyProduction string
	RoutingKeySandbox    string

	ClientID     string
	ClientSecret string

	HTTPClient *http.Client // optional; defaults to a 30s-timeout client
	Logger     *slog.Logger // optional; defaults to slog.Default
}

// Client is the synchronous request/response wrapper around the remote API.
// All methods acquire a bearer token first and fail fast if that fails.
type Client struct {
	baseURL      string
	partnerID    string
	merchantHash string
	routingKey   string

	httpClient *http.Client
	logger     *slog.Logger

	tokens  *TokenSource
	credKey string
}

// NewClient builds a Client and registers the configured credential with a
// fresh token source.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	routingKey := cfg.RoutingKeySandbox
	if cfg.Environment == EnvProduction {
		routingKey = cfg.RoutingKeyProduction
	}

	ts := NewTokenSource(cfg.AuthURL, hc, logger)
	ts.Register(cfg.ClientID, Credential{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		partnerID:    cfg.PartnerID,
		merchantHash: cfg.MerchantHash,
		routingKey:   routingKey,
		httpClient:   hc,
		logger:       logger,
		tokens:       ts,
		credKey:      cfg.ClientID,
	}
}

// Tokens exposes the token source, mainly so callers can invalidate the
// cache after observing an authentication failure downstream.
func (c *Client) Tokens() *TokenSource { return c.tokens }
