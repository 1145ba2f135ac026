package avvance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenExpiryMargin is subtracted from the provider-declared lifetime so a
// token is never served right at its expiry edge.
const tokenExpiryMargin = 60 * time.Second

// Credential is one client-credentials pair for the token endpoint.
type Credential struct {
	ClientID     string
	ClientSecret string
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TokenSource obtains and caches bearer tokens per credential key. Multiple
// concurrent misses for the same key may each perform a live fetch; token
// issuance is idempotent and cheap, so the stampede is tolerated rather than
// coalesced.
type TokenSource struct {
	authURL    string
	httpClient *http.Client
	logger     *slog.Logger

	now func() time.Time // test hook

	mu    sync.Mutex
	creds map[string]Credential
	cache map[string]cachedToken
}

func NewTokenSource(authURL string, httpClient *http.Client, logger *slog.Logger) *TokenSource {
	return &TokenSource{
		authURL:    authURL,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		creds:      make(map[string]Credential),
		cache:      make(map[string]cachedToken),
	}
}

// Register associates a credential with a key. Keys are opaque to the
// source; the bridge uses the client id.
func (ts *TokenSource) Register(key string, cred Credential) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.creds[key] = cred
}

// Token returns a cached, non-expired token for key, fetching a new one on
// miss. No retry happens here; callers decide whether to retry with a fresh
// token after a downstream authentication failure.
func (ts *TokenSource) Token(ctx context.Context, key string) (string, error) {
	ts.mu.Lock()
	entry, ok := ts.cache[key]
	now := ts.now()
	ts.mu.Unlock()

	if ok && now.Before(entry.expiresAt) {
		return entry.value, nil
	}

	return ts.FreshToken(ctx, key)
}

// FreshToken bypasses the cache unconditionally, performs a live fetch and
// overwrites the cached entry. Used for the notification-status endpoint and
// after observed authentication failures.
func (ts *TokenSource) FreshToken(ctx context.Context, key string) (string, error) {
	ts.mu.Lock()
	cred, ok := ts.creds[key]
	ts.mu.Unlock()
	if !ok {
		return "", &AuthError{Op: "token", Detail: fmt.Sprintf("unknown credential key %q", key)}
	}

	value, ttl, err := ts.fetch(ctx, cred)
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.cache[key] = cachedToken{value: value, expiresAt: ts.now().Add(ttl)}
	ts.mu.Unlock()

	return value, nil
}

// Invalidate removes a cached token immediately so the next caller
// re-authenticates.
func (ts *TokenSource) Invalidate(key string) {
	ts.mu.Lock()
	delete(ts.cache, key)
	ts.mu.Unlock()
}

// fetch performs the client-credentials exchange. Network failures come back
// as TransportError (retryable); non-200 responses or a missing token field
// come back as AuthError (needs operator attention).
func (ts *TokenSource) fetch(ctx context.Context, cred Credential) (string, time.Duration, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.authURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("avvance: token: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, &TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Body deliberately not included in the error; token endpoint
		// failures are logged by status only.
		_, _ = io.Copy(io.Discard, resp.Body)
		ts.logger.Warn("token endpoint rejected credential exchange", "status", resp.StatusCode)
		return "", 0, &AuthError{Op: "token", StatusCode: resp.StatusCode, Detail: "credential exchange rejected"}
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, &AuthError{Op: "token", StatusCode: resp.StatusCode, Detail: "unparseable token body"}
	}
	if body.AccessToken == "" {
		return "", 0, &AuthError{Op: "token", StatusCode: resp.StatusCode, Detail: "token field missing from body"}
	}

	ttl := time.Duration(body.ExpiresIn)*time.Second - tokenExpiryMargin
	if ttl < 0 {
		ttl = 0
	}

	return body.AccessToken, ttl, nil
}
