// Package auth acquires and caches the bearer credential used on every
// Ledger API call.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/ChainSafe/canton-middleware-sub001/config"
)

// ErrAuthentication marks credential acquisition failures. Callers can
// distinguish them from transport failures with errors.Is.
var ErrAuthentication = errors.New("authentication failed")

// defaultTokenTTL applies when the token endpoint does not declare expires_in.
const defaultTokenTTL = 5 * time.Minute

// TokenProvider caches an OAuth2 client-credentials token and hands out
// contexts carrying it as gRPC authorization metadata. One provider is
// constructed per process and shared by every caller that talks to the
// ledger; Token may be called from any number of goroutines. The mutex is
// held across the refresh round trip, so concurrent callers either see the
// still-valid cached token or block until the single in-flight refresh
// completes.
type TokenProvider struct {
	cfg    config.AuthConfig
	logger *zap.Logger
	client *http.Client

	mu        sync.Mutex
	token     string
	expiry    time.Time
	subject   string
	refreshes int64
}

// NewTokenProvider creates a provider for the given credential settings.
func NewTokenProvider(cfg config.AuthConfig, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Context returns ctx with bearer authorization metadata attached. The OAuth2
// client-credentials flow is used when fully configured; otherwise a static
// token file, when configured, supplies the credential. With neither
// configured the context is returned unchanged and calls go out anonymous.
func (p *TokenProvider) Context(ctx context.Context) (context.Context, error) {
	if p.cfg.ClientID != "" && p.cfg.ClientSecret != "" && p.cfg.Audience != "" && p.cfg.TokenURL != "" {
		token, err := p.Token(ctx)
		if err != nil {
			return nil, err
		}
		md := metadata.Pairs("authorization", "Bearer "+token)
		return metadata.NewOutgoingContext(ctx, md), nil
	}

	if p.cfg.TokenFile != "" {
		tokenBytes, err := os.ReadFile(p.cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read token file: %v", ErrAuthentication, err)
		}
		token := strings.TrimSpace(string(tokenBytes))
		md := metadata.Pairs("authorization", "Bearer "+token)
		return metadata.NewOutgoingContext(ctx, md), nil
	}

	return ctx, nil
}

// Token returns the cached access token, refreshing it from the token
// endpoint when the cache is empty or past its recorded expiry. Failures are
// surfaced once, never retried here.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.token != "" && now.Before(p.expiry) {
		return p.token, nil
	}

	token, expiresIn, err := p.requestToken(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiry = tokenExpiry(now, expiresIn)
	p.refreshes++

	if subject, err := extractSubject(token); err == nil {
		p.subject = subject
	}

	p.logger.Info("OAuth2 token obtained",
		zap.Int("expires_in", expiresIn),
		zap.Time("cached_until", p.expiry))
	return p.token, nil
}

// Subject returns the sub claim of the most recently obtained token, or ""
// when no token has been decoded yet. Display use only.
func (p *TokenProvider) Subject() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subject
}

// Refreshes returns how many token round trips this provider has made.
func (p *TokenProvider) Refreshes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *TokenProvider) requestToken(ctx context.Context) (string, int, error) {
	payload := map[string]string{
		"client_id":     p.cfg.ClientID,
		"client_secret": p.cfg.ClientSecret,
		"audience":      p.cfg.Audience,
		"grant_type":    "client_credentials",
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to marshal token request: %v", ErrAuthentication, err)
	}

	p.logger.Info("fetching OAuth2 access token", zap.String("token_url", p.cfg.TokenURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to create token request: %v", ErrAuthentication, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to call token endpoint: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, fmt.Errorf("%w: token endpoint returned %d: %s", ErrAuthentication, resp.StatusCode, string(b))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("%w: failed to decode token response: %v", ErrAuthentication, err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: token response missing access_token", ErrAuthentication)
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}

// tokenExpiry computes when a freshly obtained token should be considered
// expired. The cached expiry always lands strictly before the server's, with
// a 60 second leeway shrunk to half of short-lived tokens' lifetime.
func tokenExpiry(now time.Time, expiresIn int) time.Time {
	if expiresIn <= 0 {
		return now.Add(defaultTokenTTL)
	}
	leeway := 60
	if expiresIn <= leeway {
		leeway = expiresIn / 2
	}
	return now.Add(time.Duration(expiresIn-leeway) * time.Second)
}

// extractSubject decodes the sub claim without verifying the signature. The
// subject is shown in report headers; verification belongs to the ledger.
func extractSubject(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse JWT: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid JWT claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("JWT missing 'sub' claim")
	}
	return sub, nil
}
