package ebay

import (
	"context"
	"encoding/base64"
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

const (
	defaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token" //nolint:gosec // not a credential
	browseScope     = "https://api.ebay.com/oauth/api_scope"

	// Tokens are treated as expired this long before their real expiry so
	// that an in-flight search never carries a token about to lapse.
	expirySkew = 60 * time.Second
)

// OAuthTokenProvider implements TokenProvider using the eBay client
// credentials grant. One token is cached per provider and replaced when it
// comes within expirySkew of expiring.
type OAuthTokenProvider struct {
	tokenURL  string
	basicAuth string
	client    *http.Client
	log       *slog.Logger

	mu         sync.Mutex
	cached     string
	validUntil time.Time
	nowFunc    func() time.Time
}

// OAuthOption configures the OAuthTokenProvider.
type OAuthOption func(*OAuthTokenProvider)

// WithTokenURL overrides the default eBay token endpoint.
func WithTokenURL(u string) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.tokenURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.client = c
	}
}

// WithAuthLogger sets the logger for token refresh events.
func WithAuthLogger(log *slog.Logger) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.log = log
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.nowFunc = f
	}
}

// NewOAuthTokenProvider creates a token provider authenticating with the
// given application credentials.
func NewOAuthTokenProvider(
	appID, certID string,
	opts ...OAuthOption,
) *OAuthTokenProvider {
	p := &OAuthTokenProvider{
		tokenURL: defaultTokenURL,
		basicAuth: "Basic " + base64.StdEncoding.EncodeToString(
			[]byte(appID+":"+certID),
		),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     slog.Default(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is missing or close to expiry.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" && p.nowFunc().Before(p.validUntil) {
		return p.cached, nil
	}

	token, ttl, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}

	p.cached = token
	p.validUntil = p.nowFunc().Add(ttl - expirySkew)
	p.log.Debug("ebay oauth token refreshed", "valid_for", ttl)

	return token, nil
}

type tokenGrant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type tokenFailure struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *OAuthTokenProvider) fetch(
	ctx context.Context,
) (token string, ttl time.Duration, err error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {browseScope},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", p.basicAuth)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure tokenFailure
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&failure)
		return "", 0, fmt.Errorf(
			"token request failed (status %d): %s - %s",
			resp.StatusCode,
			failure.Error,
			failure.ErrorDescription,
		)
	}

	var grant tokenGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if grant.AccessToken == "" {
		return "", 0, fmt.Errorf("parsing token response: empty access token")
	}

	return grant.AccessToken, time.Duration(grant.ExpiresIn) * time.Second, nil
}
