// Package reddit implements the authenticated, rate-limited Reddit API
// client: the OAuth2 authorization flow, token lifecycle management,
// paginated listing retrieval, and record deletion.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/logger"
	"github.com/ardeaf/redelete/internal/oauth"
)

// Reddit application constants. The client is registered as an installed app,
// so token endpoint calls authenticate with the client id and an empty
// secret.
const (
	clientID  = "8h7fZ5mmBb8uxA"
	userAgent = "redelete:v0.1.0 (by /u/ardeaf)"

	defaultAuthBaseURL = "https://www.reddit.com"
	defaultAPIBaseURL  = "https://oauth.reddit.com"

	accessTokenEndpoint = "/api/v1/access_token"
	identityEndpoint    = "/api/v1/me"
	deleteEndpoint      = "/api/del"
)

// Client is an API client scoped to one authorized account. Every request
// resolves a valid token through the account store, refreshing it under
// mutual exclusion when expired, and blocks on the shared rate budget before
// going out on the wire.
type Client struct {
	Username string

	store       *config.Store
	httpClient  *http.Client
	rateLimiter *RateLimiter

	// accountMu serializes the check-and-refresh sequence so concurrent
	// callers cannot both observe an expired token and issue duplicate
	// refreshes. It is not held across listing or delete calls.
	accountMu sync.Mutex

	authBaseURL string
	apiBaseURL  string
}

// NewClient creates a client for a previously authorized username.
func NewClient(store *config.Store, username string) *Client {
	return &Client{
		Username:    username,
		store:       store,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: NewRateLimiter(),
		authBaseURL: defaultAuthBaseURL,
		apiBaseURL:  defaultAPIBaseURL,
	}
}

// Get issues a bearer-authenticated GET against an API endpoint and returns
// the raw response body. Transport failures and non-2xx statuses propagate
// unmodified; the caller is responsible for interpreting the body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (string, error) {
	account, err := c.checkAccountInfo(ctx)
	if err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	requestURL := c.apiBaseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	return c.do(req, account.Token.AccessToken)
}

// Post issues a bearer-authenticated form POST against an API endpoint and
// returns the raw response body.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values) (string, error) {
	account, err := c.checkAccountInfo(ctx)
	if err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.apiBaseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, account.Token.AccessToken)
}

// do sends the request with the bearer credential attached.
func (c *Client) do(req *http.Request, accessToken string) (string, error) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if IsRateLimited(resp.StatusCode) {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.rateLimiter.RecordRateLimitError(retryAfter)
	}
	if err := WrapError(resp.StatusCode); err != nil {
		return "", fmt.Errorf("%w: %s %s returned status %d", err, req.Method, req.URL.Path, resp.StatusCode)
	}

	return string(body), nil
}

// checkAccountInfo returns account info holding a valid access token. An
// expired token is refreshed and persisted before the lock is released, so
// at most one refresh is in flight per client and later callers observe the
// refreshed record.
func (c *Client) checkAccountInfo(ctx context.Context) (*config.AccountInfo, error) {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()

	account, err := c.store.Account(c.Username)
	if err != nil {
		return nil, err
	}
	if !account.TokenExpired(time.Now()) {
		return account, nil
	}
	return c.refresh(ctx, account)
}

// refresh exchanges the refresh token for a new access token and persists
// the updated account record. The provider does not echo the refresh token
// back, so the original is reattached before saving.
func (c *Client) refresh(ctx context.Context, account *config.AccountInfo) (*config.AccountInfo, error) {
	if account.Token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: account %s", ErrRefreshTokenMissing, account.Username)
	}

	logger.Debug("reddit: refreshing oauth token for %s", account.Username)
	resp, err := oauth.RefreshAccessToken(
		ctx, c.authBaseURL+accessTokenEndpoint, clientID, "", userAgent,
		account.Token.RefreshToken,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	token := tokenFromResponse(resp)
	if token.RefreshToken == "" {
		token.RefreshToken = account.Token.RefreshToken
	}

	updated, err := c.store.SaveToken(account.Username, token)
	if err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return updated, nil
}

// Comments gathers every comment the account has made.
func (c *Client) Comments(ctx context.Context) ([]DeletionInfo, error) {
	endpoint := fmt.Sprintf("/user/%s/comments", c.Username)
	comments, err := gatherAll[Comment](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	records := make([]DeletionInfo, 0, len(comments))
	for _, comment := range comments {
		records = append(records, comment.DeletionInfo())
	}
	return records, nil
}

// Posts gathers every submission the account has made.
func (c *Client) Posts(ctx context.Context) ([]DeletionInfo, error) {
	endpoint := fmt.Sprintf("/user/%s/submitted", c.Username)
	posts, err := gatherAll[Post](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	records := make([]DeletionInfo, 0, len(posts))
	for _, post := range posts {
		records = append(records, post.DeletionInfo())
	}
	return records, nil
}

// Delete deletes one record by fullname.
func (c *Client) Delete(ctx context.Context, fullname string) error {
	form := url.Values{}
	form.Set("id", fullname)
	if _, err := c.Post(ctx, deleteEndpoint, form); err != nil {
		return fmt.Errorf("delete %s: %w", fullname, err)
	}
	logger.Debug("reddit: deleted %s", fullname)
	return nil
}

// tokenFromResponse converts a token endpoint response to the persisted
// token shape.
func tokenFromResponse(resp *oauth.TokenResponse) config.OAuthToken {
	return config.OAuthToken{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		Scope:        resp.Scope,
		RefreshToken: resp.RefreshToken,
	}
}
