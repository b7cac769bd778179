package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/logger"
	"github.com/ardeaf/redelete/internal/oauth"
)

// Authorization flow constants. The callback listener scans a small fixed
// port window; the redirect URI registered with the Reddit app is
// http://localhost:8000, so in practice the first port is the one used.
const (
	authorizeEndpoint = "/api/v1/authorize"

	callbackPortStart = 8000
	callbackPortEnd   = 8010
)

// scopes are the OAuth scopes the app requests: listing history, editing
// (deleting) records, and resolving the account identity.
var scopes = []string{"history", "edit", "identity"}

// Authorizer drives the OAuth2 authorization-code flow for a new account:
// browser handoff, redirect capture, state validation, code exchange,
// identity resolution, and the single terminal save into the account store.
type Authorizer struct {
	store *config.Store

	authBaseURL string
	apiBaseURL  string
	openBrowser func(string) error
	waitTimeout time.Duration
	portStart   int
	portEnd     int
}

// NewAuthorizer creates an authorizer persisting into the given store.
func NewAuthorizer(store *config.Store) *Authorizer {
	return &Authorizer{
		store:       store,
		authBaseURL: defaultAuthBaseURL,
		apiBaseURL:  defaultAPIBaseURL,
		openBrowser: oauth.OpenBrowser,
		portStart:   callbackPortStart,
		portEnd:     callbackPortEnd,
	}
}

// Authorize runs the full flow and returns the authenticated username. Any
// failure aborts the flow with nothing persisted; the store is written
// exactly once, after the identity has been resolved.
func (a *Authorizer) Authorize(ctx context.Context) (string, error) {
	state := uuid.New().String()

	server, err := oauth.NewCallbackServer(a.portStart, a.portEnd)
	if err != nil {
		return "", fmt.Errorf("please free a port in the %d-%d range and retry: %w",
			a.portStart, a.portEnd, err)
	}
	defer server.Stop()

	redirectURI := server.RedirectURI()
	authURL := a.buildAuthURL(state, redirectURI)

	logger.Info("Opening browser, please authorize redelete to access your account.")
	logger.Info("If the browser doesn't open, visit:\n%s", authURL)
	if err := a.openBrowser(authURL); err != nil {
		// Not fatal; the user can visit the printed URL manually.
		logger.Warn("failed to open browser: %v", err)
	}

	redirect, err := server.Wait(a.waitTimeout)
	if err != nil {
		return "", err
	}

	if err := validateState(state, redirect.State); err != nil {
		return "", err
	}

	resp, err := oauth.ExchangeCodeForTokens(
		ctx, a.authBaseURL+accessTokenEndpoint, clientID, "", userAgent,
		redirect.Code, redirectURI,
	)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	token := tokenFromResponse(resp)

	username, err := a.resolveUsername(ctx, token.AccessToken)
	if err != nil {
		return "", err
	}

	if _, err := a.store.SaveToken(username, token); err != nil {
		return "", fmt.Errorf("save account: %w", err)
	}
	logger.Info("Saved account <%s> into %s", username, a.store.Path())
	return username, nil
}

// buildAuthURL constructs the provider authorization URL with the minted
// state token embedded.
func (a *Authorizer) buildAuthURL(state, redirectURI string) string {
	params := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"state":         {state},
		"redirect_uri":  {redirectURI},
		// Reddit-specific: required for a refresh token to be issued
		"duration": {"permanent"},
		"scope":    {strings.Join(scopes, ",")},
	}
	return a.authBaseURL + authorizeEndpoint + "?" + params.Encode()
}

// validateState compares the echoed state byte-for-byte against the minted
// one. A mismatch means the redirect cannot be trusted and the code must not
// be exchanged.
func validateState(expected, echoed string) error {
	if expected != echoed {
		return fmt.Errorf("%w: expected %q, received %q", ErrStateMismatch, expected, echoed)
	}
	return nil
}

// resolveUsername fetches the authenticated account's name from the identity
// endpoint using the freshly issued access token.
func (a *Authorizer) resolveUsername(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, a.apiBaseURL+identityEndpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read identity response: %w", err)
	}
	if err := WrapError(resp.StatusCode); err != nil {
		return "", fmt.Errorf("%w: identity endpoint returned status %d", err, resp.StatusCode)
	}

	var user struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("decode identity response: %w", err)
	}
	if user.Name == "" {
		return "", fmt.Errorf("%w: identity response missing name", ErrDecode)
	}
	return user.Name, nil
}
