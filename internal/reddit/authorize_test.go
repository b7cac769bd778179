package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardeaf/redelete/internal/config"
	"github.com/ardeaf/redelete/internal/oauth"
)

const authTokenBody = `{
	"access_token": "ACCESS_TOKEN",
	"token_type": "bearer",
	"expires_in": 3600,
	"scope": "history,edit,identity",
	"refresh_token": "REFRESH_TOKEN"
}`

// providerServer fakes the token and identity endpoints, counting token
// exchanges.
func providerServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc(accessTokenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		w.Write([]byte(authTokenBody))
	})
	mux.HandleFunc(identityEndpoint, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ACCESS_TOKEN", r.Header.Get("Authorization"))
		w.Write([]byte(`{"name": "ardeaf"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenCalls
}

// newTestAuthorizer wires an authorizer against the fake provider. The
// browser stub delivers the redirect that a real provider would issue,
// echoing the minted state unless overridden by echoState.
func newTestAuthorizer(
	t *testing.T, store *config.Store, provider *httptest.Server, echoQuery func(state string) string,
) *Authorizer {
	t.Helper()
	authorizer := NewAuthorizer(store)
	authorizer.authBaseURL = provider.URL
	authorizer.apiBaseURL = provider.URL
	authorizer.portStart = 18200
	authorizer.portEnd = 18210
	authorizer.waitTimeout = 5 * time.Second
	authorizer.openBrowser = func(authURL string) error {
		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		state := parsed.Query().Get("state")
		redirectURI := parsed.Query().Get("redirect_uri")
		go func() {
			resp, err := http.Get(redirectURI + "/?" + echoQuery(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
	return authorizer
}

func TestAuthorizer_Authorize(t *testing.T) {
	store := newTestStore(t)
	provider, tokenCalls := providerServer(t)
	authorizer := newTestAuthorizer(t, store, provider, func(state string) string {
		return "code=abc&state=" + state
	})

	username, err := authorizer.Authorize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ardeaf", username)
	assert.Equal(t, 1, *tokenCalls)

	account, err := store.Account("ardeaf")
	require.NoError(t, err)
	assert.Equal(t, "ACCESS_TOKEN", account.Token.AccessToken)
	assert.Equal(t, "REFRESH_TOKEN", account.Token.RefreshToken)
	assert.False(t, account.TokenExpired(time.Now()))
}

func TestAuthorizer_Authorize_StateMismatch(t *testing.T) {
	store := newTestStore(t)
	provider, tokenCalls := providerServer(t)
	authorizer := newTestAuthorizer(t, store, provider, func(_ string) string {
		return "code=abc&state=forged"
	})

	_, err := authorizer.Authorize(context.Background())

	require.ErrorIs(t, err, ErrStateMismatch)
	// The code must never reach the token endpoint, and nothing may be
	// persisted.
	assert.Zero(t, *tokenCalls)
	_, err = store.Account("ardeaf")
	assert.ErrorIs(t, err, config.ErrAccountNotFound)
}

func TestAuthorizer_Authorize_ProviderDenied(t *testing.T) {
	store := newTestStore(t)
	provider, tokenCalls := providerServer(t)
	authorizer := newTestAuthorizer(t, store, provider, func(_ string) string {
		return "error=access_denied"
	})

	_, err := authorizer.Authorize(context.Background())

	require.ErrorIs(t, err, oauth.ErrAuthorizationDenied)
	assert.Zero(t, *tokenCalls)
}

func TestAuthorizer_Authorize_BrowserFailureDoesNotAbort(t *testing.T) {
	store := newTestStore(t)
	provider, _ := providerServer(t)
	authorizer := newTestAuthorizer(t, store, provider, func(state string) string {
		return "code=abc&state=" + state
	})

	// The user can still visit the printed URL manually, so a browser open
	// failure only warns. The stub delivers the redirect and then fails.
	inner := authorizer.openBrowser
	authorizer.openBrowser = func(authURL string) error {
		_ = inner(authURL)
		return errors.New("no browser installed")
	}

	username, err := authorizer.Authorize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ardeaf", username)
}

func TestAuthorizer_BuildAuthURL(t *testing.T) {
	authorizer := NewAuthorizer(nil)

	authURL := authorizer.buildAuthURL("test-state-123", "http://localhost:8000")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "www.reddit.com", parsed.Host)
	assert.Equal(t, authorizeEndpoint, parsed.Path)

	query := parsed.Query()
	assert.Equal(t, clientID, query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "test-state-123", query.Get("state"))
	assert.Equal(t, "http://localhost:8000", query.Get("redirect_uri"))
	assert.Equal(t, "permanent", query.Get("duration"))
	assert.Equal(t, "history,edit,identity", query.Get("scope"))
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		echoed   string
		wantErr  bool
	}{
		{name: "equal", expected: "abcdefg", echoed: "abcdefg"},
		{name: "mismatch", expected: "abcdefg", echoed: "zzz", wantErr: true},
		{name: "case differs", expected: "abcdefg", echoed: "ABCDEFG", wantErr: true},
		{name: "trailing whitespace", expected: "abcdefg", echoed: "abcdefg ", wantErr: true},
		{name: "empty echoed", expected: "abcdefg", echoed: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateState(tt.expected, tt.echoed)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStateMismatch)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizer_ResolveUsername_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	authorizer := NewAuthorizer(nil)
	authorizer.apiBaseURL = server.URL

	_, err := authorizer.resolveUsername(context.Background(), "ACCESS_TOKEN")

	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizer_ResolveUsername_MissingName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id": "dp1yw"}`)
	}))
	defer server.Close()

	authorizer := NewAuthorizer(nil)
	authorizer.apiBaseURL = server.URL

	_, err := authorizer.resolveUsername(context.Background(), "ACCESS_TOKEN")

	require.ErrorIs(t, err, ErrDecode)
}
