package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardeaf/redelete/internal/config"
)

const testUser = "TestUser"

const refreshedTokenBody = `{
	"access_token": "REFRESHED_ACCESS_TOKEN",
	"token_type": "bearer",
	"expires_in": 3600,
	"scope": "history,edit,identity"
}`

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "redelete.toml"))
	require.NoError(t, err)
	return store
}

func testToken(expiresIn int64) config.OAuthToken {
	return config.OAuthToken{
		AccessToken:  "ACCESS_TOKEN",
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		Scope:        "history,edit,identity",
		RefreshToken: "REFRESH_TOKEN",
	}
}

// newTestClient builds a client against test servers with an effectively
// unlimited rate budget.
func newTestClient(t *testing.T, store *config.Store, authURL, apiURL string) *Client {
	t.Helper()
	client := NewClient(store, testUser)
	client.authBaseURL = authURL
	client.apiBaseURL = apiURL
	client.rateLimiter = NewRateLimiterWithBudget(100000, time.Second)
	return client
}

func TestClient_Get_AttachesBearerToken(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(3600))
	require.NoError(t, err)

	var gotAuth, gotAgent, gotQuery string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	client := newTestClient(t, store, api.URL, api.URL)
	params := url.Values{}
	params.Set("limit", "100")
	body, err := client.Get(context.Background(), "/api/v1/me", params)

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, body)
	assert.Equal(t, "Bearer ACCESS_TOKEN", gotAuth)
	assert.Equal(t, userAgent, gotAgent)
	assert.Equal(t, "limit=100", gotQuery)
}

func TestClient_ValidToken_NoRefreshCall(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(3600))
	require.NoError(t, err)

	tokenCalls := 0
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls++
		w.Write([]byte(refreshedTokenBody))
	}))
	defer auth.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	client := newTestClient(t, store, auth.URL, api.URL)
	_, err = client.Get(context.Background(), "/api/v1/me", nil)

	require.NoError(t, err)
	assert.Zero(t, tokenCalls)

	account, err := store.Account(testUser)
	require.NoError(t, err)
	assert.Equal(t, "ACCESS_TOKEN", account.Token.AccessToken)
}

func TestClient_ExpiredToken_RefreshesOnce(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(0)) // already expired
	require.NoError(t, err)

	tokenCalls := 0
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "REFRESH_TOKEN", r.PostForm.Get("refresh_token"))
		w.Write([]byte(refreshedTokenBody))
	}))
	defer auth.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	client := newTestClient(t, store, auth.URL, api.URL)
	_, err = client.Get(context.Background(), "/api/v1/me", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, "Bearer REFRESHED_ACCESS_TOKEN", gotAuth)

	// The refreshed record keeps the original refresh token even though the
	// provider's response omitted it.
	account, err := store.Account(testUser)
	require.NoError(t, err)
	assert.Equal(t, "REFRESHED_ACCESS_TOKEN", account.Token.AccessToken)
	assert.Equal(t, "REFRESH_TOKEN", account.Token.RefreshToken)
	assert.False(t, account.TokenExpired(time.Now()))

	// The next call sees the refreshed token; no further refresh happens.
	_, err = client.Get(context.Background(), "/api/v1/me", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestClient_ExpiredToken_NoRefreshToken(t *testing.T) {
	store := newTestStore(t)
	token := testToken(0)
	token.RefreshToken = ""
	_, err := store.SaveToken(testUser, token)
	require.NoError(t, err)

	client := newTestClient(t, store, "http://unused.invalid", "http://unused.invalid")
	_, err = client.Get(context.Background(), "/api/v1/me", nil)

	require.ErrorIs(t, err, ErrRefreshTokenMissing)
}

func TestClient_UnknownAccount(t *testing.T) {
	store := newTestStore(t)

	client := newTestClient(t, store, "http://unused.invalid", "http://unused.invalid")
	_, err := client.Get(context.Background(), "/api/v1/me", nil)

	require.ErrorIs(t, err, config.ErrAccountNotFound)
}

func TestClient_Get_ErrorStatus(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(3600))
	require.NoError(t, err)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer api.Close()

	client := newTestClient(t, store, api.URL, api.URL)
	_, err = client.Get(context.Background(), "/api/v1/me", nil)

	require.ErrorIs(t, err, ErrUnauthorised)
}

func TestClient_Get_RateLimitedRecordsBackoff(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(3600))
	require.NoError(t, err)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer api.Close()

	client := newTestClient(t, store, api.URL, api.URL)
	_, err = client.Get(context.Background(), "/api/v1/me", nil)

	require.ErrorIs(t, err, ErrRateLimited)
	assert.False(t, client.rateLimiter.Allow())
}

func TestClient_Delete(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveToken(testUser, testToken(3600))
	require.NoError(t, err)

	var gotPath, gotID string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotID = r.PostForm.Get("id")
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := newTestClient(t, store, api.URL, api.URL)
	err = client.Delete(context.Background(), "t1_abc123")

	require.NoError(t, err)
	assert.Equal(t, "/api/del", gotPath)
	assert.Equal(t, "t1_abc123", gotID)
}
