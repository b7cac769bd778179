package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenResponse is the token endpoint response body. Expiry is derived from
// ExpiresIn at decode time.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`

	Expiry time.Time `json:"-"`
}

// ExchangeCodeForTokens exchanges an authorization code for an access/refresh
// token pair using grant_type=authorization_code. The client credentials are
// sent as HTTP Basic auth; providers with public clients use an empty secret.
func ExchangeCodeForTokens(
	ctx context.Context,
	tokenURL, clientID, clientSecret, userAgent,
	code, redirectURI string,
) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)

	return postTokenRequest(ctx, tokenURL, clientID, clientSecret, userAgent, data)
}

// RefreshAccessToken obtains a new access token using
// grant_type=refresh_token. Providers are not required to echo the refresh
// token back; callers must reattach it before persisting.
func RefreshAccessToken(
	ctx context.Context,
	tokenURL, clientID, clientSecret, userAgent,
	refreshToken string,
) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return postTokenRequest(ctx, tokenURL, clientID, clientSecret, userAgent, data)
}

func postTokenRequest(
	ctx context.Context,
	tokenURL, clientID, clientSecret, userAgent string,
	data url.Values,
) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	// Calculate expiry
	if tokenResp.ExpiresIn > 0 {
		tokenResp.Expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &tokenResp, nil
}
