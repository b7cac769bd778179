package reddit

import (
	"errors"
	"net/http"
)

// Error types for Reddit API interactions.
var (
	// ErrStateMismatch indicates the state echoed by the provider redirect
	// did not match the minted state token. The authorization code must not
	// be exchanged when this occurs.
	ErrStateMismatch = errors.New("reddit: oauth state token mismatch")

	// ErrRefreshTokenMissing indicates the stored token has no refresh
	// credential. The account must be re-authorized from scratch.
	ErrRefreshTokenMissing = errors.New("reddit: refresh token missing, re-authorize the account")

	// ErrDecode indicates a listing response or record payload could not be
	// decoded.
	ErrDecode = errors.New("reddit: malformed listing response")

	// ErrUnauthorised indicates the access token was rejected.
	ErrUnauthorised = errors.New("reddit: unauthorised")

	// ErrForbidden indicates the token lacks the required scope.
	ErrForbidden = errors.New("reddit: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("reddit: not found")

	// ErrRateLimited indicates the request was throttled by Reddit.
	ErrRateLimited = errors.New("reddit: rate limited")

	// ErrServerError indicates a server-side error from Reddit.
	ErrServerError = errors.New("reddit: server error")
)

// WrapError converts an HTTP status code to an appropriate error. Returns
// nil for success statuses.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		if statusCode >= 400 {
			return errors.New("reddit: request failed")
		}
		return nil
	}
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}
