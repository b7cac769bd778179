// Package oauth implements the local half of the OAuth2 authorization-code
// flow: a single-shot callback server that captures the provider redirect,
// the token endpoint exchange, and a browser launcher.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ardeaf/redelete/internal/logger"
)

// Callback server errors.
var (
	// ErrNoPortAvailable indicates no port in the requested range could be
	// bound. The user must free a port and retry the authorization.
	ErrNoPortAvailable = errors.New("oauth: no port available in range")

	// ErrMalformedRedirect indicates the provider redirect was missing the
	// code or state query parameter.
	ErrMalformedRedirect = errors.New("oauth: malformed redirect, missing code or state")

	// ErrAuthorizationDenied indicates the provider reported an error
	// instead of an authorization code.
	ErrAuthorizationDenied = errors.New("oauth: authorization denied")

	// ErrWaitTimeout indicates no redirect arrived within the wait window.
	ErrWaitTimeout = errors.New("oauth: timed out waiting for redirect")
)

// Redirect holds the query parameters captured from a successful provider
// redirect.
type Redirect struct {
	Code  string
	State string
}

// CallbackServer serves exactly one HTTP request: the provider's OAuth2
// redirect. The listening port is bound at construction time so the redirect
// URI is known before the browser is opened, and released once the redirect
// has been captured.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server
	port     int

	once    sync.Once
	results chan result
}

type result struct {
	redirect *Redirect
	err      error
}

// NewCallbackServer binds the first free port in the inclusive range
// [portStart, portEnd]. Returns ErrNoPortAvailable if every port in the
// range is taken.
func NewCallbackServer(portStart, portEnd int) (*CallbackServer, error) {
	for port := portStart; port <= portEnd; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			logger.Debug("oauth: port %d unavailable: %v", port, err)
			continue
		}

		s := &CallbackServer{
			listener: listener,
			port:     port,
			results:  make(chan result, 1),
		}
		s.server = &http.Server{
			Handler:           http.HandlerFunc(s.handleRedirect),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w %d-%d", ErrNoPortAvailable, portStart, portEnd)
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}

// RedirectURI returns the redirect URI the provider should send the user
// back to. It must match the URI registered with the OAuth app.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Wait serves requests until the first redirect arrives, then shuts the
// server down and returns the outcome. Requests after the first are not
// serviced. A zero timeout waits forever.
//
// The listening socket is released before Wait returns, on success and on
// failure, so the port is immediately reusable.
func (s *CallbackServer) Wait(timeout time.Duration) (*Redirect, error) {
	defer s.Stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-s.results:
		return res.redirect, res.err
	case err := <-serveErr:
		return nil, fmt.Errorf("oauth: callback server: %w", err)
	case <-timeoutCh:
		return nil, ErrWaitTimeout
	}
}

// Stop shuts the server down and releases the port. Safe to call more than
// once.
func (s *CallbackServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

// handleRedirect parses the redirect query string and records the outcome.
// Only the first request is honored.
func (s *CallbackServer) handleRedirect(w http.ResponseWriter, r *http.Request) {
	redirect, err := ParseRedirect(r.URL.RawQuery)

	s.once.Do(func() {
		s.results <- result{redirect: redirect, err: err}
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "<html><body><p>Authorization failed. You can close this window.</p></body></html>")
		return
	}
	fmt.Fprint(w, "<html><body><p>Authorization complete. You can close this window.</p></body></html>")
}

// ParseRedirect extracts the authorization code and state from a redirect
// query string. Duplicate keys resolve to the last value, mirroring standard
// query-string semantics. A provider-reported error yields
// ErrAuthorizationDenied with a human-readable reason; a redirect missing
// code or state yields ErrMalformedRedirect.
func ParseRedirect(rawQuery string) (*Redirect, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRedirect, err)
	}

	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[len(vals)-1]
		}
	}

	if code, ok := params["error"]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, describeProviderError(code))
	}

	code, hasCode := params["code"]
	state, hasState := params["state"]
	if !hasCode || !hasState {
		return nil, ErrMalformedRedirect
	}

	return &Redirect{Code: code, State: state}, nil
}

// describeProviderError maps known provider error codes to diagnostics.
func describeProviderError(code string) string {
	switch code {
	case "access_denied":
		return "user declined the authorization request"
	case "unsupported_response_type":
		return "response_type parameter was incorrect"
	case "invalid_scope":
		return "requested scope was invalid"
	case "invalid_request":
		return "authorization request was invalid"
	default:
		return fmt.Sprintf("unknown provider error %q", code)
	}
}
