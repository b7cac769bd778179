// Package config persists per-account settings and OAuth tokens in a
// TOML file under the user config directory. The file is read and rewritten
// on every operation; nothing is cached between calls.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrAccountNotFound indicates no saved account matches the username.
var ErrAccountNotFound = errors.New("config: account not found")

// OAuthToken is the persisted token pair. A token without a refresh token
// cannot be renewed and the account must be re-authorized.
type OAuthToken struct {
	AccessToken  string `toml:"access_token"`
	TokenType    string `toml:"token_type"`
	ExpiresIn    int64  `toml:"expires_in"`
	Scope        string `toml:"scope"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// AccountInfo is one authorized account: its token, the absolute expiry of
// the access token, and optional deletion filter settings. Nil filter fields
// mean the filter is unset.
type AccountInfo struct {
	Username           string     `toml:"username"`
	Token              OAuthToken `toml:"token"`
	TokenExpires       int64      `toml:"token_expires"` // unix seconds
	ExcludedSubreddits []string   `toml:"excluded_subreddits,omitempty"`
	MinimumScore       *int       `toml:"minimum_score,omitempty"`
	MaxHours           *int       `toml:"max_hours,omitempty"`
}

// TokenExpired reports whether the access token's absolute expiry has passed.
func (a *AccountInfo) TokenExpired(now time.Time) bool {
	return a.TokenExpires <= now.Unix()
}

// fileConfig is the on-disk document shape.
type fileConfig struct {
	Accounts []AccountInfo `toml:"accounts"`
}

// Store is a file-backed account store keyed by username. Operations are
// read/modify/write on the whole file and are safe for concurrent use within
// a single process.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store at the given path. An empty path places the file
// at <user config dir>/redelete/redelete.toml, creating the directory if
// needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir := filepath.Join(configDir, "redelete")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		path = filepath.Join(dir, "redelete.toml")
	}
	return &Store{path: path}, nil
}

// Path returns the location of the config file.
func (s *Store) Path() string {
	return s.path
}

// Account returns the saved account for the username, or ErrAccountNotFound.
func (s *Store) Account(username string) (*AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Username == username {
			account := cfg.Accounts[i]
			return &account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
}

// SaveToken stores a freshly issued token for the username, setting the
// absolute expiry to now + expires_in. An existing account keeps its filter
// settings; a new account is created with none. Returns the persisted record.
func (s *Store) SaveToken(username string, token OAuthToken) (*AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}

	expires := time.Now().Unix() + token.ExpiresIn
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Username == username {
			cfg.Accounts[i].Token = token
			cfg.Accounts[i].TokenExpires = expires
			account := cfg.Accounts[i]
			if err := s.save(cfg); err != nil {
				return nil, err
			}
			return &account, nil
		}
	}

	account := AccountInfo{
		Username:     username,
		Token:        token,
		TokenExpires: expires,
	}
	cfg.Accounts = append(cfg.Accounts, account)
	if err := s.save(cfg); err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteAccount removes the account. Reports whether anything was removed.
func (s *Store) DeleteAccount(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return false, err
	}

	kept := cfg.Accounts[:0]
	for _, account := range cfg.Accounts {
		if account.Username != username {
			kept = append(kept, account)
		}
	}
	if len(kept) == len(cfg.Accounts) {
		return false, nil
	}
	cfg.Accounts = kept
	if err := s.save(cfg); err != nil {
		return false, err
	}
	return true, nil
}

// SetMinimumScore sets the minimum score filter. A score of zero or below
// clears the filter.
func (s *Store) SetMinimumScore(username string, score int) error {
	return s.update(username, func(account *AccountInfo) {
		if score > 0 {
			account.MinimumScore = &score
		} else {
			account.MinimumScore = nil
		}
	})
}

// SetMaxHours sets the age filter. Zero or below clears the filter.
func (s *Store) SetMaxHours(username string, hours int) error {
	return s.update(username, func(account *AccountInfo) {
		if hours > 0 {
			account.MaxHours = &hours
		} else {
			account.MaxHours = nil
		}
	})
}

// AddExcludedSubreddits adds subreddits to the exclusion list, skipping
// duplicates.
func (s *Store) AddExcludedSubreddits(username string, subreddits ...string) error {
	return s.update(username, func(account *AccountInfo) {
		for _, sub := range subreddits {
			if !contains(account.ExcludedSubreddits, sub) {
				account.ExcludedSubreddits = append(account.ExcludedSubreddits, sub)
			}
		}
	})
}

// RemoveExcludedSubreddits removes subreddits from the exclusion list.
func (s *Store) RemoveExcludedSubreddits(username string, subreddits ...string) error {
	return s.update(username, func(account *AccountInfo) {
		kept := account.ExcludedSubreddits[:0]
		for _, sub := range account.ExcludedSubreddits {
			if !contains(subreddits, sub) {
				kept = append(kept, sub)
			}
		}
		if len(kept) == 0 {
			account.ExcludedSubreddits = nil
			return
		}
		account.ExcludedSubreddits = kept
	})
}

// update applies fn to the named account and rewrites the file.
func (s *Store) update(username string, fn func(*AccountInfo)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Username == username {
			fn(&cfg.Accounts[i])
			return s.save(cfg)
		}
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, username)
}

// load reads the config file. A missing or empty file is an empty config.
func (s *Store) load() (*fileConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return &fileConfig{}, nil
	}

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// save rewrites the config file.
func (s *Store) save(cfg *fileConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
