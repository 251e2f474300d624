// Package session owns the credential and identity of the signed-in user.
// Both are persisted to a kv.Store and rehydrated when the store is created.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/argscan/argscan/internal/cli/kv"
)

// Persisted keys
const (
	TokenKey    = "token"
	IdentityKey = "userInfo"
)

// Role is the user's authorization level
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity is the cached profile of the signed-in user
type Identity struct {
	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

// IdentityFetcher calls the "current user" endpoint
type IdentityFetcher interface {
	Me(ctx context.Context) (json.RawMessage, error)
}

// Store holds the session in memory and mirrors every mutation to kv
type Store struct {
	kv  kv.Store
	log zerolog.Logger

	mu       sync.RWMutex
	token    string
	identity *Identity
}

// New creates a store and rehydrates it from kv. Startup never fails:
// unreadable values are logged and treated as absent, and a corrupted
// identity value is removed.
func New(store kv.Store, log zerolog.Logger) *Store {
	s := &Store{kv: store, log: log}

	token, ok, err := store.Get(TokenKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted token")
	} else if ok {
		s.token = token
	}

	raw, ok, err := store.Get(IdentityKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted user info")
		return s
	}
	if !ok {
		return s
	}

	identity, err := decodeIdentity([]byte(raw))
	if err != nil {
		log.Warn().Err(err).Msg("Discarding corrupted user info")
		if err := store.Delete(IdentityKey); err != nil {
			log.Warn().Err(err).Msg("Failed to remove corrupted user info")
		}
		return s
	}
	s.identity = identity

	return s
}

// decodeIdentity parses a persisted identity; nil means absent
func decodeIdentity(data []byte) (*Identity, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || trimmed == "undefined" {
		return nil, nil
	}

	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &identity, nil
}

// Credential returns the bearer token, or "" when logged out
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the cached profile, or nil when absent
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// SetCredential replaces the token. The identity is left untouched.
func (s *Store) SetCredential(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(TokenKey, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	s.token = token
	return nil
}

// SetIdentity replaces the profile with any JSON-serializable value
func (s *Store) SetIdentity(v any) error {
	data, identity, err := encodeIdentity(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(IdentityKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist user info: %w", err)
	}
	s.identity = identity
	return nil
}

// Establish stores a freshly issued token and its profile as one action
func (s *Store) Establish(token string, identity any) error {
	data, decoded, err := encodeIdentity(identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// memory changes only once both keys are stored
	if err := s.kv.Set(TokenKey, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.kv.Set(IdentityKey, string(data)); err != nil {
		// a token without its profile is not a session
		_ = s.kv.Delete(TokenKey)
		s.token = ""
		s.identity = nil
		return fmt.Errorf("failed to persist user info: %w", err)
	}
	s.token = token
	s.identity = decoded
	return nil
}

func encodeIdentity(v any) ([]byte, *Identity, error) {
	var data []byte
	switch val := v.(type) {
	case json.RawMessage:
		data = val
	case []byte:
		data = val
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal user info: %w", err)
		}
	}
	if len(data) == 0 {
		data = []byte("null")
	}

	identity, err := decodeIdentity(data)
	if err != nil {
		return nil, nil, err
	}
	return data, identity, nil
}

// Clear removes the session from memory and kv. It is idempotent; memory is
// always cleared even when kv fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.identity = nil

	return errors.Join(
		s.kv.Delete(TokenKey),
		s.kv.Delete(IdentityKey),
	)
}

// IsLoggedIn reports whether a credential is present
func (s *Store) IsLoggedIn() bool {
	return s.Credential() != ""
}

// Role returns the user's role, USER when no identity is cached
func (s *Store) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.Role == "" {
		return RoleUser
	}
	return s.identity.Role
}

// IsAdmin reports whether the cached identity has the ADMIN role
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == RoleAdmin
}

func (s *Store) Username() string {
	if id := s.Identity(); id != nil {
		return id.Username
	}
	return ""
}

func (s *Store) Email() string {
	if id := s.Identity(); id != nil {
		return id.Email
	}
	return ""
}

// FetchIdentity refreshes the profile from the server. On failure the
// session is left as it was and the error is returned.
func (s *Store) FetchIdentity(ctx context.Context, fetcher IdentityFetcher) (*Identity, error) {
	data, err := fetcher.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.SetIdentity(data); err != nil {
		return nil, err
	}
	return s.Identity(), nil
}
