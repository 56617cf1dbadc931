package credential

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenKey is the keyring key the access token is stored under.
const AccessTokenKey = "access-token"

// expirySkew treats a token as expired slightly before its exp claim so a
// request does not race the deadline.
const expirySkew = 10 * time.Second

// Store is the subset of the keyring the token source needs.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type systemStore struct{}

func (systemStore) Get(key string) (string, error) { return Get(key) }
func (systemStore) Set(key, value string) error    { return Set(key, value) }
func (systemStore) Delete(key string) error        { return Delete(key) }

// KeyringTokenSource serves the access token from the keyring. The token is
// read once and cached; Save and Clear keep the cache and keyring in step.
type KeyringTokenSource struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	loaded bool
	token  string
}

// NewKeyringTokenSource returns a token source backed by the system keyring.
func NewKeyringTokenSource() *KeyringTokenSource {
	return NewTokenSource(systemStore{}, time.Now)
}

// NewTokenSource returns a token source backed by store.
func NewTokenSource(store Store, now func() time.Time) *KeyringTokenSource {
	if now == nil {
		now = time.Now
	}
	return &KeyringTokenSource{store: store, now: now}
}

// AccessToken returns the stored token. ok is false when nothing is stored
// or the token is a JWT whose exp claim has passed.
func (s *KeyringTokenSource) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		token, err := s.store.Get(AccessTokenKey)
		if err != nil {
			token = ""
		}
		s.token = strings.TrimSpace(token)
		s.loaded = true
	}

	if s.token == "" || expired(s.token, s.now()) {
		return "", false
	}
	return s.token, true
}

// Save stores a new access token.
func (s *KeyringTokenSource) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("access token is empty")
	}
	if err := s.store.Set(AccessTokenKey, token); err != nil {
		return fmt.Errorf("saving access token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Clear removes the stored access token.
func (s *KeyringTokenSource) Clear() error {
	if err := s.store.Delete(AccessTokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing access token: %w", err)
	}

	s.mu.Lock()
	s.token = ""
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Expiry returns the exp claim of a JWT token. ok is false for opaque
// tokens and JWTs without exp.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// expired reports whether token carries an exp claim that has passed.
// Opaque tokens never expire locally; the server rejects them instead.
func expired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp.Add(-expirySkew))
}
