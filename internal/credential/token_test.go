package credential

import (
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	items map[string]string
	gets  int
	err   error
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]string)}
}

func (m *memStore) Get(key string) (string, error) {
	m.gets++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.items[key]
	if !ok {
		return "", keyring.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.items[key] = value
	return nil
}

func (m *memStore) Delete(key string) error {
	if _, ok := m.items[key]; !ok {
		return keyring.ErrKeyNotFound
	}
	delete(m.items, key)
	return nil
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestAccessToken_NothingStored(t *testing.T) {
	src := NewTokenSource(newMemStore(), func() time.Time { return now })

	token, ok := src.AccessToken()
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestAccessToken_ReadsKeyringOnce(t *testing.T) {
	store := newMemStore()
	store.items[AccessTokenKey] = "opaque-token\n"
	src := NewTokenSource(store, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		token, ok := src.AccessToken()
		require.True(t, ok)
		assert.Equal(t, "opaque-token", token)
	}
	assert.Equal(t, 1, store.gets)
}

func TestAccessToken_JWTExpiry(t *testing.T) {
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{name: "valid", exp: now.Add(time.Hour), want: true},
		{name: "expired", exp: now.Add(-time.Minute), want: false},
		{name: "within skew", exp: now.Add(5 * time.Second), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.items[AccessTokenKey] = signed(t, tt.exp)
			src := NewTokenSource(store, func() time.Time { return now })

			_, ok := src.AccessToken()
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSaveAndClear(t *testing.T) {
	store := newMemStore()
	src := NewTokenSource(store, func() time.Time { return now })

	require.Error(t, src.Save("   "))
	require.NoError(t, src.Save("fresh"))
	assert.Equal(t, "fresh", store.items[AccessTokenKey])

	token, ok := src.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "fresh", token)

	require.NoError(t, src.Clear())
	_, ok = src.AccessToken()
	assert.False(t, ok)

	require.NoError(t, src.Clear(), "clearing twice is fine")
}

func TestSave_KeyringFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("locked")
	src := NewTokenSource(store, func() time.Time { return now })

	err := src.Save("token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving access token")
}

func TestExpiry(t *testing.T) {
	exp := now.Add(time.Hour)
	got, ok := Expiry(signed(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = Expiry("not-a-jwt")
	assert.False(t, ok)
}
