package login

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestValidateToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{"empty", "", "token is required"},
		{"blank", "   ", "token is required"},
		{"opaque", "opaque-token", ""},
		{"valid jwt", signed(t, now.Add(time.Hour)), ""},
		{"expired jwt", signed(t, now.Add(-time.Minute)), "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token, now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStart_ResetsForm(t *testing.T) {
	m := New(80, 24)
	assert.Empty(t, m.View())

	m.fb.token = "leftover"
	m.Start()
	assert.Empty(t, m.fb.token)
	assert.Contains(t, m.View(), "Log in")
}
