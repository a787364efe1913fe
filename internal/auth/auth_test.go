package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken(Principal{Subject: "1", Name: "Amina", Role: RoleAdmin}, testSecret, time.Hour)
	require.NoError(t, err)

	p, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "Amina", p.ActorName())
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	tok, err := GenerateToken(Principal{Subject: "1", Role: RoleAdmin}, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken(Principal{Subject: "1", Role: RoleAdmin}, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActorNameFallsBackToSubject(t *testing.T) {
	assert.Equal(t, "42", Principal{Subject: "42"}.ActorName())
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(testSecret)(RequireAdmin(ok))

	adminTok, _ := GenerateToken(Principal{Subject: "1", Role: RoleAdmin}, testSecret, time.Hour)
	userTok, _ := GenerateToken(Principal{Subject: "2", Role: "volunteer"}, testSecret, time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"non admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
