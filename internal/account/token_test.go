package account_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/print24/pricing/internal/account"
)

var testSecret = []byte("pricing-test-secret")

func signedToken(t *testing.T, sub string, now time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(sub).
		Issuer("print24").
		Audience([]string{"pricing"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, testSecret))
	require.NoError(t, err)
	return string(signed)
}

func TestAccountIDFromBearerToken(t *testing.T) {
	now := time.Now()
	id := uuid.New()
	parser := account.TokenParser{Secret: testSecret, Issuer: "print24", Audience: "pricing"}

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, id.String(), now))

	got, err := parser.AccountID(r, now)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestAccountIDMissingTokenIsGuest(t *testing.T) {
	parser := account.TokenParser{Secret: testSecret}
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := parser.AccountID(r, time.Now())
	require.True(t, errors.Is(err, account.ErrNoToken))
}

func TestAccountIDRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	parser := account.TokenParser{Secret: testSecret, Issuer: "print24", Audience: "pricing"}
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, uuid.NewString(), now.Add(-2*time.Hour)))
	_, err := parser.AccountID(r, now)
	require.Error(t, err)
	require.False(t, errors.Is(err, account.ErrNoToken))
}

func TestAccountIDRejectsNonUUIDSubject(t *testing.T) {
	now := time.Now()
	parser := account.TokenParser{Secret: testSecret, Issuer: "print24", Audience: "pricing"}
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, "not-a-uuid", now))
	_, err := parser.AccountID(r, now)
	require.Error(t, err)
}
