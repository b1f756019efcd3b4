package account

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNoToken indicates the request carried no bearer token. Guests are a
// normal pricing case, so callers treat this as "no account".
var ErrNoToken = errors.New("account: no bearer token")

// TokenParser extracts the account id from a signed bearer token on the raw
// request. It only identifies the caller; authorization lives elsewhere.
type TokenParser struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// AccountID parses and validates the bearer token, returning the account id
// from the subject claim.
func (p TokenParser) AccountID(r *http.Request, now time.Time) (uuid.UUID, error) {
	if r == nil {
		return uuid.Nil, ErrNoToken
	}
	raw := bearerToken(r)
	if raw == "" {
		return uuid.Nil, ErrNoToken
	}
	if len(p.Secret) == 0 {
		return uuid.Nil, ErrNoToken
	}
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, p.Secret), jwt.WithValidate(false))
	if err != nil {
		return uuid.Nil, fmt.Errorf("account: parse token: %w", err)
	}
	if err := p.validate(tok, now); err != nil {
		return uuid.Nil, err
	}
	sub := strings.TrimSpace(tok.Subject())
	if sub == "" {
		return uuid.Nil, errors.New("account: token missing subject")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("account: token subject is not an account id: %w", err)
	}
	return id, nil
}

func (p TokenParser) validate(tok jwt.Token, now time.Time) error {
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if p.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.ClockSkew))
	}
	if p.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		options = append(options, jwt.WithAudience(p.Audience))
	}
	return jwt.Validate(tok, options...)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
