package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")

	errWrongKind = errors.New("token kind mismatch")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Codec struct {
	kind   Kind
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type Option func(*Codec)

func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec derives the signing key from secret and kind, so a token minted for
// one kind never verifies as the other even if both secrets are the same.
func NewCodec(kind Kind, secret []byte, ttl time.Duration, opts ...Option) *Codec {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("auth:" + string(kind)))

	c := &Codec{
		kind: kind,
		key:  mac.Sum(nil),
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Kind() Kind          { return c.kind }
func (c *Codec) TTL() time.Duration { return c.ttl }

func (c *Codec) typ() string {
	if c.kind == KindRefresh {
		return "rt+jwt"
	}
	return "at+jwt"
}

func (c *Codec) Sign(subject, email string) (string, *Claims, error) {
	return c.SignWithTTL(subject, email, c.ttl)
}

func (c *Codec) SignWithTTL(subject, email string, ttl time.Duration) (string, *Claims, error) {
	now := c.now().UTC()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{string(c.kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jwthelp.NewJTI(),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tkn.Header["typ"] = c.typ()
	signed, err := tkn.SignedString(c.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", c.kind, err)
	}
	return signed, claims, nil
}

func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(c.kind)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if typ, _ := t.Header["typ"].(string); typ != c.typ() {
			return nil, errWrongKind
		}
		return c.key, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return &claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, errWrongKind),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
