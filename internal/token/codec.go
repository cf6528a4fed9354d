// Package token mints and verifies the signed JWTs handed to clients.
//
// Every token carries a kind claim (access, refresh or reset) so a token
// minted for one purpose is never accepted for another. Tokens are signed
// with a shared HMAC secret; the algorithm is pinned at construction time and
// any other alg header is rejected as an invalid signature.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the purpose of a token.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

func (k Kind) valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset:
		return true
	}
	return false
}

// Decode failures. All are recoverable outcomes of attacker-controlled input.
var (
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: expired")
	ErrMalformed        = errors.New("token: malformed")
	ErrWrongKind        = errors.New("token: wrong kind")
)

// Claims is the payload of every token. Role is serialised as null when absent.
type Claims struct {
	Email string         `json:"email,omitempty"`
	Role  *string        `json:"role"`
	Kind  Kind           `json:"kind"`
	Extra map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as an account id.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrMalformed
	}
	return id, nil
}

// Issued is a signed token together with its expiry.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with one secret and algorithm.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec for one of HS256, HS384 or HS512.
func NewCodec(secret, alg string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: empty secret")
	}
	var method jwt.SigningMethod
	switch alg {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("token: unsupported algorithm %q", alg)
	}
	c := &Codec{secret: []byte(secret), method: method, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue signs claims with iat=now, exp=now+ttl and a fresh jti. Subject,
// email, role, kind and extra fields are taken from claims.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (Issued, error) {
	if !claims.Kind.valid() {
		return Issued{}, fmt.Errorf("token: invalid kind %q", claims.Kind)
	}
	if ttl <= 0 {
		return Issued{}, errors.New("token: ttl must be positive")
	}
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.ID = uuid.NewString()

	t := jwt.NewWithClaims(c.method, &claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign: %w", err)
	}
	return Issued{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Decode verifies raw and returns its claims. It fails with ErrInvalidSignature,
// ErrExpired (now >= exp) or ErrMalformed.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !claims.Kind.valid() || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// DecodeKind is Decode plus an explicit purpose check.
func (c *Codec) DecodeKind(raw string, kind Kind) (*Claims, error) {
	claims, err := c.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// Now exposes the codec clock so callers compute remaining lifetimes consistently.
func (c *Codec) Now() time.Time { return c.now() }

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
	return c.secret, nil
}
