// Package token signs and verifies the self-contained bearer tokens handed to
// clients. Access and refresh tokens are HS256 JWTs signed with two distinct
// secrets.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, unexpected
	// algorithms and tokens of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned only for tokens whose signature is valid.
	ErrExpiredToken = errors.New("token expired")
)

// Kind selects which secret and TTL a token is issued or verified with.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	SubjectID string
	Nonce     string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now is used for issuance and expiry checks; defaults to time.Now.
	Now func() time.Time
}

// Codec issues and verifies access and refresh tokens. It is safe for concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           cfg.Now,
	}, nil
}

// IssueAccessToken returns a short-lived access token for subjectID.
func (c *Codec) IssueAccessToken(subjectID string) (string, time.Time, error) {
	return c.issue(Access, subjectID, "")
}

// IssueRefreshToken returns a long-lived refresh token for subjectID. Every
// call embeds a fresh random nonce, so two tokens for the same subject issued
// in the same second still differ.
func (c *Codec) IssueRefreshToken(subjectID string) (string, time.Time, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate nonce: %w", err)
	}
	return c.issue(Refresh, subjectID, nonce.String())
}

// RefreshTTL is the lifetime of refresh tokens, which is also the session TTL.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) issue(kind Kind, subjectID, nonce string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("token: empty subject")
	}

	now := c.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl(kind))

	claims := jwtClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.issuer,
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm, issuer, kind and expiry of raw.
func (c *Codec) Verify(raw string, kind Kind) (*Claims, error) {
	if kind != Access && kind != Refresh {
		return nil, fmt.Errorf("token: unknown kind %q", kind)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret(kind), nil
	})
	if err != nil {
		// golang-jwt reports expiry only after the signature has been verified.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if kind == Refresh && claims.ID == "" {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		SubjectID: claims.Subject,
		Nonce:     claims.ID,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}

func (c *Codec) secret(kind Kind) []byte {
	if kind == Refresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

func (c *Codec) ttl(kind Kind) time.Duration {
	if kind == Refresh {
		return c.refreshTTL
	}
	return c.accessTTL
}
