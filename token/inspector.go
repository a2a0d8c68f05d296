package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-handoff/internal/config"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is what the page shows about the bearer token. Verified is false
// when no key material is configured and the token was only decoded.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	Verified  bool      `json:"verified"`
}

func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// accessClaims is the shape of a GoTrue access token
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwtlib.RegisteredClaims
}

func (ac *accessClaims) toClaims(verified bool) *Claims {
	c := &Claims{
		Subject:  ac.Subject,
		Email:    ac.Email,
		Role:     ac.Role,
		Issuer:   ac.Issuer,
		Verified: verified,
	}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	if ac.IssuedAt != nil {
		c.IssuedAt = ac.IssuedAt.Time
	}
	return c
}

type mode int

const (
	modeUnverified mode = iota
	modeSecret
	modeKeySet
)

// Inspector decodes access tokens issued by the identity provider
type Inspector struct {
	mode     mode
	secret   []byte
	audience string
	verifier *oidc.IDTokenVerifier
}

type Option func(*inspectorOptions)

type inspectorOptions struct {
	keySet oidc.KeySet
}

// WithKeySet verifies against the given keys instead of fetching the JWKS URL
func WithKeySet(ks oidc.KeySet) Option {
	return func(o *inspectorOptions) {
		o.keySet = ks
	}
}

// NewInspector picks the strongest verification the configuration allows:
// the shared HS256 secret, then the provider's JWKS, then plain decoding.
func NewInspector(ctx context.Context, cfg config.IdentityProvider, opts ...Option) *Inspector {
	var o inspectorOptions
	for _, opt := range opts {
		opt(&o)
	}

	i := &Inspector{audience: cfg.Audience}
	switch {
	case cfg.JWTSecret != "":
		i.mode = modeSecret
		i.secret = []byte(cfg.JWTSecret)
	case o.keySet != nil || cfg.JWKSURL != "":
		keySet := o.keySet
		if keySet == nil {
			keySet = oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		}
		issuer := ""
		if cfg.URL != "" {
			issuer = strings.TrimRight(cfg.URL, "/") + "/auth/v1"
		}
		i.mode = modeKeySet
		i.verifier = oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:             cfg.Audience,
			SkipClientIDCheck:    cfg.Audience == "",
			SkipIssuerCheck:      issuer == "",
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
			Now:                  func() time.Time { return NowTimeFunc() },
		})
	}
	return i
}

func (i *Inspector) Verifies() bool {
	return i.mode != modeUnverified
}

// Inspect returns the claims of rawToken. Errors unwrap to ErrEmptyToken,
// ErrTokenExpired or ErrInvalidToken.
func (i *Inspector) Inspect(ctx context.Context, rawToken string) (*Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperrors.ErrEmptyToken
	}

	switch i.mode {
	case modeSecret:
		return i.inspectWithSecret(rawToken)
	case modeKeySet:
		return i.inspectWithKeySet(ctx, rawToken)
	default:
		var ac accessClaims
		if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, &ac); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
		}
		return ac.toClaims(false), nil
	}
}

func (i *Inspector) inspectWithSecret(rawToken string) (*Claims, error) {
	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	}
	if i.audience != "" {
		parserOpts = append(parserOpts, jwtlib.WithAudience(i.audience))
	}

	var ac accessClaims
	token, err := jwtlib.ParseWithClaims(rawToken, &ac, func(*jwtlib.Token) (any, error) {
		return i.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return ac.toClaims(true), nil
}

func (i *Inspector) inspectWithKeySet(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := i.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	var ac accessClaims
	if err := idToken.Claims(&ac); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	claims := ac.toClaims(true)
	claims.Subject = idToken.Subject
	claims.Issuer = idToken.Issuer
	claims.ExpiresAt = idToken.Expiry
	claims.IssuedAt = idToken.IssuedAt
	return claims, nil
}
