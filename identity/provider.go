package identity

import "context"

// Provider is the capability surface of the hosted identity provider that the
// handoff page uses. The protocol itself lives with the provider.
type Provider interface {
	SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SendMagicLink(ctx context.Context, req MagicLinkRequest) error
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error)
	SessionFromTokens(ctx context.Context, partial Session) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	UpdatePassword(ctx context.Context, accessToken, password string) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
}
