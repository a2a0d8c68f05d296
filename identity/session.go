package identity

import (
	"time"

	"github.com/jrsteele09/go-token-handoff/internal/utils"
	"golang.org/x/oauth2"
)

// User is the provider's view of the signed in account.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Role               string     `json:"role,omitempty"`
	Aud                string     `json:"aud,omitempty"`
	EmailConfirmedAt   *time.Time `json:"email_confirmed_at,omitempty"`
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
}

// Confirmed reports whether the user has confirmed their email address
func (u *User) Confirmed() bool {
	return u != nil && !utils.Value(u.EmailConfirmedAt).IsZero()
}

// Session is a provider issued session. AccessToken is the bearer token the
// user carries to the chat assistant.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns the zero time when the provider did not say
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

func (s *Session) Expired(now time.Time) bool {
	exp := s.Expiry()
	return !exp.IsZero() && !now.Before(exp)
}

func (s *Session) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// normalise fills ExpiresAt from ExpiresIn when only the relative value was sent
func (s *Session) normalise(now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}
}

const extraUser = "user"

// OAuth2Token converts the session so it can flow through an oauth2.TokenSource.
func (s *Session) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry(),
	}
	if s.User != nil {
		tok = tok.WithExtra(map[string]any{extraUser: s.User})
	}
	return tok
}

// SessionFromOAuth2Token is the inverse of Session.OAuth2Token.
func SessionFromOAuth2Token(tok *oauth2.Token) *Session {
	if tok == nil {
		return nil
	}
	sess := &Session{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		sess.ExpiresAt = tok.Expiry.Unix()
	}
	if u, ok := tok.Extra(extraUser).(*User); ok {
		sess.User = u
	}
	return sess
}

// SignUpResult holds a session when the project confirms sign ups
// automatically, otherwise only the pending user.
type SignUpResult struct {
	Session *Session
	User    *User
}

func (r *SignUpResult) NeedsConfirmation() bool {
	return r.Session == nil || r.Session.AccessToken == ""
}

type SignUpRequest struct {
	Email         string
	Password      string
	RedirectTo    string
	CodeChallenge string
}

type MagicLinkRequest struct {
	Email         string
	RedirectTo    string
	CodeChallenge string
	CreateUser    bool
}
