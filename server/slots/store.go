package slots

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	// TokenCookie holds the sealed session, the equivalent of a localStorage entry
	TokenCookie = "handoff_token"
	// ReturnToCookie holds the raw returnTo of this browsing session
	ReturnToCookie = "handoff_return_to"
	// FlowCookie names the pending magic link flow
	FlowCookie = "handoff_flow"

	// browsers drop cookies larger than this
	maxCookieBytes = 4000
)

// Store reads and writes the per-browser slots. Every write overwrites.
type Store struct {
	sealer      *Sealer
	tokenMaxAge time.Duration
	flowMaxAge  time.Duration
}

func NewStore(sealer *Sealer, tokenMaxAge, flowMaxAge time.Duration) *Store {
	return &Store{
		sealer:      sealer,
		tokenMaxAge: tokenMaxAge,
		flowMaxAge:  flowMaxAge,
	}
}

// SaveToken persists the session so the token survives a browser restart.
func (s *Store) SaveToken(w http.ResponseWriter, r *http.Request, sess *identity.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return apperrors.ErrEmptyToken
	}
	value, err := s.sealer.Seal(TokenCookie, sess)
	if err != nil {
		return err
	}
	if len(TokenCookie)+len(value) > maxCookieBytes {
		return fmt.Errorf("%w: token too large to store", apperrors.ErrInvalidToken)
	}
	http.SetCookie(w, s.cookie(r, TokenCookie, value, s.tokenMaxAge))
	return nil
}

// LoadToken returns ErrSessionNotFound when nothing was saved. A slot that
// fails to open is reported as ErrInvalidToken and should be cleared.
func (s *Store) LoadToken(r *http.Request) (*identity.Session, error) {
	c, err := r.Cookie(TokenCookie)
	if err != nil || c.Value == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	var sess identity.Session
	if err := s.sealer.Open(TokenCookie, c.Value, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *Store) ClearToken(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.expired(r, TokenCookie))
}

// RememberReturnTo stores the raw value; it is validated only when used.
func (s *Store) RememberReturnTo(w http.ResponseWriter, r *http.Request, raw string) {
	if raw == "" {
		return
	}
	value := base64.RawURLEncoding.EncodeToString([]byte(raw))
	if len(value) > maxCookieBytes {
		log.Warn().Int("length", len(raw)).Msg("returnTo too long to remember")
		return
	}
	// session cookie, gone when the browser closes
	http.SetCookie(w, s.cookie(r, ReturnToCookie, value, 0))
}

func (s *Store) ReturnTo(r *http.Request) string {
	c, err := r.Cookie(ReturnToCookie)
	if err != nil {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Store) SetFlow(w http.ResponseWriter, r *http.Request, flowID string) {
	http.SetCookie(w, s.cookie(r, FlowCookie, flowID, s.flowMaxAge))
}

func (s *Store) Flow(r *http.Request) (string, error) {
	c, err := r.Cookie(FlowCookie)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", apperrors.ErrFlowNotFound
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func (s *Store) ClearFlow(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.expired(r, FlowCookie))
}

func (s *Store) cookie(r *http.Request, name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	}
}

func (s *Store) expired(r *http.Request, name string) *http.Cookie {
	c := s.cookie(r, name, "", 0)
	c.MaxAge = -1
	return c
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
