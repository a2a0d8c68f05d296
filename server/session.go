package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/rs/zerolog/log"
)

// currentSession loads the saved session, refreshing it with the provider
// once it has expired. A slot that can't be opened, or whose refresh token the
// provider rejects, is cleared and leaves the page signed out. Any other
// refresh failure keeps the slot and returns the stale session with the error.
// Returns nil, nil when nothing is saved.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) (*identity.Session, error) {
	sess, err := s.slots.LoadToken(r)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable token slot")
		s.slots.ClearToken(w, r)
		return nil, nil
	}

	// pasted tokens have no refresh token; show them as they are
	if sess.RefreshToken == "" {
		return sess, nil
	}

	tok, err := identity.NewTokenSource(r.Context(), s.provider, sess).Token()
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionExpired) || apperrors.Is(err, apperrors.ErrInvalidToken) {
			s.slots.ClearToken(w, r)
			return nil, err
		}
		log.Warn().Err(err).Msg("Session refresh failed, keeping saved token")
		return sess, err
	}
	if tok.AccessToken == sess.AccessToken {
		return sess, nil
	}

	refreshed := identity.SessionFromOAuth2Token(tok)
	if refreshed.User == nil {
		refreshed.User = sess.User
	}
	if err := s.slots.SaveToken(w, r, refreshed); err != nil {
		log.Err(err).Msg("Failed to save refreshed session")
	}
	log.Debug().Str("email", refreshed.Email()).Msg("Refreshed expired session")
	return refreshed, nil
}
