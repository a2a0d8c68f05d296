package server

import (
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/view"
)

// SessionResponse describes the saved session without exposing its tokens
type SessionResponse struct {
	SignedIn  bool       `json:"signed_in"`
	UserID    string     `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Verified  bool       `json:"verified"`
	Error     string     `json:"error,omitempty"`
}

// SessionAPIHandler confirms the saved session with the provider. It runs
// behind RequireSession.
func (s *Server) SessionAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())

		user, err := s.provider.GetUser(r.Context(), sess.AccessToken)
		if err != nil {
			status := http.StatusUnauthorized
			if apperrors.Is(err, apperrors.ErrUnavailable) {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, SessionResponse{Error: view.StatusForError(err)})
			return
		}

		resp := SessionResponse{
			SignedIn: true,
			UserID:   user.ID,
			Email:    user.Email,
			Verified: true,
		}
		if exp := sess.Expiry(); !exp.IsZero() {
			resp.ExpiresAt = &exp
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
