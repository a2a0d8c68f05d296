package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/view"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the saved, refreshed session
	ContextKeySession ContextKey = "session"
)

// RequireSession loads the saved session into the request context. Page
// routes without one go back to the index with an error, API routes get 401.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sess, err := s.currentSession(w, r)
			if err == nil && sess == nil {
				err = apperrors.ErrSessionNotFound
			}
			if err != nil {
				if strings.HasPrefix(r.URL.Path, "/api/") {
					status := http.StatusUnauthorized
					if apperrors.Is(err, apperrors.ErrUnavailable) {
						status = http.StatusBadGateway
					}
					writeJSON(w, status, SessionResponse{Error: view.StatusForError(err)})
					return
				}
				redirectWithError(w, r, "", err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			next(w, r.WithContext(ctx))
		}
	}
}

func sessionFromContext(ctx context.Context) *identity.Session {
	sess, _ := ctx.Value(ContextKeySession).(*identity.Session)
	return sess
}
