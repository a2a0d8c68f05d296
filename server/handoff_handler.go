package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-handoff/handoff"
	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/view"
	"github.com/rs/zerolog/log"
)

const clipboardOK = "ok"

// HandoffResponse is the answer to the page script
type HandoffResponse struct {
	Status   view.Status       `json:"status"`
	Decision *handoff.Decision `json:"decision,omitempty"`
	// Token is only sent back when it has to be copied by hand
	Token string `json:"token,omitempty"`
}

// HandoffHandler saves the token, reports the clipboard outcome and decides
// where the browser goes next. The script does the clipboard write and the
// navigation itself.
func (s *Server) HandoffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := view.ParseMode(r.FormValue("mode"))
		ctrl := view.NewController(mode, isDebug(r.FormValue("debug")))
		candidates := handoff.Candidates{
			Param:    r.FormValue("return_to"),
			Stored:   s.slots.ReturnTo(r),
			Referrer: r.FormValue("referrer"),
		}

		sess, err := s.handoffSession(w, r)
		if err != nil {
			ctrl.Fail(err)
			if wantsJSON(r) {
				writeJSON(w, http.StatusBadRequest, HandoffResponse{Status: *ctrl.Status})
				return
			}
			s.renderPage(w, http.StatusBadRequest, s.pageData(r, ctrl, candidates))
			return
		}
		ctrl.Mirror(sess)

		decision := s.resolver.Resolve(candidates, r.FormValue("has_history") == "true")

		copied := r.FormValue("clipboard") == clipboardOK
		switch {
		case !copied:
			ctrl.SetStatus(view.MsgSavedCopyFailed)
			ctrl.RevealToken = true
		case decision.Action == handoff.ActionNavigate:
			ctrl.SetStatus(view.MsgSavedAndCopied)
		default:
			ctrl.SetStatus(view.MsgSavedCopied)
		}
		log.Debug().
			Str("action", string(decision.Action)).
			Str("source", string(decision.Source)).
			Bool("copied", copied).
			Msg("Token handoff")

		if wantsJSON(r) {
			resp := HandoffResponse{Status: *ctrl.Status, Decision: &decision}
			if ctrl.RevealToken {
				resp.Token = sess.AccessToken
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		// Without the script a copied token can go straight back. Otherwise the
		// page shows the token with the decision as a link.
		if copied && decision.Action == handoff.ActionNavigate {
			redirectSuccess(w, r, decision.Target)
			return
		}
		data := s.pageData(r, ctrl, candidates)
		data.Decision = &decision
		s.renderPage(w, http.StatusOK, data)
	}
}

// handoffSession saves a pasted token, or falls back to the signed in
// session when nothing was pasted.
func (s *Server) handoffSession(w http.ResponseWriter, r *http.Request) (*identity.Session, error) {
	pasted := strings.TrimSpace(r.FormValue("token"))

	// a stale session is still worth handing off while the provider is down
	current, err := s.currentSession(w, r)
	if err != nil {
		log.Info().Err(err).Bool("stale", current != nil).Msg("Saved session not refreshed during handoff")
	}

	if pasted == "" {
		if current == nil {
			return nil, apperrors.ErrEmptyToken
		}
		return current, nil
	}
	if current != nil && current.AccessToken == pasted {
		return current, nil
	}

	sess := &identity.Session{AccessToken: pasted, TokenType: "bearer"}
	if claims, err := s.inspector.Inspect(r.Context(), pasted); err == nil {
		if !claims.ExpiresAt.IsZero() {
			sess.ExpiresAt = claims.ExpiresAt.Unix()
		}
		sess.User = &identity.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	}
	if err := s.slots.SaveToken(w, r, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
