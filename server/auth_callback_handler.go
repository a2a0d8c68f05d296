package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/server/flowstate"
	"github.com/jrsteele09/go-token-handoff/view"
	"github.com/rs/zerolog/log"
)

// MagicLinkHandler emails a one time sign in link. The PKCE verifier stays
// on the server, keyed by the flow cookie, until the link is followed.
func (s *Server) MagicLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))
		if email == "" {
			redirectWithError(w, r, view.ModeMagic, apperrors.ErrInvalidRequest)
			return
		}

		pkce := newPKCE()
		flowID, err := s.saveFlow(r, email, pkce.Verifier)
		if err != nil {
			redirectWithError(w, r, view.ModeMagic, err)
			return
		}

		err = s.provider.SendMagicLink(r.Context(), identity.MagicLinkRequest{
			Email:         email,
			RedirectTo:    s.callbackURL(),
			CodeChallenge: pkce.Challenge,
			CreateUser:    true,
		})
		if err != nil {
			_ = s.flows.Delete(flowID)
			log.Info().Err(err).Str("email", email).Msg("Magic link failed")
			redirectWithError(w, r, view.ModeMagic, err)
			return
		}

		s.slots.SetFlow(w, r, flowID)
		s.renderAwaiting(w, r, view.ModeMagic, email, view.MsgMagicLinkSent)
	}
}

// AuthCallbackHandler completes magic link and sign up confirmation clicks.
// Without a code the provider used the implicit flow; the tokens are in the
// fragment, which survives the redirect for the page script to pick up.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if errParam := q.Get("error"); errParam != "" {
			msg := q.Get("error_description")
			if msg == "" {
				msg = errParam
			}
			log.Info().Str("error", errParam).Str("error_code", q.Get("error_code")).Msg("Provider callback error")
			s.slots.ClearFlow(w, r)
			redirectSuccess(w, r, homeRoute(view.ModeMagic, "error", msg))
			return
		}

		code := q.Get("code")
		if code == "" {
			redirectSuccess(w, r, RouteIndex)
			return
		}

		flow, err := s.takeFlow(w, r)
		if err != nil {
			redirectWithError(w, r, view.ModeMagic, err)
			return
		}

		sess, err := s.provider.ExchangeCode(r.Context(), code, flow.CodeVerifier)
		if err != nil {
			redirectWithError(w, r, view.ModeMagic, err)
			return
		}
		if err := s.slots.SaveToken(w, r, sess); err != nil {
			redirectWithError(w, r, view.ModeMagic, err)
			return
		}
		// the link may open in a tab that never saw the original returnTo
		if s.slots.ReturnTo(r) == "" {
			s.slots.RememberReturnTo(w, r, flow.ReturnURL)
		}
		redirectWithNotice(w, r, "", view.MsgSignedIn)
	}
}

func (s *Server) saveFlow(r *http.Request, email, verifier string) (string, error) {
	flowID := uuid.NewString()
	err := s.flows.Upsert(flowID, &flowstate.MagicLinkFlow{
		Email:        email,
		CodeVerifier: verifier,
		ReturnURL:    s.slots.ReturnTo(r),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return "", apperrors.Wrapf(err, "save magic link flow")
	}
	return flowID, nil
}

// startFlow saves a flow and points the browser at it
func (s *Server) startFlow(w http.ResponseWriter, r *http.Request, email, verifier string) error {
	flowID, err := s.saveFlow(r, email, verifier)
	if err != nil {
		return err
	}
	s.slots.SetFlow(w, r, flowID)
	return nil
}

// takeFlow consumes the flow named by the flow cookie. Each flow is single use.
func (s *Server) takeFlow(w http.ResponseWriter, r *http.Request) (*flowstate.MagicLinkFlow, error) {
	flowID, err := s.slots.Flow(r)
	if err != nil {
		return nil, err
	}
	s.slots.ClearFlow(w, r)

	flow, err := s.flows.Get(flowID)
	if err != nil {
		return nil, err
	}
	if err := s.flows.Delete(flowID); err != nil {
		log.Err(err).Str("flow", flowID).Msg("Failed to delete magic link flow")
	}
	if flow.Expired(s.now(), s.config.GetMagicLinkTTL()) {
		return nil, apperrors.ErrLinkExpired
	}
	return flow, nil
}
