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

// SignupHandler registers an email/password user. Projects that confirm
// sign ups by email leave the page waiting for the confirmation click.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		pkce := newPKCE()
		res, err := s.provider.SignUp(r.Context(), identity.SignUpRequest{
			Email:         email,
			Password:      password,
			RedirectTo:    s.callbackURL(),
			CodeChallenge: pkce.Challenge,
		})
		if err != nil {
			log.Info().Err(err).Str("email", email).Msg("Sign up failed")
			redirectWithError(w, r, view.ModeSignUp, err)
			return
		}

		if res.NeedsConfirmation() {
			if err := s.startFlow(w, r, email, pkce.Verifier); err != nil {
				redirectWithError(w, r, view.ModeSignUp, err)
				return
			}
			s.renderAwaiting(w, r, view.ModeSignUp, email, view.MsgCheckEmail)
			return
		}

		if err := s.slots.SaveToken(w, r, res.Session); err != nil {
			redirectWithError(w, r, view.ModeSignUp, err)
			return
		}
		redirectWithNotice(w, r, "", view.MsgSignedUp)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.FormValue("email"))

		sess, err := s.provider.SignInWithPassword(r.Context(), email, r.FormValue("password"))
		if err != nil {
			log.Info().Err(err).Str("email", email).Msg("Sign in failed")
			redirectWithError(w, r, view.ModeSignIn, err)
			return
		}
		if err := s.slots.SaveToken(w, r, sess); err != nil {
			redirectWithError(w, r, view.ModeSignIn, err)
			return
		}
		redirectWithNotice(w, r, "", view.MsgSignedIn)
	}
}

// FragmentSessionHandler accepts tokens the page script found in the URL
// fragment of a provider redirect.
func (s *Server) FragmentSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partial := identity.Session{
			AccessToken:  strings.TrimSpace(r.FormValue("access_token")),
			RefreshToken: r.FormValue("refresh_token"),
			TokenType:    r.FormValue("token_type"),
			ExpiresIn:    formInt(r, "expires_in"),
			ExpiresAt:    formInt(r, "expires_at"),
		}

		sess, err := s.provider.SessionFromTokens(r.Context(), partial)
		if err == nil {
			err = s.slots.SaveToken(w, r, sess)
		}

		if wantsJSON(r) {
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, view.Status{Message: view.StatusForError(err)})
				return
			}
			writeJSON(w, http.StatusOK, view.Status{Message: view.MsgSignedIn, OK: true})
			return
		}
		if err != nil {
			redirectWithError(w, r, "", err)
			return
		}
		redirectWithNotice(w, r, "", view.MsgSignedIn)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.slots.LoadToken(r)
		if err != nil {
			redirectWithError(w, r, "", err)
			return
		}
		if sess.RefreshToken == "" {
			redirectWithError(w, r, "", apperrors.ErrSessionExpired)
			return
		}

		refreshed, err := s.provider.RefreshSession(r.Context(), sess.RefreshToken)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrSessionExpired) {
				s.slots.ClearToken(w, r)
			}
			redirectWithError(w, r, "", err)
			return
		}
		if refreshed.User == nil {
			refreshed.User = sess.User
		}
		if err := s.slots.SaveToken(w, r, refreshed); err != nil {
			redirectWithError(w, r, "", err)
			return
		}
		redirectWithNotice(w, r, "", view.MsgSessionRefreshed)
	}
}

// PasswordHandler runs behind RequireSession
func (s *Server) PasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())

		password := r.FormValue("password")
		if confirm := r.FormValue("confirm_password"); confirm != "" && confirm != password {
			redirectSuccess(w, r, homeRoute("", "error", "Passwords do not match."))
			return
		}

		if _, err := s.provider.UpdatePassword(r.Context(), sess.AccessToken, password); err != nil {
			redirectWithError(w, r, "", err)
			return
		}
		redirectWithNotice(w, r, "", view.MsgPasswordUpdated)
	}
}

// LogoutHandler revokes the session at the provider and always clears the
// saved token, even when revocation fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, err := s.slots.LoadToken(r); err == nil {
			if err := s.provider.SignOut(r.Context(), sess.AccessToken); err != nil {
				log.Warn().Err(err).Msg("Provider sign out failed")
			}
		}
		s.slots.ClearToken(w, r)
		s.slots.ClearFlow(w, r)
		redirectWithNotice(w, r, "", view.MsgSignedOut)
	}
}

func (s *Server) renderAwaiting(w http.ResponseWriter, r *http.Request, mode view.Mode, email, msg string) {
	ctrl := view.NewController(mode, false)
	ctrl.AwaitConfirmation(email)
	ctrl.SetStatus(msg)
	s.renderPage(w, http.StatusOK, s.pageData(r, ctrl, handoff.Candidates{}))
}
