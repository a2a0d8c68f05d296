package server

import (
	"bytes"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/go-token-handoff/handoff"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/token"
	"github.com/jrsteele09/go-token-handoff/view"
	"github.com/rs/zerolog/log"
)

// PageData is the template model for the handoff page
type PageData struct {
	AppName  string
	View     *view.Controller
	ReturnTo string // returnTo on this request, posted back with the handoff
	Referrer string
	Decision *handoff.Decision

	// debug panel
	Evaluations []handoff.Evaluation
	Claims      *token.Claims
	ClaimsError string
	Allowlist   []string
	Stored      string
}

// IndexHandler renders the handoff page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		returnTo := q.Get("returnTo")
		s.slots.RememberReturnTo(w, r, returnTo)

		ctrl := view.NewController(view.ParseMode(q.Get("mode")), isDebug(q.Get("debug")))
		sess, err := s.currentSession(w, r)
		if sess != nil {
			ctrl.Mirror(sess)
			ctrl.SetStatus(view.MsgFoundSavedToken)
		}
		if err != nil {
			ctrl.Fail(err)
		}

		if notice := q.Get("notice"); view.IsNotice(notice) {
			ctrl.SetStatus(notice)
		}
		if errMsg := q.Get("error"); errMsg != "" {
			ctrl.FailMessage(errMsg)
		}
		// provider errors come back on the redirect URL
		if desc := q.Get("error_description"); desc != "" {
			ctrl.FailMessage(desc)
		}

		data := s.pageData(r, ctrl, handoff.Candidates{
			Param:    returnTo,
			Stored:   s.storedReturnTo(r, returnTo),
			Referrer: externalReferrer(r),
		})
		s.renderPage(w, http.StatusOK, data)
	}
}

func (s *Server) pageData(r *http.Request, ctrl *view.Controller, c handoff.Candidates) *PageData {
	data := &PageData{
		AppName:  s.config.GetAppName(),
		View:     ctrl,
		ReturnTo: c.Param,
		Referrer: c.Referrer,
	}
	if !ctrl.Debug {
		return data
	}

	data.Evaluations = s.resolver.Explain(c)
	data.Stored = c.Stored
	data.Allowlist = s.resolver.Hosts()
	sort.Strings(data.Allowlist)
	if ctrl.Token != "" {
		claims, err := s.inspector.Inspect(r.Context(), ctrl.Token)
		if err != nil {
			data.ClaimsError = err.Error()
		}
		data.Claims = claims
	}
	return data
}

// renderPage renders into a buffer so a template failure can still become a 500
func (s *Server) renderPage(w http.ResponseWriter, status int, data *PageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		log.Err(err).Msg("Failed to render page")
		http.Error(w, view.StatusForError(apperrors.ErrInternal), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Err(err).Msg("Failed to write page")
	}
}

// storedReturnTo reads the remembered returnTo. A returnTo on the current
// request has just been written, so the cookie on r is the previous value.
func (s *Server) storedReturnTo(r *http.Request, param string) string {
	if param != "" {
		return param
	}
	return s.slots.ReturnTo(r)
}

func isDebug(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
