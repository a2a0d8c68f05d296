package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-token-handoff/view"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// homeRoute builds the index URL with an optional mode and status query
func homeRoute(mode view.Mode, key, msg string) string {
	q := url.Values{}
	if mode != "" && mode != view.ModeSignIn {
		q.Set("mode", string(mode))
	}
	if msg != "" {
		q.Set(key, msg)
	}
	if len(q) == 0 {
		return RouteIndex
	}
	return RouteIndex + "?" + q.Encode()
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, mode view.Mode, notice string) {
	redirectSuccess(w, r, homeRoute(mode, "notice", notice))
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, mode view.Mode, err error) {
	redirectSuccess(w, r, homeRoute(mode, "error", view.StatusForError(err)))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON is true for the page script's fetch calls
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}

type pkcePair struct {
	Verifier  string
	Challenge string
}

func newPKCE() pkcePair {
	verifier := oauth2.GenerateVerifier()
	return pkcePair{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}
}

// callbackURL is where the provider sends magic link and confirmation clicks
func (s *Server) callbackURL() string {
	return s.config.GetBaseURL() + RouteAuthCallback
}

// externalReferrer returns the Referer when it points at another site.
// Our own pages are never a useful place to return to.
func externalReferrer(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || strings.EqualFold(u.Host, r.Host) {
		return ""
	}
	return ref
}

func formInt(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
