package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyCandidate = errors.New("empty return target")
	ErrNotAbsolute    = errors.New("return target is not an absolute url")
	ErrScheme         = errors.New("return target scheme must be http or https")
	ErrHost           = errors.New("return target host is not allowed")
)

// InstructionMessage is shown when there is nowhere to send the user back to.
const InstructionMessage = "Your token is ready. Switch back to your chat tab and paste it to continue."

// Source identifies where a return target came from.
type Source string

const (
	SourceParam    Source = "param"
	SourceStored   Source = "stored"
	SourceReferrer Source = "referrer"
	SourceNone     Source = ""
)

// Candidates are the possible return targets for one handoff.
type Candidates struct {
	Param    string // returnTo on the current request
	Stored   string // returnTo remembered earlier in the browsing session
	Referrer string // the page that sent the user here
}

// ordered yields the candidates in priority order
func (c Candidates) ordered() []Candidate {
	return []Candidate{
		{Source: SourceParam, URL: c.Param},
		{Source: SourceStored, URL: c.Stored},
		{Source: SourceReferrer, URL: c.Referrer},
	}
}

type Candidate struct {
	Source Source
	URL    string
}

// Action is what the browser should do once the token has been copied.
type Action string

const (
	ActionNavigate    Action = "navigate"
	ActionHistoryBack Action = "history_back"
	ActionInstruct    Action = "instruct"
)

type Decision struct {
	Action  Action `json:"action"`
	Target  string `json:"target,omitempty"`
	Source  Source `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
}

// Evaluation is the validation outcome for one candidate, used for debugging.
type Evaluation struct {
	Candidate
	Err error
}

func (e Evaluation) Valid() bool {
	return e.URL != "" && e.Err == nil
}

// Resolver picks the return target from a fixed host allowlist.
// The allowlist only keeps users on the intended path; it is not a trust boundary.
type Resolver struct {
	allowed map[string]struct{}
}

func NewResolver(hosts ...string) *Resolver {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &Resolver{allowed: allowed}
}

// Hosts returns the allowlist, mainly for display
func (r *Resolver) Hosts() []string {
	hosts := make([]string, 0, len(r.allowed))
	for h := range r.allowed {
		hosts = append(hosts, h)
	}
	return hosts
}

// Validate parses raw and checks scheme and host. Nothing is rewritten: a
// candidate either passes as given or is rejected.
func (r *Resolver) Validate(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrEmptyCandidate
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAbsolute, err)
	}
	if !u.IsAbs() {
		return nil, ErrNotAbsolute
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrScheme
	}
	host := u.Hostname()
	if host == "" {
		return nil, ErrNotAbsolute
	}
	// hostnames are case-insensitive; url.Parse keeps the original case
	if _, ok := r.allowed[strings.ToLower(host)]; !ok {
		return nil, ErrHost
	}
	return u, nil
}

// Explain validates every candidate in priority order.
func (r *Resolver) Explain(c Candidates) []Evaluation {
	ordered := c.ordered()
	evals := make([]Evaluation, 0, len(ordered))
	for _, cand := range ordered {
		_, err := r.Validate(cand.URL)
		evals = append(evals, Evaluation{Candidate: cand, Err: err})
	}
	return evals
}

// Select returns the highest priority candidate that validates.
func (r *Resolver) Select(c Candidates) (Candidate, bool) {
	for _, cand := range c.ordered() {
		if _, err := r.Validate(cand.URL); err == nil {
			return cand, true
		}
	}
	return Candidate{}, false
}

// Resolve decides where the browser goes after the token is copied. With no
// valid candidate it steps back in history if there is any, otherwise it
// tells the user to switch tabs themselves.
func (r *Resolver) Resolve(c Candidates, hasHistory bool) Decision {
	if cand, ok := r.Select(c); ok {
		return Decision{Action: ActionNavigate, Target: cand.URL, Source: cand.Source}
	}
	if hasHistory {
		return Decision{Action: ActionHistoryBack}
	}
	return Decision{Action: ActionInstruct, Message: InstructionMessage}
}
