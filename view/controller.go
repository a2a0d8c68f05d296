package view

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
)

type State string

const (
	StateSignedOut            State = "signed_out"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSignedIn             State = "signed_in"
)

// Mode picks which credential form the signed out page offers
type Mode string

const (
	ModeSignIn Mode = "signin"
	ModeSignUp Mode = "signup"
	ModeMagic  Mode = "magic"
	ModeToken  Mode = "token"
)

// ParseMode falls back to sign in for anything unknown
func ParseMode(raw string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeSignUp, ModeMagic, ModeToken:
		return m
	default:
		return ModeSignIn
	}
}

type Panel string

const (
	PanelCredentials Panel = "credentials"
	PanelPasteToken  Panel = "paste_token"
	PanelCheckEmail  Panel = "check_email"
	PanelToken       Panel = "token"
	PanelAccount     Panel = "account"
	PanelDebug       Panel = "debug"
)

// Status is the single line of feedback under the forms
type Status struct {
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// Controller decides what the page shows. It only mirrors the last session
// the auth client reported; transitions come from provider responses.
type Controller struct {
	Mode      Mode
	State     State
	Email     string
	Token     string
	ExpiresAt time.Time
	Status    *Status
	Debug     bool

	// RevealToken shows the raw token for manual copying
	RevealToken bool
}

func NewController(mode Mode, debug bool) *Controller {
	return &Controller{
		Mode:  mode,
		State: StateSignedOut,
		Debug: debug,
	}
}

// Mirror reflects sess; a nil or empty session means signed out.
func (c *Controller) Mirror(sess *identity.Session) {
	if sess == nil || sess.AccessToken == "" {
		c.clear()
		return
	}
	c.State = StateSignedIn
	c.Token = sess.AccessToken
	c.ExpiresAt = sess.Expiry()
	if email := sess.Email(); email != "" {
		c.Email = email
	}
}

func (c *Controller) AwaitConfirmation(email string) {
	c.clear()
	c.State = StateAwaitingConfirmation
	c.Email = email
}

// SignOut drops the cached token and returns to the signed out forms
func (c *Controller) SignOut() {
	c.clear()
}

func (c *Controller) clear() {
	c.State = StateSignedOut
	c.Token = ""
	c.Email = ""
	c.ExpiresAt = time.Time{}
	c.RevealToken = false
}

func (c *Controller) SetStatus(msg string) {
	c.Status = &Status{Message: msg, OK: true}
}

func (c *Controller) Fail(err error) {
	if err == nil {
		return
	}
	c.Status = &Status{Message: StatusForError(err), OK: false}
}

func (c *Controller) FailMessage(msg string) {
	c.Status = &Status{Message: msg, OK: false}
}

func (c *Controller) SignedIn() bool {
	return c.State == StateSignedIn
}

// Visible reports whether a panel is rendered in the current state
func (c *Controller) Visible(p Panel) bool {
	switch p {
	case PanelCredentials:
		return c.State == StateSignedOut && c.Mode != ModeToken
	case PanelPasteToken:
		return c.State == StateSignedOut && c.Mode == ModeToken
	case PanelCheckEmail:
		return c.State == StateAwaitingConfirmation
	case PanelToken, PanelAccount:
		return c.State == StateSignedIn
	case PanelDebug:
		return c.Debug
	}
	return false
}

// Panels lists the visible panels in page order
func (c *Controller) Panels() []Panel {
	var out []Panel
	for _, p := range []Panel{PanelCredentials, PanelPasteToken, PanelCheckEmail, PanelToken, PanelAccount, PanelDebug} {
		if c.Visible(p) {
			out = append(out, p)
		}
	}
	return out
}
