package view_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/view"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := map[string]view.Mode{
		"":        view.ModeSignIn,
		"signin":  view.ModeSignIn,
		"signup":  view.ModeSignUp,
		"MAGIC":   view.ModeMagic,
		" token ": view.ModeToken,
		"admin":   view.ModeSignIn,
	}
	for raw, want := range tests {
		require.Equal(t, want, view.ParseMode(raw), raw)
	}
}

func TestController_Panels(t *testing.T) {
	t.Run("signed out shows the credential form", func(t *testing.T) {
		c := view.NewController(view.ModeSignIn, false)
		require.Equal(t, view.StateSignedOut, c.State)
		require.Equal(t, []view.Panel{view.PanelCredentials}, c.Panels())
	})

	t.Run("token mode shows the paste form", func(t *testing.T) {
		c := view.NewController(view.ModeToken, false)
		require.Equal(t, []view.Panel{view.PanelPasteToken}, c.Panels())
	})

	t.Run("awaiting confirmation", func(t *testing.T) {
		c := view.NewController(view.ModeSignUp, false)
		c.AwaitConfirmation("jane@example.com")
		require.Equal(t, view.StateAwaitingConfirmation, c.State)
		require.Equal(t, "jane@example.com", c.Email)
		require.Equal(t, []view.Panel{view.PanelCheckEmail}, c.Panels())
	})

	t.Run("signed in shows token and account", func(t *testing.T) {
		c := view.NewController(view.ModeSignIn, true)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		c.Mirror(&identity.Session{
			AccessToken: "eyJ.access",
			ExpiresAt:   exp.Unix(),
			User:        &identity.User{Email: "jane@example.com"},
		})
		require.True(t, c.SignedIn())
		require.Equal(t, "eyJ.access", c.Token)
		require.Equal(t, "jane@example.com", c.Email)
		require.True(t, c.ExpiresAt.Equal(exp))
		require.Equal(t, []view.Panel{view.PanelToken, view.PanelAccount, view.PanelDebug}, c.Panels())
	})

	t.Run("mirroring nothing signs out", func(t *testing.T) {
		c := view.NewController(view.ModeSignIn, false)
		c.Mirror(&identity.Session{AccessToken: "eyJ.access"})
		c.Mirror(nil)
		require.Equal(t, view.StateSignedOut, c.State)
		require.Empty(t, c.Token)
	})
}

func TestController_SignOut(t *testing.T) {
	c := view.NewController(view.ModeSignIn, false)
	c.Mirror(&identity.Session{AccessToken: "eyJ.access", User: &identity.User{Email: "jane@example.com"}})
	c.RevealToken = true

	c.SignOut()
	require.Equal(t, view.StateSignedOut, c.State)
	require.Empty(t, c.Token)
	require.Empty(t, c.Email)
	require.False(t, c.RevealToken)
	require.True(t, c.Visible(view.PanelCredentials))
	require.False(t, c.Visible(view.PanelToken))
}

func TestController_Status(t *testing.T) {
	c := view.NewController(view.ModeSignIn, false)
	c.SetStatus(view.MsgSignedIn)
	require.Equal(t, &view.Status{Message: view.MsgSignedIn, OK: true}, c.Status)

	c.Fail(nil)
	require.True(t, c.Status.OK)

	c.Fail(fmt.Errorf("wrapped: %w", apperrors.ErrInvalidCredentials))
	require.Equal(t, &view.Status{Message: "Invalid email or password.", OK: false}, c.Status)
}

func TestStatusForError(t *testing.T) {
	require.Empty(t, view.StatusForError(nil))
	require.Equal(t, view.MsgEmptyToken, view.StatusForError(apperrors.ErrEmptyToken))
	require.Equal(t, "That link has expired. Please request a new one.", view.StatusForError(apperrors.ErrLinkExpired))
	require.Equal(t, "Too many attempts. Please wait a minute and try again.", view.StatusForError(fmt.Errorf("x: %w", apperrors.ErrRateLimited)))
	require.Equal(t, "Something went wrong. Please try again.", view.StatusForError(errors.New("boom")))
	require.Equal(t, "Something went wrong. Please try again.", view.StatusForError(apperrors.ErrInternal))
}

func TestIsNotice(t *testing.T) {
	require.True(t, view.IsNotice(view.MsgSignedIn))
	require.True(t, view.IsNotice(view.MsgSignedOut))
	require.False(t, view.IsNotice(""))
	require.False(t, view.IsNotice(view.MsgSavedCopyFailed))
	require.False(t, view.IsNotice("Your account is locked, call 555-0100"))
}
