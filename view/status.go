package view

import (
	"errors"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
)

const (
	MsgFoundSavedToken  = "Found a previously saved token."
	MsgSignedIn         = "Signed in. Your token is ready."
	MsgSignedUp         = "Account created. Your token is ready."
	MsgCheckEmail       = "Sign-up successful! Check your email to confirm."
	MsgMagicLinkSent    = "Magic link sent. Check your email."
	MsgPasswordUpdated  = "Password updated."
	MsgSessionRefreshed = "Session refreshed."
	MsgSignedOut        = "Signed out."
	MsgEmptyToken       = "Please paste a valid token."
	MsgSavedAndCopied   = "Token saved and copied. Returning you now..."
	MsgSavedCopied      = "Token saved and copied."
	MsgSavedCopyFailed  = "Token saved. Copy to clipboard failed, please copy it manually."
)

var errorMessages = []struct {
	err error
	msg string
}{
	{apperrors.ErrInvalidCredentials, "Invalid email or password."},
	{apperrors.ErrEmailNotConfirmed, "Please confirm your email before signing in."},
	{apperrors.ErrUserExists, "An account with that email already exists."},
	{apperrors.ErrWeakPassword, "That password is too weak."},
	{apperrors.ErrLinkExpired, "That link has expired. Please request a new one."},
	{apperrors.ErrFlowNotFound, "That link has expired. Please request a new one."},
	{apperrors.ErrEmptyToken, MsgEmptyToken},
	{apperrors.ErrTokenExpired, "Your token has expired. Please sign in again."},
	{apperrors.ErrInvalidToken, "That token could not be read."},
	{apperrors.ErrSessionExpired, "Your session has expired. Please sign in again."},
	{apperrors.ErrSessionNotFound, "You are not signed in."},
	{apperrors.ErrRateLimited, "Too many attempts. Please wait a minute and try again."},
	{apperrors.ErrUnavailable, "The sign in service is unavailable. Please try again."},
	{apperrors.ErrInvalidRequest, "Please check the details and try again."},
	{apperrors.ErrInternal, msgSomethingWrong},
}

const msgSomethingWrong = "Something went wrong. Please try again."

var notices = map[string]bool{
	MsgSignedIn:         true,
	MsgSignedUp:         true,
	MsgCheckEmail:       true,
	MsgMagicLinkSent:    true,
	MsgPasswordUpdated:  true,
	MsgSessionRefreshed: true,
	MsgSignedOut:        true,
}

// IsNotice reports whether msg is one of the success lines a redirect may carry
func IsNotice(msg string) bool {
	return notices[msg]
}

// StatusForError turns any failure into a short line for the status bar
func StatusForError(err error) string {
	if err == nil {
		return ""
	}
	for _, em := range errorMessages {
		if errors.Is(err, em.err) {
			return em.msg
		}
	}
	return msgSomethingWrong
}
