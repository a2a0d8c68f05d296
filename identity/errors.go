package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
)

// APIError is a non-2xx answer from the provider. It unwraps to one of the
// sentinels in internal/errors so callers never inspect provider codes.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody covers both the current ({error_code, msg}) and the older
// ({error, error_description}) error shapes.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeAPIError(status int, body []byte) *APIError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	code := eb.ErrorCode
	if code == "" {
		code = eb.Error
	}
	msg := firstNonEmpty(eb.Msg, eb.ErrorDescription, eb.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &APIError{
		Status:  status,
		Code:    code,
		Message: msg,
		Err:     classify(status, code, msg),
	}
}

func classify(status int, code, msg string) error {
	switch code {
	case "invalid_credentials":
		return apperrors.ErrInvalidCredentials
	case "invalid_grant":
		if strings.Contains(strings.ToLower(msg), "refresh token") {
			return apperrors.ErrSessionExpired
		}
		return apperrors.ErrInvalidCredentials
	case "email_not_confirmed":
		return apperrors.ErrEmailNotConfirmed
	case "user_already_exists", "email_exists":
		return apperrors.ErrUserExists
	case "weak_password":
		return apperrors.ErrWeakPassword
	case "otp_expired", "flow_state_expired", "flow_state_not_found", "bad_code_verifier":
		return apperrors.ErrLinkExpired
	case "over_request_rate_limit", "over_email_send_rate_limit", "over_sms_send_rate_limit":
		return apperrors.ErrRateLimited
	case "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used", "bad_jwt", "no_authorization":
		return apperrors.ErrSessionExpired
	}

	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrSessionExpired
	case status >= 500:
		return apperrors.ErrUnavailable
	default:
		return apperrors.ErrInvalidRequest
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
