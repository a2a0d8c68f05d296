package identity_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
	"github.com/jrsteele09/go-token-handoff/internal/config"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testAnonKey  = "anon-key"
	testEmail    = "jane@example.com"
	testPassword = "correct-horse"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// providerFixture is a scripted GoTrue endpoint
type providerFixture struct {
	server   *httptest.Server
	client   *identity.Client
	requests []recordedRequest
	respond  func(w http.ResponseWriter, r recordedRequest)
}

func setupProvider(t *testing.T, respond func(w http.ResponseWriter, r recordedRequest)) *providerFixture {
	t.Helper()

	f := &providerFixture{respond: respond}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.Body))
		}
		f.requests = append(f.requests, rec)
		w.Header().Set("Content-Type", "application/json")
		f.respond(w, rec)
	}))
	t.Cleanup(f.server.Close)

	client, err := identity.NewClient(config.IdentityProvider{
		URL:     f.server.URL + "/",
		AnonKey: testAnonKey,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *providerFixture) last(t *testing.T) recordedRequest {
	t.Helper()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const sessionJSON = `{
	"access_token": "eyJ.access",
	"token_type": "bearer",
	"expires_in": 3600,
	"refresh_token": "refresh-1",
	"user": {"id": "u-1", "email": "jane@example.com", "role": "authenticated", "email_confirmed_at": "2024-01-01T00:00:00Z"}
}`

func TestNewClient(t *testing.T) {
	_, err := identity.NewClient(config.IdentityProvider{})
	require.Error(t, err)

	_, err = identity.NewClient(config.IdentityProvider{URL: "not a url"})
	require.Error(t, err)
}

func TestClient_SignInWithPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, sessionJSON)
		})

		before := time.Now()
		sess, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, "eyJ.access", sess.AccessToken)
		require.Equal(t, "refresh-1", sess.RefreshToken)
		require.Equal(t, testEmail, sess.Email())
		require.True(t, sess.User.Confirmed())
		require.WithinDuration(t, before.Add(time.Hour), sess.Expiry(), 5*time.Second)

		req := f.last(t)
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "/auth/v1/token", req.Path)
		require.Equal(t, "grant_type=password", req.Query)
		require.Equal(t, testAnonKey, req.Header.Get("apikey"))
		require.Equal(t, "Bearer "+testAnonKey, req.Header.Get("Authorization"))
		require.Equal(t, testEmail, req.Body["email"])
		require.Equal(t, testPassword, req.Body["password"])
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusBadRequest, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
		})

		_, err := f.client.SignInWithPassword(context.Background(), testEmail, "wrong")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		var apiErr *identity.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "Invalid login credentials", apiErr.Message)
		require.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("legacy error shape", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Email not confirmed","error_code":"email_not_confirmed"}`)
		})

		_, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
		require.ErrorIs(t, err, apperrors.ErrEmailNotConfirmed)
	})

	t.Run("missing fields never reach the provider", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			t.Fatal("unexpected request")
		})

		_, err := f.client.SignInWithPassword(context.Background(), " ", testPassword)
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		require.Empty(t, f.requests)
	})

	t.Run("provider down", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {})
		f.server.Close()

		_, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("server error", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusBadGateway, ``)
		})

		_, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestClient_SignUp(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, `{"id":"u-2","email":"jane@example.com","confirmation_sent_at":"2024-01-01T00:00:00Z"}`)
		})

		res, err := f.client.SignUp(context.Background(), identity.SignUpRequest{
			Email:      testEmail,
			Password:   testPassword,
			RedirectTo: "https://login.example.com/",
		})
		require.NoError(t, err)
		require.True(t, res.NeedsConfirmation())
		require.Equal(t, "u-2", res.User.ID)
		require.False(t, res.User.Confirmed())

		req := f.last(t)
		require.Equal(t, "/auth/v1/signup", req.Path)
		require.Equal(t, "redirect_to=https%3A%2F%2Flogin.example.com%2F", req.Query)
	})

	t.Run("auto confirmed", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, sessionJSON)
		})

		res, err := f.client.SignUp(context.Background(), identity.SignUpRequest{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.False(t, res.NeedsConfirmation())
		require.Equal(t, "eyJ.access", res.Session.AccessToken)
	})

	t.Run("already registered", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusUnprocessableEntity, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
		})

		_, err := f.client.SignUp(context.Background(), identity.SignUpRequest{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, apperrors.ErrUserExists)
	})
}

func TestClient_MagicLink(t *testing.T) {
	t.Run("send carries the pkce challenge", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, `{}`)
		})

		err := f.client.SendMagicLink(context.Background(), identity.MagicLinkRequest{
			Email:         testEmail,
			RedirectTo:    "https://login.example.com/auth/callback",
			CodeChallenge: "challenge",
			CreateUser:    true,
		})
		require.NoError(t, err)

		req := f.last(t)
		require.Equal(t, "/auth/v1/otp", req.Path)
		require.Equal(t, "challenge", req.Body["code_challenge"])
		require.Equal(t, "s256", req.Body["code_challenge_method"])
		require.Equal(t, true, req.Body["create_user"])
	})

	t.Run("rate limited", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusTooManyRequests, `{"msg":"For security purposes, you can only request this once every 60 seconds"}`)
		})

		err := f.client.SendMagicLink(context.Background(), identity.MagicLinkRequest{Email: testEmail})
		require.ErrorIs(t, err, apperrors.ErrRateLimited)
	})

	t.Run("exchange code", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, sessionJSON)
		})

		sess, err := f.client.ExchangeCode(context.Background(), "auth-code", "verifier")
		require.NoError(t, err)
		require.Equal(t, "eyJ.access", sess.AccessToken)

		req := f.last(t)
		require.Equal(t, "grant_type=pkce", req.Query)
		require.Equal(t, "auth-code", req.Body["auth_code"])
		require.Equal(t, "verifier", req.Body["code_verifier"])
	})

	t.Run("expired link", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusForbidden, `{"error_code":"flow_state_expired","msg":"Flow state has expired"}`)
		})

		_, err := f.client.ExchangeCode(context.Background(), "auth-code", "verifier")
		require.ErrorIs(t, err, apperrors.ErrLinkExpired)
	})
}

func TestClient_SessionLifecycle(t *testing.T) {
	t.Run("get user sends the access token", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, `{"id":"u-1","email":"jane@example.com"}`)
		})

		user, err := f.client.GetUser(context.Background(), "eyJ.access")
		require.NoError(t, err)
		require.Equal(t, testEmail, user.Email)
		require.Equal(t, "Bearer eyJ.access", f.last(t).Header.Get("Authorization"))
	})

	t.Run("session from fragment tokens", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, `{"id":"u-1","email":"jane@example.com"}`)
		})

		sess, err := f.client.SessionFromTokens(context.Background(), identity.Session{
			AccessToken:  "eyJ.access",
			RefreshToken: "refresh-1",
			ExpiresIn:    60,
		})
		require.NoError(t, err)
		require.Equal(t, testEmail, sess.Email())
		require.False(t, sess.Expiry().IsZero())
	})

	t.Run("expired refresh token", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid Refresh Token: Refresh Token Not Found"}`)
		})

		_, err := f.client.RefreshSession(context.Background(), "refresh-1")
		require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	})

	t.Run("update password", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusOK, `{"id":"u-1","email":"jane@example.com"}`)
		})

		_, err := f.client.UpdatePassword(context.Background(), "eyJ.access", "new-password")
		require.NoError(t, err)
		req := f.last(t)
		require.Equal(t, http.MethodPut, req.Method)
		require.Equal(t, "new-password", req.Body["password"])
	})

	t.Run("sign out tolerates unknown sessions", func(t *testing.T) {
		f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
			writeJSON(w, http.StatusUnauthorized, `{"error_code":"session_not_found","msg":"Session not found"}`)
		})

		require.NoError(t, f.client.SignOut(context.Background(), "eyJ.access"))
		req := f.last(t)
		require.Equal(t, "/auth/v1/logout", req.Path)
		require.Equal(t, "scope=local", req.Query)
	})
}

func TestTokenSource(t *testing.T) {
	f := setupProvider(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, `{"access_token":"eyJ.fresh","token_type":"bearer","expires_in":3600,"refresh_token":"refresh-2","user":{"id":"u-1","email":"jane@example.com"}}`)
	})

	t.Run("valid session is reused", func(t *testing.T) {
		sess := &identity.Session{AccessToken: "eyJ.access", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour).Unix()}
		tok, err := identity.NewTokenSource(context.Background(), f.client, sess).Token()
		require.NoError(t, err)
		require.Equal(t, "eyJ.access", tok.AccessToken)
		require.Empty(t, f.requests)
	})

	t.Run("expired session is refreshed", func(t *testing.T) {
		sess := &identity.Session{AccessToken: "eyJ.access", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}
		tok, err := identity.NewTokenSource(context.Background(), f.client, sess).Token()
		require.NoError(t, err)

		refreshed := identity.SessionFromOAuth2Token(tok)
		require.Equal(t, "eyJ.fresh", refreshed.AccessToken)
		require.Equal(t, "refresh-2", refreshed.RefreshToken)
		require.Equal(t, testEmail, refreshed.Email())
		require.False(t, refreshed.Expired(time.Now()))

		req := f.last(t)
		require.Equal(t, "grant_type=refresh_token", req.Query)
		require.Equal(t, "refresh-1", req.Body["refresh_token"])
	})
}
