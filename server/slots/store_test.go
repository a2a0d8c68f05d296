package slots_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/server/slots"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-cookie-secret"

func newStore(t *testing.T) *slots.Store {
	t.Helper()
	sealer, err := slots.NewSealer(testSecret)
	require.NoError(t, err)
	return slots.NewStore(sealer, 30*24*time.Hour, 15*time.Minute)
}

// carry replays the cookies set on rec into a fresh request
func carry(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	return r
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSealer(t *testing.T) {
	sealer, err := slots.NewSealer(testSecret)
	require.NoError(t, err)

	type payload struct{ Value string }

	t.Run("round trip", func(t *testing.T) {
		sealed, err := sealer.Seal("slot", payload{Value: "secret"})
		require.NoError(t, err)
		require.NotContains(t, sealed, "secret")

		var out payload
		require.NoError(t, sealer.Open("slot", sealed, &out))
		require.Equal(t, "secret", out.Value)
	})

	t.Run("fresh nonce per seal", func(t *testing.T) {
		a, err := sealer.Seal("slot", payload{Value: "x"})
		require.NoError(t, err)
		b, err := sealer.Seal("slot", payload{Value: "x"})
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("bound to the slot name", func(t *testing.T) {
		sealed, err := sealer.Seal("slot", payload{Value: "x"})
		require.NoError(t, err)

		var out payload
		require.ErrorIs(t, sealer.Open("other", sealed, &out), apperrors.ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		sealed, err := sealer.Seal("slot", payload{Value: "x"})
		require.NoError(t, err)

		other, err := slots.NewSealer("another-secret")
		require.NoError(t, err)
		var out payload
		require.ErrorIs(t, other.Open("slot", sealed, &out), apperrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		var out payload
		require.ErrorIs(t, sealer.Open("slot", "!!!", &out), apperrors.ErrInvalidToken)
		require.ErrorIs(t, sealer.Open("slot", "abcd", &out), apperrors.ErrInvalidToken)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := slots.NewSealer("")
		require.Error(t, err)
	})
}

func TestStore_Token(t *testing.T) {
	store := newStore(t)
	sess := &identity.Session{
		AccessToken:  "eyJ.access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &identity.User{ID: "u-1", Email: "jane@example.com"},
	}

	t.Run("nothing saved", func(t *testing.T) {
		_, err := store.LoadToken(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, store.SaveToken(rec, httptest.NewRequest(http.MethodPost, "/", nil), sess))

		c := findCookie(t, rec, slots.TokenCookie)
		require.True(t, c.HttpOnly)
		require.False(t, c.Secure)
		require.Equal(t, 30*24*60*60, c.MaxAge)
		require.NotContains(t, c.Value, "eyJ.access")

		got, err := store.LoadToken(carry(rec))
		require.NoError(t, err)
		require.Equal(t, sess.AccessToken, got.AccessToken)
		require.Equal(t, sess.RefreshToken, got.RefreshToken)
		require.Equal(t, "jane@example.com", got.Email())
	})

	t.Run("secure behind tls proxy", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		require.NoError(t, store.SaveToken(rec, r, sess))
		require.True(t, findCookie(t, rec, slots.TokenCookie).Secure)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := store.SaveToken(rec, httptest.NewRequest(http.MethodPost, "/", nil), &identity.Session{})
		require.ErrorIs(t, err, apperrors.ErrEmptyToken)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("oversized token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := store.SaveToken(rec, httptest.NewRequest(http.MethodPost, "/", nil), &identity.Session{AccessToken: strings.Repeat("a", 5000)})
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("tampered slot", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: slots.TokenCookie, Value: "bm90LXNlYWxlZA"})
		_, err := store.LoadToken(r)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("clear", func(t *testing.T) {
		rec := httptest.NewRecorder()
		store.ClearToken(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		c := findCookie(t, rec, slots.TokenCookie)
		require.Equal(t, -1, c.MaxAge)
		require.Empty(t, c.Value)
	})
}

func TestStore_ReturnTo(t *testing.T) {
	store := newStore(t)

	t.Run("remembered raw for the session", func(t *testing.T) {
		raw := "https://chat.openai.com/c/abc?x=1&y=2"
		rec := httptest.NewRecorder()
		store.RememberReturnTo(rec, httptest.NewRequest(http.MethodGet, "/", nil), raw)

		c := findCookie(t, rec, slots.ReturnToCookie)
		require.Zero(t, c.MaxAge)
		require.Equal(t, raw, store.ReturnTo(carry(rec)))
	})

	t.Run("invalid targets are stored as given", func(t *testing.T) {
		rec := httptest.NewRecorder()
		store.RememberReturnTo(rec, httptest.NewRequest(http.MethodGet, "/", nil), "javascript:alert(1)")
		require.Equal(t, "javascript:alert(1)", store.ReturnTo(carry(rec)))
	})

	t.Run("empty is a no-op", func(t *testing.T) {
		rec := httptest.NewRecorder()
		store.RememberReturnTo(rec, httptest.NewRequest(http.MethodGet, "/", nil), "")
		require.Empty(t, rec.Result().Cookies())
		require.Empty(t, store.ReturnTo(httptest.NewRequest(http.MethodGet, "/", nil)))
	})

	t.Run("undecodable cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: slots.ReturnToCookie, Value: "%%%"})
		require.Empty(t, store.ReturnTo(r))
	})
}

func TestStore_Flow(t *testing.T) {
	store := newStore(t)

	_, err := store.Flow(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, apperrors.ErrFlowNotFound)

	rec := httptest.NewRecorder()
	store.SetFlow(rec, httptest.NewRequest(http.MethodPost, "/", nil), "flow-1")
	require.Equal(t, 15*60, findCookie(t, rec, slots.FlowCookie).MaxAge)

	id, err := store.Flow(carry(rec))
	require.NoError(t, err)
	require.Equal(t, "flow-1", id)

	rec = httptest.NewRecorder()
	store.ClearFlow(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, -1, findCookie(t, rec, slots.FlowCookie).MaxAge)
}
