package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-handoff/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEnvVars(t *testing.T) {
	t.Run("port gets a colon prefix", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		require.Equal(t, ":9090", config.New().GetPort())
	})

	t.Run("base url drops trailing slash", func(t *testing.T) {
		t.Setenv("BASE_URL", "https://login.example.com/")
		require.Equal(t, "https://login.example.com", config.New().GetBaseURL())
	})

	t.Run("env defaults to DEV", func(t *testing.T) {
		t.Setenv("ENV", "")
		require.Equal(t, "DEV", config.New().GetEnv())
	})
}

func TestHandoffConfig(t *testing.T) {
	t.Run("default allowlist", func(t *testing.T) {
		t.Setenv("RETURN_ALLOWLIST", "")
		require.Equal(t, []string{"chat.openai.com", "yourslimbuddy.netlify.app"}, config.New().GetReturnAllowlist())
	})

	t.Run("allowlist from env", func(t *testing.T) {
		t.Setenv("RETURN_ALLOWLIST", " chatgpt.com, ,app.example.com ")
		require.Equal(t, []string{"chatgpt.com", "app.example.com"}, config.New().GetReturnAllowlist())
	})

	t.Run("allowed origins follow the allowlist", func(t *testing.T) {
		t.Setenv("RETURN_ALLOWLIST", "chatgpt.com")
		origins := config.New().GetAllowedOrigins()
		require.True(t, origins.IsAllowedOrigin("https://chatgpt.com"))
		require.False(t, origins.IsAllowedOrigin("http://chatgpt.com"))
	})

	t.Run("magic link ttl", func(t *testing.T) {
		t.Setenv("MAGIC_LINK_TTL", "5m")
		require.Equal(t, 5*time.Minute, config.New().GetMagicLinkTTL())

		t.Setenv("MAGIC_LINK_TTL", "garbage")
		require.Equal(t, 15*time.Minute, config.New().GetMagicLinkTTL())
	})
}

func TestSecurityConfig(t *testing.T) {
	t.Run("dev secret only in DEV", func(t *testing.T) {
		t.Setenv("COOKIE_SECRET", "")
		t.Setenv("ENV", "DEV")
		require.NotEmpty(t, config.New().GetCookieSecret())

		t.Setenv("ENV", "PROD")
		require.Empty(t, config.New().GetCookieSecret())
	})

	t.Run("token slot max age in seconds", func(t *testing.T) {
		t.Setenv("TOKEN_SLOT_MAX_AGE", "3600")
		require.Equal(t, time.Hour, config.New().GetTokenSlotMaxAge())
	})
}

func TestIdentityProvider(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://project.supabase.co")
	t.Setenv("IDENTITY_ANON_KEY", "anon")
	t.Setenv("IDENTITY_TIMEOUT", "3s")

	cfg := config.New().GetIdentityProvider()
	require.Equal(t, "https://project.supabase.co", cfg.URL)
	require.Equal(t, "anon", cfg.AnonKey)
	require.Equal(t, 3*time.Second, cfg.Timeout)
	require.Equal(t, "authenticated", cfg.Audience)
}
