package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-handoff/internal/config"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	apiPrefix = "/auth/v1"

	// maxResponseBytes bounds what is read from the provider
	maxResponseBytes = 1 << 20
)

var _ Provider = (*Client)(nil)

// Client talks to a GoTrue compatible auth API (Supabase Auth and friends).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg config.IdentityProvider, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("identity provider url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("invalid identity provider url %q", cfg.URL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + apiPrefix,
		apiKey:     cfg.AnonKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignUp registers a new email/password user.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if err := requireCredentials(req.Email, req.Password); err != nil {
		return nil, err
	}

	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
	}
	if req.CodeChallenge != "" {
		body["code_challenge"] = req.CodeChallenge
		body["code_challenge_method"] = "s256"
	}

	raw, err := c.do(ctx, http.MethodPost, "/signup", redirectQuery(req.RedirectTo), "", body)
	if err != nil {
		return nil, err
	}

	// An auto confirmed project answers with a session, otherwise with the user.
	var sess Session
	if err := json.Unmarshal(raw, &sess); err == nil && sess.AccessToken != "" {
		sess.normalise(c.now())
		return &SignUpResult{Session: &sess, User: sess.User}, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, apperrors.Wrapf(err, "decode sign up response")
	}
	return &SignUpResult{User: &user}, nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if err := requireCredentials(email, password); err != nil {
		return nil, err
	}
	return c.tokenGrant(ctx, "password", map[string]any{
		"email":    email,
		"password": password,
	})
}

// SendMagicLink asks the provider to email a one time sign in link. The link
// comes back to RedirectTo with a code that ExchangeCode turns into a session.
func (c *Client) SendMagicLink(ctx context.Context, req MagicLinkRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("%w: email is required", apperrors.ErrInvalidRequest)
	}

	body := map[string]any{
		"email":       req.Email,
		"create_user": req.CreateUser,
	}
	if req.CodeChallenge != "" {
		body["code_challenge"] = req.CodeChallenge
		body["code_challenge_method"] = "s256"
	}

	_, err := c.do(ctx, http.MethodPost, "/otp", redirectQuery(req.RedirectTo), "", body)
	return err
}

// ExchangeCode trades the code from a magic link callback for a session.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	if code == "" || codeVerifier == "" {
		return nil, fmt.Errorf("%w: code and verifier are required", apperrors.ErrInvalidRequest)
	}
	return c.tokenGrant(ctx, "pkce", map[string]any{
		"auth_code":     code,
		"code_verifier": codeVerifier,
	})
}

// SessionFromTokens accepts tokens delivered in a redirect fragment and
// confirms them with the provider before they are treated as a session.
func (c *Client) SessionFromTokens(ctx context.Context, partial Session) (*Session, error) {
	if partial.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", apperrors.ErrInvalidRequest)
	}
	user, err := c.GetUser(ctx, partial.AccessToken)
	if err != nil {
		return nil, err
	}
	sess := partial
	sess.User = user
	sess.normalise(c.now())
	return &sess, nil
}

// GetUser retrieves the user the access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	raw, err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, apperrors.Wrapf(err, "decode user")
	}
	return &user, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrSessionExpired
	}
	return c.tokenGrant(ctx, "refresh_token", map[string]any{
		"refresh_token": refreshToken,
	})
}

func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (*User, error) {
	if accessToken == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", apperrors.ErrInvalidRequest)
	}
	raw, err := c.do(ctx, http.MethodPut, "/user", nil, accessToken, map[string]any{"password": password})
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, apperrors.Wrapf(err, "decode user")
	}
	return &user, nil
}

// SignOut revokes the session at the provider. A token the provider no
// longer knows counts as signed out.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, "/logout", url.Values{"scope": {"local"}}, accessToken, nil)
	if errors.Is(err, apperrors.ErrSessionExpired) {
		return nil
	}
	return err
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]any) (*Session, error) {
	raw, err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {grantType}}, "", body)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, apperrors.Wrapf(err, "decode %s session", grantType)
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned no access token", apperrors.ErrInvalidToken)
	}
	sess.normalise(c.now())
	return &sess, nil
}

// do sends one request. The anon key identifies the project; the bearer is the
// user's access token when there is one, otherwise the anon key as well.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, accessToken string, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrapf(err, "encode %s body", path)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, apperrors.Wrapf(err, "build %s request", path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	bearer := accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Err(err).Str("path", path).Msg("Identity provider request failed")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", apperrors.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		log.Debug().Str("path", path).Int("status", apiErr.Status).Str("code", apiErr.Code).Msg("Identity provider rejected request")
		return nil, apiErr
	}
	return raw, nil
}

func requireCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidRequest)
	}
	return nil
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}
