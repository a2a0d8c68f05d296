package identityfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-handoff/identity"
	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"github.com/jrsteele09/go-token-handoff/internal/utils"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*FakeProvider)(nil)

type fakeUser struct {
	user     identity.User
	password string
}

type pendingCode struct {
	email     string
	challenge string
}

// FakeProvider is an in-memory identity provider for tests.
type FakeProvider struct {
	// AutoConfirm makes SignUp return a session straight away
	AutoConfirm bool
	// SessionTTL is the lifetime of issued sessions; negative issues expired ones
	SessionTTL time.Duration
	// SignOutErr is returned from SignOut when set
	SignOutErr error
	// RefreshErr is returned from RefreshSession when set, leaving the refresh token usable
	RefreshErr error

	lock      sync.Mutex
	next      int
	users     map[string]*fakeUser   // email -> user
	access    map[string]string      // access token -> email
	refresh   map[string]string      // refresh token -> email
	codes     map[string]pendingCode // auth code -> pending
	links     []identity.MagicLinkRequest
	signedOut []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		SessionTTL: time.Hour,
		users:      make(map[string]*fakeUser),
		access:     make(map[string]string),
		refresh:    make(map[string]string),
		codes:      make(map[string]pendingCode),
	}
}

// AddUser registers a confirmed user
func (f *FakeProvider) AddUser(email, password string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.addUserLocked(email, password, true)
}

func (f *FakeProvider) addUserLocked(email, password string, confirmed bool) *fakeUser {
	f.next++
	u := &fakeUser{
		user: identity.User{
			ID:    fmt.Sprintf("user-%d", f.next),
			Email: email,
			Role:  "authenticated",
			Aud:   "authenticated",
		},
		password: password,
	}
	if confirmed {
		u.user.EmailConfirmedAt = utils.Ptr(time.Now())
	}
	f.users[email] = u
	return u
}

// SentLinks returns the magic link requests seen so far
func (f *FakeProvider) SentLinks() []identity.MagicLinkRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]identity.MagicLinkRequest(nil), f.links...)
}

// SignedOut returns the access tokens passed to SignOut
func (f *FakeProvider) SignedOut() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.signedOut...)
}

// IssueCode simulates the user clicking the last magic link sent to email.
func (f *FakeProvider) IssueCode(email string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for i := len(f.links) - 1; i >= 0; i-- {
		if f.links[i].Email != email {
			continue
		}
		f.next++
		code := fmt.Sprintf("code-%d", f.next)
		f.codes[code] = pendingCode{email: email, challenge: f.links[i].CodeChallenge}
		return code, nil
	}
	return "", fmt.Errorf("no magic link sent to %s", email)
}

// IssueSession signs email in directly, creating the user if needed
func (f *FakeProvider) IssueSession(email string) *identity.Session {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.users[email]; !ok {
		f.addUserLocked(email, "", true)
	}
	return f.issueLocked(email)
}

func (f *FakeProvider) issueLocked(email string) *identity.Session {
	f.next++
	access := fmt.Sprintf("access-%d", f.next)
	refresh := fmt.Sprintf("refresh-%d", f.next)
	f.access[access] = email
	f.refresh[refresh] = email

	user := f.users[email].user
	return &identity.Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(f.SessionTTL.Seconds()),
		ExpiresAt:    time.Now().Add(f.SessionTTL).Unix(),
		RefreshToken: refresh,
		User:         &user,
	}
}

func (f *FakeProvider) SignUp(_ context.Context, req identity.SignUpRequest) (*identity.SignUpResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, exists := f.users[req.Email]; exists {
		return nil, apperrors.ErrUserExists
	}
	u := f.addUserLocked(req.Email, req.Password, f.AutoConfirm)
	if !f.AutoConfirm {
		user := u.user
		user.ConfirmationSentAt = utils.Ptr(time.Now())
		return &identity.SignUpResult{User: &user}, nil
	}
	sess := f.issueLocked(req.Email)
	return &identity.SignUpResult{Session: sess, User: sess.User}, nil
}

func (f *FakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	u, ok := f.users[email]
	if !ok || u.password == "" || u.password != password {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !u.user.Confirmed() {
		return nil, apperrors.ErrEmailNotConfirmed
	}
	return f.issueLocked(email), nil
}

func (f *FakeProvider) SendMagicLink(_ context.Context, req identity.MagicLinkRequest) error {
	if req.Email == "" {
		return apperrors.ErrInvalidRequest
	}
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.users[req.Email]; !ok {
		if !req.CreateUser {
			return apperrors.ErrInvalidCredentials
		}
		f.addUserLocked(req.Email, "", true)
	}
	f.links = append(f.links, req)
	return nil
}

func (f *FakeProvider) ExchangeCode(_ context.Context, code, codeVerifier string) (*identity.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	pending, ok := f.codes[code]
	if !ok {
		return nil, apperrors.ErrLinkExpired
	}
	delete(f.codes, code)
	if oauth2.S256ChallengeFromVerifier(codeVerifier) != pending.challenge {
		return nil, apperrors.ErrLinkExpired
	}
	return f.issueLocked(pending.email), nil
}

func (f *FakeProvider) SessionFromTokens(ctx context.Context, partial identity.Session) (*identity.Session, error) {
	user, err := f.GetUser(ctx, partial.AccessToken)
	if err != nil {
		return nil, err
	}
	sess := partial
	sess.User = user
	return &sess, nil
}

func (f *FakeProvider) GetUser(_ context.Context, accessToken string) (*identity.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	email, ok := f.access[accessToken]
	if !ok {
		return nil, apperrors.ErrSessionExpired
	}
	user := f.users[email].user
	return &user, nil
}

func (f *FakeProvider) RefreshSession(_ context.Context, refreshToken string) (*identity.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	email, ok := f.refresh[refreshToken]
	if !ok {
		return nil, apperrors.ErrSessionExpired
	}
	delete(f.refresh, refreshToken)

	// refreshed sessions are always valid for an hour
	ttl := f.SessionTTL
	f.SessionTTL = time.Hour
	defer func() { f.SessionTTL = ttl }()
	return f.issueLocked(email), nil
}

func (f *FakeProvider) UpdatePassword(_ context.Context, accessToken, password string) (*identity.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	email, ok := f.access[accessToken]
	if !ok {
		return nil, apperrors.ErrSessionExpired
	}
	if len(password) < 6 {
		return nil, apperrors.ErrWeakPassword
	}
	f.users[email].password = password
	user := f.users[email].user
	return &user, nil
}

func (f *FakeProvider) SignOut(_ context.Context, accessToken string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.signedOut = append(f.signedOut, accessToken)
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	delete(f.access, accessToken)
	return nil
}
