package identity

import (
	"context"

	"golang.org/x/oauth2"
)

// Refresher is the part of Provider a token source needs
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}

type refreshTokenSource struct {
	ctx          context.Context
	refresher    Refresher
	refreshToken string
}

// Token refreshes unconditionally; ReuseTokenSource decides when to call it.
func (s *refreshTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.refresher.RefreshSession(s.ctx, s.refreshToken)
	if err != nil {
		return nil, err
	}
	// refresh tokens rotate
	s.refreshToken = sess.RefreshToken
	return sess.OAuth2Token(), nil
}

// NewTokenSource returns a source that hands out sess until it expires and
// refreshes it with the provider afterwards.
func NewTokenSource(ctx context.Context, r Refresher, sess *Session) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(sess.OAuth2Token(), &refreshTokenSource{
		ctx:          ctx,
		refresher:    r,
		refreshToken: sess.RefreshToken,
	})
}
