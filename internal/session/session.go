// Package session bridges a third-party identity assertion (Google sign-in) to
// a backend-issued cookie session and owns the current-user state.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskdeck/internal/api"
	"github.com/and161185/taskdeck/internal/model"
)

// State of the identity lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// TokenSource is the third-party identity provider. IDToken must return a
// freshly minted token when forceRefresh is true; it fails when no third-party
// session exists.
type TokenSource interface {
	SignIn(ctx context.Context) error
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	SignOut(ctx context.Context) error
}

// Backend is the subset of the API client the session needs.
type Backend interface {
	ExchangeGoogleToken(ctx context.Context, idToken string) error
	FetchMe(ctx context.Context) (api.Me, error)
	Logout(ctx context.Context) error
}

// Session is the single authoritative identity state for one process. Only its
// own operations mutate it; other components read via State/Current.
type Session struct {
	tokens  TokenSource
	backend Backend
	log     *zap.Logger

	mu    sync.Mutex
	state State
	user  *model.User
}

// New constructs an uninitialized Session. A nil logger disables logging.
func New(tokens TokenSource, backend Backend, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{tokens: tokens, backend: backend, log: log, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the authenticated user, or nil.
func (s *Session) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) set(u *model.User, st State) {
	s.mu.Lock()
	s.user, s.state = u, st
	s.mu.Unlock()
}

// googleClaims are the standard OIDC profile claims a Google ID token carries.
type googleClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// exchange trades idToken for a backend session and merges the backend profile
// with the token's profile claims. Backend-provided id/name win; token claims
// fill the gaps (name, avatar, provider UID).
func (s *Session) exchange(ctx context.Context, idToken string) (*model.User, error) {
	if err := s.backend.ExchangeGoogleToken(ctx, idToken); err != nil {
		return nil, fmt.Errorf("session exchange: %w", err)
	}
	me, err := s.backend.FetchMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	id, err := uuid.FromString(me.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", me.ID, err)
	}

	// Claims are read unverified: the backend already validated the token
	// during the exchange; these only fill display fields.
	var claims googleClaims
	_, _ = jwt.ParseWithClaims(idToken, &claims, func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)

	u := &model.User{
		ID:          id,
		Email:       me.Email,
		Name:        me.DisplayName,
		AvatarURL:   claims.Picture,
		ProviderUID: claims.Subject,
	}
	if u.Email == "" {
		u.Email = claims.Email
	}
	if u.Name == "" {
		u.Name = claims.Name
	}
	return u, nil
}

// LoginWithGoogle triggers the third-party interactive sign-in. Completion is
// applied by the observer path (Bootstrap), not returned here.
func (s *Session) LoginWithGoogle(ctx context.Context) error {
	return s.tokens.SignIn(ctx)
}

// Bootstrap is the passive sign-in observer: it validates whatever third-party
// session exists and resolves identity accordingly. Any failure on this path
// clears identity to unauthenticated.
func (s *Session) Bootstrap(ctx context.Context) {
	s.set(s.Current(), StateLoading)
	tok, err := s.tokens.IDToken(ctx, true)
	if err != nil {
		s.set(nil, StateUnauthenticated)
		return
	}
	u, err := s.exchange(ctx, tok)
	if err != nil {
		s.log.Error("identity exchange failed", zap.Error(err))
		s.set(nil, StateUnauthenticated)
		return
	}
	s.set(u, StateAuthenticated)
}

// RefreshMe re-exchanges the current third-party token for backend identity.
// Unlike Bootstrap, an exchange failure here leaves the last-known identity in
// place and only logs; a missing third-party session still clears it.
func (s *Session) RefreshMe(ctx context.Context) {
	tok, err := s.tokens.IDToken(ctx, true)
	if err != nil {
		s.set(nil, StateUnauthenticated)
		return
	}
	u, err := s.exchange(ctx, tok)
	if err != nil {
		s.log.Error("refresh identity failed", zap.Error(err))
		return
	}
	s.set(u, StateAuthenticated)
}

// Logout invalidates the backend session best-effort, then tears down the
// third-party session and local identity. Network failure never blocks the
// local logout.
func (s *Session) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.log.Warn("backend logout failed", zap.Error(err))
	}
	if err := s.tokens.SignOut(ctx); err != nil {
		s.log.Warn("provider sign-out failed", zap.Error(err))
	}
	s.set(nil, StateUnauthenticated)
}
