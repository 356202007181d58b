// Package session maintains the single source of truth for "who is logged in
// and with what role" on behalf of API clients, and decides what a role-gated
// route should do with the current state.
package session

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/unicourses/core/user"
)

var ErrNoSession = errors.New("no active session")

// Status is the lifecycle of the session state. A fresh Store starts in
// StatusResolving so gating can hold off until Init has resolved the role;
// routes must not flash an unauthorized redirect while a session lookup is
// still in flight.
type Status int

const (
	StatusResolving Status = iota
	StatusAnonymous
	StatusAuthenticated
)

// State is an immutable snapshot of the session.
// Role is zero when anonymous, or when the user is authenticated but their
// profile carries no role; such users fail every role-gated route.
type State struct {
	Status Status
	Role   user.Role
}

func (s State) IsAuthenticated() bool { return s.Status == StatusAuthenticated }

// Session is the backend's record of an authenticated user.
type Session struct {
	UserID string
}

// Backend is the auth/profile collaborator consumed by the Store.
type Backend interface {
	// GetSession returns the currently active session, or ErrNoSession.
	GetSession(ctx context.Context) (Session, error)
	// GetProfileRole resolves the role held by the given user's profile;
	// zero when the profile has no role assigned.
	GetProfileRole(ctx context.Context, userID string) (user.Role, error)
	// SignInWithPassword performs the credential check and opens a session.
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
}

// Store owns the session State for the lifetime of the process. All mutations
// go through Init, Login, Authenticate and Logout; consumers read snapshots
// via State() or observe transitions via Subscribe.
type Store struct {
	backend       Backend
	strictSignOut bool

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewStore returns a Store in StatusResolving. Pass strictSignOut=true to
// surface backend sign-out failures from Logout; the default swallows them
// (the state resets either way).
func NewStore(backend Backend, strictSignOut ...bool) *Store {
	s := &Store{
		backend: backend,
		subs:    make(map[int]func(State)),
	}
	if len(strictSignOut) > 0 {
		s.strictSignOut = strictSignOut[0]
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called on every state transition.
// The returned cancel func unregisters it.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	s.state = st
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// notify outside the lock; a subscriber may re-enter the Store
	for _, fn := range fns {
		fn(st)
	}
}

// Init queries the backend for an existing session and resolves the role.
// The state flips exactly once, after role resolution completes. A failed or
// empty role lookup degrades to an authenticated, un-roled state. Calling
// Init again with no intervening login/logout yields the same state.
func (s *Store) Init(ctx context.Context) error {
	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.setState(State{Status: StatusAnonymous})
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return pkgerrors.Wrap(err, "getting session")
	}

	role, err := s.backend.GetProfileRole(ctx, sess.UserID)
	if err != nil || !role.Valid() {
		// authenticated but un-roled; every role-gated route will refuse
		s.setState(State{Status: StatusAuthenticated})
		return nil
	}

	s.setState(State{Status: StatusAuthenticated, Role: role})
	return nil
}

// Login records a successful authentication performed elsewhere.
// It does not verify credentials; that is the backend's job.
func (s *Store) Login(role user.Role) {
	s.setState(State{Status: StatusAuthenticated, Role: role})
}

// Authenticate delegates the credential check to the backend, resolves the
// role and logs in. The state is untouched on failure.
func (s *Store) Authenticate(ctx context.Context, email, password string) (user.Role, error) {
	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return "", pkgerrors.Wrap(err, "signing in")
	}
	role, err := s.backend.GetProfileRole(ctx, sess.UserID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "resolving role")
	}
	if !role.Valid() {
		return "", errors.New("profile has no role assigned")
	}
	s.Login(role)
	return role, nil
}

// Logout signs out of the backend and resets the state unconditionally.
// Sign-out failures are swallowed unless the Store was built with
// strictSignOut.
func (s *Store) Logout(ctx context.Context) error {
	err := s.backend.SignOut(ctx)
	s.setState(State{Status: StatusAnonymous})
	if err != nil && s.strictSignOut {
		return pkgerrors.Wrap(err, "signing out")
	}
	return nil
}
