package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/unicourses/core/session"
	"github.com/trezcool/unicourses/core/user"
)

// SessionBackend adapts the SDK to session.Backend so consumers can drive a
// session.Store against the live API.
type SessionBackend struct {
	client *Client
}

var _ session.Backend = (*SessionBackend)(nil)

func NewSessionBackend(client *Client) *SessionBackend {
	return &SessionBackend{client: client}
}

func (b *SessionBackend) GetSession(ctx context.Context) (session.Session, error) {
	if b.client.Token() == "" {
		return session.Session{}, session.ErrNoSession
	}
	sess, err := b.client.Session(ctx)
	if err != nil {
		if isAuthError(err) {
			return session.Session{}, session.ErrNoSession
		}
		return session.Session{}, err
	}
	return session.Session{UserID: sess.UserID}, nil
}

func (b *SessionBackend) GetProfileRole(ctx context.Context, userID string) (user.Role, error) {
	sess, err := b.client.Session(ctx)
	if err != nil {
		return "", err
	}
	if sess.UserID != userID {
		return "", errors.Errorf("session does not belong to user %q", userID)
	}
	return sess.Role, nil
}

func (b *SessionBackend) SignInWithPassword(ctx context.Context, email, password string) (session.Session, error) {
	if err := b.client.Login(ctx, email, password); err != nil {
		return session.Session{}, err
	}
	sess, err := b.client.Session(ctx)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{UserID: sess.UserID}, nil
}

// SignOut drops the stored token; the API keeps no server-side session.
func (b *SessionBackend) SignOut(ctx context.Context) error {
	b.client.Logout()
	return nil
}

func isAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
