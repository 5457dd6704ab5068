package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// Authenticator establishes and verifies the portal session.
type Authenticator interface {
	Login(ctx context.Context) error
	EnsureAuthenticated(ctx context.Context) error
}

// SessionGuard decides whether the session is authenticated by probing an
// authenticated-only resource. The result is never cached.
type SessionGuard struct {
	session    SessionProvider
	routes     Routes
	classifier ResponseClassifier
	logger     *slog.Logger
}

// NewSessionGuard creates a session guard.
func NewSessionGuard(session SessionProvider, routes Routes, classifier ResponseClassifier, logger *slog.Logger) *SessionGuard {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &SessionGuard{
		session:    session,
		routes:     routes,
		classifier: classifier,
		logger:     logger,
	}
}

// IsAuthenticated probes the session. Absence of the auth-error marker means authenticated.
func (g *SessionGuard) IsAuthenticated(ctx context.Context) (bool, error) {
	body, err := g.session.Get(ctx, g.routes.ProbeURL())
	if err != nil {
		return false, fmt.Errorf("session probe: %w", err)
	}
	return !g.classifier.IsAuthError(body), nil
}

// Login runs the delegated sign-in flow.
func (g *SessionGuard) Login(ctx context.Context) error {
	g.logger.InfoContext(ctx, "login start")
	if err := g.session.Login(ctx); err != nil {
		return &domain.AuthenticationError{Reason: "login flow failed", Err: err}
	}
	g.logger.InfoContext(ctx, "login successful")
	return nil
}

// EnsureAuthenticated logs in when the probe fails and re-probes once.
func (g *SessionGuard) EnsureAuthenticated(ctx context.Context) error {
	ok, err := g.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	g.logger.InfoContext(ctx, "session expired, re-authenticating")
	if err := g.Login(ctx); err != nil {
		return err
	}

	ok, err = g.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.AuthenticationError{Reason: "probe still reports an auth error after login"}
	}
	return nil
}
