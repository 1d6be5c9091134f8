// Package auth implements the guard that gates the protected views.
package auth

import (
	"context"
	"log"

	"github.com/dkim-dev/gochat-client/internal/session"
	"github.com/dkim-dev/gochat-client/internal/types"
)

type State int

const (
	StatePending State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// SessionAPI is the slice of the REST client the guard needs.
type SessionAPI interface {
	ValidateSession(ctx context.Context) (types.User, bool, error)
	RefreshSession(ctx context.Context) error
}

// Guard validates the session token before a protected view renders.
// A run is: validate, and on a miss refresh exactly once and validate
// again. A second miss is final for that run; there is no retry loop.
type Guard struct {
	api  SessionAPI
	ctrl *session.Controller
	log  *log.Logger
}

func NewGuard(api SessionAPI, ctrl *session.Controller, logger *log.Logger) *Guard {
	return &Guard{
		api:  api,
		ctrl: ctrl,
		log:  logger,
	}
}

// Check runs the guard once and returns the terminal state. The session
// store is populated on success and cleared on failure, so it reflects
// the most recent run.
func (g *Guard) Check(ctx context.Context) State {
	user, ok, err := g.api.ValidateSession(ctx)
	if err == nil && ok {
		g.ctrl.Set(user)
		return StateAuthenticated
	}
	if err != nil {
		g.log.Println("validate session:", err)
	}

	if err := g.api.RefreshSession(ctx); err != nil {
		g.log.Println("refresh session:", err)
		g.ctrl.Clear()
		return StateUnauthenticated
	}

	user, ok, err = g.api.ValidateSession(ctx)
	if err != nil || !ok {
		if err != nil {
			g.log.Println("validate session after refresh:", err)
		}
		g.ctrl.Clear()
		return StateUnauthenticated
	}

	g.ctrl.Set(user)
	return StateAuthenticated
}
