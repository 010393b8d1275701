// Package gate is the only read path consumers should use. It withholds the
// live session until the process has mounted and hydration has finished, so
// the first thing a consumer renders is always the same placeholder.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/securewatch/securewatch/internal/session"
)

// Session is the state machine behind the gate.
type Session interface {
	Snapshot() session.State
	Subscribe() (<-chan session.State, func())
	InitializeAuth(ctx context.Context)
	Login(ctx context.Context, creds session.Credentials) error
	Register(ctx context.Context, details session.RegisterDetails) error
	Logout()
	GetCurrentUser(ctx context.Context) error
	ClearError()
}

// Actions are the session operations. The same values are returned by every
// View call, placeholder or not.
type Actions struct {
	Login          func(ctx context.Context, creds session.Credentials) error
	Register       func(ctx context.Context, details session.RegisterDetails) error
	Logout         func()
	GetCurrentUser func(ctx context.Context) error
	ClearError     func()
}

// View is what consumers read.
type View struct {
	session.State
	*Actions
}

// Placeholder is the state reported until the gate is ready.
var Placeholder = session.State{IsLoading: true}

// Gate combines the two readiness signals: mounted and hydrated.
type Gate struct {
	session  Session
	actions  *Actions
	envReady atomic.Bool
	mount    sync.Once
	hydrated chan struct{}
}

// New wraps s. Nothing happens until Mount is called.
func New(s Session) *Gate {
	return &Gate{
		session: s,
		actions: &Actions{
			Login:          s.Login,
			Register:       s.Register,
			Logout:         s.Logout,
			GetCurrentUser: s.GetCurrentUser,
			ClearError:     s.ClearError,
		},
		hydrated: make(chan struct{}),
	}
}

// Mount marks the environment live and starts hydration. Only the first call
// has any effect; it does not block.
func (g *Gate) Mount(ctx context.Context) {
	g.mount.Do(func() {
		g.envReady.Store(true)
		go func() {
			g.session.InitializeAuth(context.WithoutCancel(ctx))
			close(g.hydrated)
		}()
	})
}

// Ready reports whether View passes the live state through.
func (g *Gate) Ready() bool {
	return g.envReady.Load() && g.session.Snapshot().HasHydrated
}

// View returns the placeholder until Ready, then the live state.
func (g *Gate) View() View {
	if !g.envReady.Load() {
		return View{State: Placeholder, Actions: g.actions}
	}

	s := g.session.Snapshot()
	if !s.HasHydrated {
		return View{State: Placeholder, Actions: g.actions}
	}
	return View{State: s, Actions: g.actions}
}

// Wait mounts the gate if needed and blocks until it is ready or ctx is done.
func (g *Gate) Wait(ctx context.Context) (View, error) {
	g.Mount(ctx)

	updates, cancel := g.session.Subscribe()
	defer cancel()

	for {
		if v := g.View(); v.HasHydrated {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return g.View(), ctx.Err()
		case <-g.hydrated:
		case <-updates:
		}
	}
}

// Watch streams views until ctx is done. The first value is the current
// view; the channel is closed when ctx ends.
func (g *Gate) Watch(ctx context.Context) <-chan View {
	out := make(chan View, 1)
	updates, cancel := g.session.Subscribe()

	go func() {
		defer close(out)
		defer cancel()

		send := func() bool {
			select {
			case out <- g.View():
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok || !send() {
					return
				}
			}
		}
	}()

	return out
}
