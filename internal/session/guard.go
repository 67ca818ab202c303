// Package session tracks who is signed in for the lifetime of a screen and
// decides whether a protected screen may render.
package session

import (
	"context"
	"sync"

	"github.com/hairguard/hairguard/internal/auth"
)

// Decision is what a protected screen should do with the current state.
type Decision int

const (
	// Wait means identity is still resolving: render nothing, do not redirect.
	Wait Decision = iota
	// RedirectLogin means identity resolved without a user.
	RedirectLogin
	// Allow means a user is signed in.
	Allow
)

func (d Decision) String() string {
	switch d {
	case RedirectLogin:
		return "redirect_login"
	case Allow:
		return "allow"
	default:
		return "wait"
	}
}

// State is the current identity and whether it is still loading.
type State struct {
	User    *auth.User
	Loading bool
}

// Decide maps a state to a decision.
func (s State) Decide() Decision {
	switch {
	case s.Loading:
		return Wait
	case s.User == nil:
		return RedirectLogin
	default:
		return Allow
	}
}

// Identity is what flows need from the session: the current user and a way
// to get a bearer token for them.
type Identity interface {
	User() *auth.User
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Guard subscribes to a provider on creation and unsubscribes on Close.
type Guard struct {
	provider auth.Provider

	mu          sync.Mutex
	state       State
	closed      bool
	changes     chan State
	ready       chan struct{}
	unsubscribe func()
}

// NewGuard starts in the loading state until the provider reports.
func NewGuard(provider auth.Provider) *Guard {
	g := &Guard{
		provider: provider,
		state:    State{Loading: true},
		changes:  make(chan State, 1),
		ready:    make(chan struct{}),
	}
	g.unsubscribe = provider.Subscribe(g.onChange)
	return g
}

func (g *Guard) onChange(u *auth.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	wasLoading := g.state.Loading
	g.state = State{User: u}
	if wasLoading {
		close(g.ready)
	}

	select {
	case g.changes <- g.state:
	default:
		select {
		case <-g.changes:
		default:
		}
		g.changes <- g.state
	}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Decide is State().Decide().
func (g *Guard) Decide() Decision {
	return g.State().Decide()
}

// User returns the signed-in user, or nil while loading or signed out.
func (g *Guard) User() *auth.User {
	return g.State().User
}

// IDToken asks the provider for a bearer token.
func (g *Guard) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	return g.provider.IDToken(ctx, forceRefresh)
}

// Changes delivers the latest state after every change. Intermediate states
// may be coalesced. The channel is closed by Close.
func (g *Guard) Changes() <-chan State {
	return g.changes
}

// Wait blocks until identity has resolved.
func (g *Guard) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.ready:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// Close unsubscribes from the provider. It is safe to call more than once.
func (g *Guard) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.changes)
	g.mu.Unlock()

	g.unsubscribe()
}
