package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hairguard/hairguard/internal/auth"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualProvider delivers state only when told to.
type manualProvider struct {
	mu          sync.Mutex
	fns         map[int]func(*auth.User)
	next        int
	unsubscribe int
}

func (p *manualProvider) Subscribe(fn func(*auth.User)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fns == nil {
		p.fns = map[int]func(*auth.User){}
	}
	id := p.next
	p.next++
	p.fns[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.fns, id)
		p.unsubscribe++
	}
}

func (p *manualProvider) emit(u *auth.User) {
	p.mu.Lock()
	fns := make([]func(*auth.User), 0, len(p.fns))
	for _, fn := range p.fns {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (p *manualProvider) listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fns)
}

func (p *manualProvider) CurrentUser() *auth.User { return nil }
func (p *manualProvider) IDToken(context.Context, bool) (string, error) {
	return "token", nil
}
func (p *manualProvider) SignIn(context.Context, auth.Credentials) (*auth.User, error) {
	return nil, nil
}
func (p *manualProvider) SignOut(context.Context) error { return nil }

func TestGuardLoadingNeverRedirects(t *testing.T) {
	p := &manualProvider{}
	g := NewGuard(p)
	defer g.Close()

	assert.True(t, g.State().Loading)
	assert.Equal(t, Wait, g.Decide())
	assert.Nil(t, g.User())

	p.emit(nil)
	assert.False(t, g.State().Loading)
	assert.Equal(t, RedirectLogin, g.Decide())

	p.emit(&auth.User{UID: "u1"})
	assert.Equal(t, Allow, g.Decide())
	assert.Equal(t, "u1", g.User().UID)

	p.emit(nil)
	assert.Equal(t, RedirectLogin, g.Decide())
}

func TestGuardCloseUnsubscribes(t *testing.T) {
	p := &manualProvider{}
	g := NewGuard(p)
	assert.Equal(t, 1, p.listeners())

	g.Close()
	g.Close()
	assert.Equal(t, 0, p.listeners())
	assert.Equal(t, 1, p.unsubscribe)

	_, open := <-g.Changes()
	assert.False(t, open)
}

func TestGuardWait(t *testing.T) {
	p := &manualProvider{}
	g := NewGuard(p)
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, st.Loading)

	go p.emit(&auth.User{UID: "u2"})
	st, err = g.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Loading)
	assert.Equal(t, "u2", st.User.UID)
}

func TestGuardChangesCoalesce(t *testing.T) {
	p := &manualProvider{}
	g := NewGuard(p)
	defer g.Close()

	p.emit(nil)
	p.emit(&auth.User{UID: "u3"})

	st := <-g.Changes()
	assert.Equal(t, "u3", st.User.UID)
	assert.Equal(t, Allow, st.Decide())
}

func TestGuardWithDevProvider(t *testing.T) {
	ctx := context.Background()
	p, err := auth.NewDevProvider("secret", "")
	require.NoError(t, err)

	g := NewGuard(p)
	st, err := g.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, RedirectLogin, st.Decide())

	_, err = p.SignIn(ctx, auth.Credentials{Email: "d@example.com"})
	require.NoError(t, err)

	select {
	case st := <-g.Changes():
		if st.User == nil {
			st = <-g.Changes()
		}
		assert.Equal(t, "d@example.com", st.User.Email)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	tok, err := g.IDToken(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	g.Close()
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "wait", Wait.String())
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "allow", Allow.String())
}
