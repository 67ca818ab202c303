package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
	}
}

func TestDevProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	p, err := NewDevProvider("secret", path)
	require.NoError(t, err)
	assert.Nil(t, p.CurrentUser())

	_, err = p.IDToken(ctx, false)
	assert.ErrorIs(t, err, ErrNoUser)

	u, err := p.SignIn(ctx, Credentials{Email: "Alice@example.com", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, DevUID("alice@example.com"), u.UID)
	assert.Equal(t, "Alice", u.Label())

	token, err := p.IDToken(ctx, false)
	require.NoError(t, err)

	uid, err := NewDevVerifier("secret").Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.UID, uid)

	_, err = NewDevVerifier("other").Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// cached until forced
	again, err := p.IDToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	forced, err := p.IDToken(ctx, true)
	require.NoError(t, err)
	assert.NotEqual(t, token, forced)

	// a second provider restores the session from disk
	restored, err := NewDevProvider("secret", path)
	require.NoError(t, err)
	require.NotNil(t, restored.CurrentUser())
	assert.Equal(t, u.UID, restored.CurrentUser().UID)

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.CurrentUser())
	assert.NoFileExists(t, path)
}

func TestDevProviderRequiresEmail(t *testing.T) {
	p, err := NewDevProvider("secret", "")
	require.NoError(t, err)
	_, err = p.SignIn(context.Background(), Credentials{})
	assert.Error(t, err)
}

func TestDevVerifierExpired(t *testing.T) {
	ctx := context.Background()
	p, err := NewDevProvider("secret", "")
	require.NoError(t, err)
	p.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	_, err = p.SignIn(ctx, Credentials{Email: "a@example.com"})
	require.NoError(t, err)

	token, err := p.IDToken(ctx, true)
	require.NoError(t, err)
	_, err = NewDevVerifier("secret").Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSubscribeDeliversCurrentStateAndChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	p, err := NewDevProvider("secret", "")
	require.NoError(t, err)

	states := make(chan *User, 4)
	unsubscribe := p.Subscribe(func(u *User) { states <- u })

	select {
	case u := <-states:
		assert.Nil(t, u)
	case <-time.After(time.Second):
		t.Fatal("initial state not delivered")
	}

	_, err = p.SignIn(ctx, Credentials{Email: "b@example.com"})
	require.NoError(t, err)
	select {
	case u := <-states:
		require.NotNil(t, u)
		assert.Equal(t, "b@example.com", u.Email)
	case <-time.After(time.Second):
		t.Fatal("sign-in not delivered")
	}

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, p.listeners.count())

	require.NoError(t, p.SignOut(ctx))
	select {
	case u := <-states:
		t.Fatalf("unexpected delivery after unsubscribe: %v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTokenSourceSharesRefresh(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	ts := NewTokenSource(func(context.Context) (string, time.Time, error) {
		calls.Add(1)
		<-release
		return "tok", time.Now().Add(time.Hour), nil
	})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := ts.Token(context.Background(), false)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
	for _, r := range results {
		assert.Equal(t, "tok", r)
	}

	tok, err := ts.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestTokenSourceRefreshSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	ts := NewTokenSource(func(ctx context.Context) (string, time.Time, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return "", time.Time{}, err
		}
		return "tok", time.Now().Add(time.Hour), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := ts.Token(ctx, true)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		tok, err := ts.Token(context.Background(), true)
		assert.NoError(t, err)
		second <- tok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	assert.Equal(t, "tok", <-second)
	assert.NoError(t, <-first)
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	n := 0
	ts := NewTokenSource(func(context.Context) (string, time.Time, error) {
		n++
		return "fresh", time.Now().Add(time.Hour), nil
	})
	ts.Seed("stale", time.Now().Add(time.Minute))

	tok, err := ts.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, n)
}

func TestTokenSourceError(t *testing.T) {
	boom := errors.New("boom")
	ts := NewTokenSource(func(context.Context) (string, time.Time, error) {
		return "", time.Time{}, boom
	})
	_, err := ts.Token(context.Background(), true)
	assert.ErrorIs(t, err, boom)
}

func newFirebaseStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"INVALID_PASSWORD"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"localId":      "uid-1",
			"email":        body["email"].(string),
			"idToken":      "id-1",
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
		})
	})
	mux.HandleFunc("/token/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      "id-2",
			"refresh_token": "refresh-1",
			"expires_in":    "3600",
			"user_id":       "uid-1",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFirebaseProvider(t *testing.T) {
	ctx := context.Background()
	srv := newFirebaseStub(t)
	path := filepath.Join(t.TempDir(), "session.json")

	p, err := NewFirebaseProvider("key", path, WithEndpoints(srv.URL+"/identity", srv.URL+"/token"))
	require.NoError(t, err)

	_, err = p.SignIn(ctx, Credentials{Email: "c@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_PASSWORD")
	assert.Nil(t, p.CurrentUser())

	u, err := p.SignIn(ctx, Credentials{Email: "c@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", u.UID)

	tok, err := p.IDToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "id-1", tok)

	tok, err = p.IDToken(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "id-2", tok)

	restored, err := NewFirebaseProvider("key", path, WithEndpoints(srv.URL+"/identity", srv.URL+"/token"))
	require.NoError(t, err)
	tok, err = restored.IDToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "id-2", tok)

	require.NoError(t, p.SignOut(ctx))
	_, err = p.IDToken(ctx, false)
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestFirebaseProviderRequiresKey(t *testing.T) {
	_, err := NewFirebaseProvider("", "")
	assert.Error(t, err)
}
