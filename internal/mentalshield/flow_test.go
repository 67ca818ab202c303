package mentalshield

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/models"
)

type fakeIdentity struct {
	user *auth.User

	mu     sync.Mutex
	forced []bool
}

func (f *fakeIdentity) User() *auth.User { return f.user }

func (f *fakeIdentity) IDToken(_ context.Context, force bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, force)
	return "tok", nil
}

const reply = `{"cards":[{"agent":"encourager","text":"e"},{"agent":"coach","text":"c"},{"agent":"doctor","text":"d"}],"summary":"s","threadId":"default"}`

func TestSend(t *testing.T) {
	var req models.MentalShieldRequest
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(reply))
	}))
	defer srv.Close()

	id := &fakeIdentity{user: &auth.User{UID: "u1"}}
	f := New(id, api.New(srv.URL), nil)
	require.NoError(t, f.Send(context.Background(), DefaultMessage))

	assert.Equal(t, ThreadID, req.ThreadID)
	assert.Equal(t, Mode, req.Mode)
	assert.Equal(t, DefaultMessage, req.Message)
	assert.Equal(t, []bool{true}, id.forced)

	st := f.State()
	assert.Equal(t, StatusIdle, st.Status)
	require.Len(t, st.Result.Cards, 3)
	for i, c := range st.Result.Cards {
		assert.Equal(t, models.Personas[i], c.Agent)
	}
	out := FormatResult(st.Result)
	assert.Contains(t, out, "[doctor]\nd")
	assert.Contains(t, out, "[まとめ]\ns")

	// every call is independent
	require.NoError(t, f.Send(context.Background(), "again"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, "again", req.Message)
	assert.Equal(t, ThreadID, req.ThreadID)
}

func TestSendErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad"))
	}))
	defer srv.Close()

	f := New(&fakeIdentity{user: &auth.User{UID: "u1"}}, api.New(srv.URL), nil)
	require.Error(t, f.Send(context.Background(), "x"))
	assert.Equal(t, StatusError, f.State().Status)
	assert.Equal(t, "メンタルシールドの呼び出しに失敗しました。(400) bad", f.State().Message)
}

func TestSendRejectsOverlap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte(reply))
	}))
	defer srv.Close()

	f := New(&fakeIdentity{user: &auth.User{UID: "u1"}}, api.New(srv.URL), nil)
	done := make(chan error, 1)
	go func() { done <- f.Send(context.Background(), "x") }()
	<-entered
	assert.Equal(t, StatusLoading, f.State().Status)
	assert.ErrorIs(t, f.Send(context.Background(), "y"), ErrBusy)
	close(release)
	require.NoError(t, <-done)
}

func TestSendWithoutUser(t *testing.T) {
	f := New(&fakeIdentity{}, api.New("http://127.0.0.1:0"), nil)
	require.NoError(t, f.Send(context.Background(), "x"))
	assert.Equal(t, StatusIdle, f.State().Status)
	assert.Nil(t, f.State().Result)
}
