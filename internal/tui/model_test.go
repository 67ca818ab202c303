package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/blobstore"
	"github.com/hairguard/hairguard/internal/checkin"
	"github.com/hairguard/hairguard/internal/dashboard"
	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/foodsniper"
	"github.com/hairguard/hairguard/internal/mentalshield"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

type fakeSession struct {
	mu      sync.Mutex
	state   session.State
	changes chan session.State
}

func newFakeSession(st session.State) *fakeSession {
	return &fakeSession{state: st, changes: make(chan session.State, 1)}
}

func (f *fakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Changes() <-chan session.State { return f.changes }

func (f *fakeSession) User() *auth.User { return f.State().User }

func (f *fakeSession) IDToken(context.Context, bool) (string, error) { return "tok", nil }

type fakeChatter struct {
	messages []string
}

func (f *fakeChatter) Chat(_ context.Context, _ string, req models.MentalShieldRequest) (*models.MentalShieldResponse, error) {
	f.messages = append(f.messages, req.Message)
	return &models.MentalShieldResponse{
		Cards: []models.ChatCard{
			{Agent: "doctor", Text: "受診の目安"},
			{Agent: "coach", Text: "今日の一歩"},
			{Agent: "buddy", Text: "大丈夫"},
		},
		Summary:  "焦らずいこう",
		ThreadID: "default",
	}, nil
}

type fakeReports struct{}

func (fakeReports) GenerateReport(context.Context, string, models.ReportGenerateRequest) (*models.ReportGenerateResponse, error) {
	return &models.ReportGenerateResponse{ReportID: "report_1", Highlights: []string{"h"}, NextActions: []string{"a"}}, nil
}

func newModel(t *testing.T, user *auth.User) (Model, *fakeSession, *fakeChatter) {
	t.Helper()
	return newModelWithStore(t, user, docstore.NewMemoryStore())
}

func newModelWithStore(t *testing.T, user *auth.User, store docstore.Store) (Model, *fakeSession, *fakeChatter) {
	t.Helper()
	sess := newFakeSession(session.State{User: user})
	chatter := &fakeChatter{}
	flows := Flows{
		CheckIn: checkin.New(checkin.Deps{Identity: sess, Store: store, Blobs: blobstore.NewMemoryStore()}),
		Series:  dashboard.NewSeries(sess, store),
		Reports: dashboard.NewReports(sess, fakeReports{}, nil),
		Food:    foodsniper.New(sess, nil, nil, foodsniper.NewHistory(store), nil),
		Chat:    mentalshield.New(sess, chatter, nil),
	}
	t.Cleanup(flows.CheckIn.Close)
	return New(context.Background(), sess, flows), sess, chatter
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSessionGating(t *testing.T) {
	m, _, _ := newModel(t, nil)
	m.decision = session.Wait
	assert.Contains(t, m.View(), "読み込み中")

	m, _ = update(t, m, SessionMsg(session.State{}))
	assert.Equal(t, session.RedirectLogin, m.decision)
	assert.Contains(t, m.View(), "ログインが必要です")

	// actions are ignored until someone signs in
	m.screen = ScreenChat
	_, cmd := update(t, m, key("enter"))
	assert.Nil(t, cmd)

	m, cmd = update(t, m, SessionMsg(session.State{User: &auth.User{UID: "u1"}}))
	assert.Equal(t, session.Allow, m.decision)
	assert.NotNil(t, cmd)
	assert.True(t, m.running[ActionLoadSeries])
}

func TestTabsWrap(t *testing.T) {
	m, _, _ := newModel(t, &auth.User{UID: "u1"})
	for _, want := range []Screen{ScreenDashboard, ScreenFood, ScreenChat, ScreenCheckIn} {
		m, _ = update(t, m, key("tab"))
		assert.Equal(t, want, m.screen)
	}
	m, _ = update(t, m, key("shift+tab"))
	assert.Equal(t, ScreenChat, m.screen)
	assert.Equal(t, mentalshield.DefaultMessage, m.input.Placeholder)
}

func TestChatRoundTrip(t *testing.T) {
	m, _, chatter := newModel(t, &auth.User{UID: "u1"})
	m.screen = ScreenChat
	for _, r := range "抜け毛" {
		m, _ = update(t, m, key(string(r)))
	}
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, m.running[ActionChat])
	assert.Empty(t, m.input.Value())

	// a second enter while the first is in flight is dropped
	_, again := update(t, m, key("enter"))
	assert.Nil(t, again)

	done := cmd()
	require.IsType(t, DoneMsg{}, done)
	m, _ = update(t, m, done)
	assert.False(t, m.running[ActionChat])
	assert.Equal(t, []string{"抜け毛"}, chatter.messages)

	view := m.View()
	assert.Contains(t, view, "受診の目安")
	assert.Contains(t, view, "焦らずいこう")
}

func TestChatDefaultMessage(t *testing.T) {
	m, _, chatter := newModel(t, &auth.User{UID: "u1"})
	m.screen = ScreenChat
	_, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{mentalshield.DefaultMessage}, chatter.messages)
}

func TestDashboardKeys(t *testing.T) {
	m, _, _ := newModel(t, &auth.User{UID: "u1"})
	m.screen = ScreenDashboard

	m, cmd := update(t, m, key("g"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "report_1")

	m, cmd = update(t, m, key("r"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "まだ解析結果がありません")
}

func TestDashboardSinglePointHasNoChart(t *testing.T) {
	store := docstore.NewMemoryStore()
	ref := docstore.UserItems(models.CollectionAnalysisResults, "u1").Doc("analysis_p1")
	require.NoError(t, store.Set(context.Background(), ref, docstore.Data{
		"densityIndex": 0.42,
		"computedAt":   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}))

	m, _, _ := newModelWithStore(t, &auth.User{UID: "u1"}, store)
	m.screen = ScreenDashboard
	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	view := m.View()
	assert.Contains(t, view, "0.420")
	assert.False(t, strings.ContainsAny(view, "▁▂▃▄▅▆▇█"), "single point drew a chart: %q", view)
}

func TestCheckInNeedsPath(t *testing.T) {
	m, _, _ := newModel(t, &auth.User{UID: "u1"})
	_, cmd := update(t, m, key("enter"))
	assert.Nil(t, cmd)
}
