// Package mentalshield sends a worry to the agent API and keeps the three
// persona cards it answers with. Nothing is accumulated between calls.
package mentalshield

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

const (
	ThreadID       = "default"
	Mode           = "balanced"
	DefaultMessage = "最近抜け毛が増えた気がして不安です"

	msgChatFailed = "メンタルシールドの呼び出しに失敗しました。"
	msgUnknown    = "不明なエラーが発生しました。"
)

// ErrBusy is returned when a message is already in flight.
var ErrBusy = errors.New("mentalshield: message in flight")

// Status of the flow.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Chatter is the part of the agent API the flow calls.
type Chatter interface {
	Chat(ctx context.Context, token string, req models.MentalShieldRequest) (*models.MentalShieldResponse, error)
}

// State is a snapshot for rendering.
type State struct {
	Status  Status
	Result  *models.MentalShieldResponse
	Message string
}

// Flow is one mental-shield screen instance.
type Flow struct {
	identity session.Identity
	api      Chatter
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// New returns an idle flow.
func New(identity session.Identity, client Chatter, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{identity: identity, api: client, logger: logger, state: State{Status: StatusIdle}}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Send posts message on the default thread in balanced mode.
func (f *Flow) Send(ctx context.Context, message string) error {
	if f.identity.User() == nil {
		return nil
	}
	f.mu.Lock()
	if f.state.Status == StatusLoading {
		f.mu.Unlock()
		return ErrBusy
	}
	f.state.Status = StatusLoading
	f.state.Message = ""
	f.mu.Unlock()

	resp, err := f.send(ctx, message)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state.Status = StatusError
		f.state.Message = chatMessage(err)
		f.logger.Warn("mental shield call failed", zap.Error(err))
		return err
	}
	f.state.Result = resp
	f.state.Status = StatusIdle
	return nil
}

func (f *Flow) send(ctx context.Context, message string) (*models.MentalShieldResponse, error) {
	token, err := f.identity.IDToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return f.api.Chat(ctx, token, models.MentalShieldRequest{
		ThreadID: ThreadID,
		Message:  message,
		Mode:     Mode,
	})
}

func chatMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s(%d) %s", msgChatFailed, se.StatusCode, se.Body)
	}
	if err.Error() == "" {
		return msgUnknown
	}
	return err.Error()
}

// FormatResult renders the cards followed by the summary.
func FormatResult(r *models.MentalShieldResponse) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range r.Cards {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", c.Agent, c.Text)
	}
	fmt.Fprintf(&b, "[まとめ]\n%s\n", r.Summary)
	return b.String()
}
