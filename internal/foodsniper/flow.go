// Package foodsniper asks the agent API what to buy on the way home, with the
// device position when one is available, and lists past requests.
package foodsniper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

// Request constants.
const (
	LocateTimeout   = 8 * time.Second
	AccuracyM       = 40.0
	SearchRadiusM   = 800
	DefaultMessage  = "帰りにレバー買って"
	msgUnsupported  = "この環境では位置情報を取得できません。"
	msgLocateFailed = "位置情報の取得に失敗しました。"
	msgRecommend    = "推薦APIの呼び出しに失敗しました。"
	msgHistory      = "履歴の取得に失敗しました。"
	msgUnknown      = "不明なエラーが発生しました。"
	msgNoStores     = "位置情報がないため候補がありません。"
	msgNoHistory    = "まだ履歴がありません。"
)

// ErrBusy is returned when a recommendation is already in flight.
var ErrBusy = errors.New("foodsniper: recommendation in progress")

// Status of the flow.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Recommender is the part of the agent API the flow calls.
type Recommender interface {
	Recommend(ctx context.Context, token string, req models.FoodSniperRequest) (*models.FoodSniperResponse, error)
}

// State is a snapshot for rendering.
type State struct {
	Status         Status
	Location       *models.Location
	Result         *models.FoodSniperResponse
	Message        string
	History        []models.FoodRequest
	HistoryMessage string
}

// Flow is one food-sniper screen instance.
type Flow struct {
	identity session.Identity
	api      Recommender
	locator  Locator
	history  *History
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// New returns an idle flow. A nil locator behaves as NoLocator.
func New(identity session.Identity, client Recommender, locator Locator, history *History, logger *zap.Logger) *Flow {
	if locator == nil {
		locator = NoLocator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		identity: identity,
		api:      client,
		locator:  locator,
		history:  history,
		logger:   logger,
		state:    State{Status: StatusIdle},
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// AcquireLocation asks the locator for a high-accuracy fix and waits at most
// LocateTimeout. On failure the error is shown and the location stays unset.
func (f *Flow) AcquireLocation(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, LocateTimeout)
	defer cancel()

	loc, err := f.locator.Locate(ctx, LocateOptions{HighAccuracy: true})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if errors.Is(err, ErrLocationUnsupported) {
			f.state.Message = msgUnsupported
		} else {
			f.state.Message = msgLocateFailed
		}
		return err
	}
	f.state.Location = &models.Location{Lat: loc.Lat, Lng: loc.Lng}
	return nil
}

// LoadHistory refreshes the history list.
func (f *Flow) LoadHistory(ctx context.Context) error {
	user := f.identity.User()
	if user == nil || f.history == nil {
		return nil
	}
	entries, err := f.history.Fetch(ctx, user.UID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state.HistoryMessage = err.Error()
		if f.state.HistoryMessage == "" {
			f.state.HistoryMessage = msgHistory
		}
		return err
	}
	f.state.History = entries
	f.state.HistoryMessage = ""
	return nil
}

// Recommend sends message with the current location, if any, then refreshes
// the history so the new request shows up.
func (f *Flow) Recommend(ctx context.Context, message string) error {
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
	f.state.Result = nil
	var loc *models.Location
	if f.state.Location != nil {
		acc := AccuracyM
		loc = &models.Location{Lat: f.state.Location.Lat, Lng: f.state.Location.Lng, AccuracyM: &acc}
	}
	f.mu.Unlock()

	resp, err := f.recommend(ctx, message, loc)

	f.mu.Lock()
	if err != nil {
		f.state.Status = StatusError
		f.state.Message = recommendMessage(err)
		f.mu.Unlock()
		f.logger.Warn("recommendation failed", zap.Error(err))
		return err
	}
	f.state.Result = resp
	f.state.Status = StatusIdle
	f.mu.Unlock()

	if err := f.LoadHistory(ctx); err != nil {
		f.logger.Warn("failed to refresh history", zap.Error(err))
	}
	return nil
}

func (f *Flow) recommend(ctx context.Context, message string, loc *models.Location) (*models.FoodSniperResponse, error) {
	token, err := f.identity.IDToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	radius := SearchRadiusM
	return f.api.Recommend(ctx, token, models.FoodSniperRequest{
		Message:  message,
		Location: loc,
		RadiusM:  &radius,
	})
}

func recommendMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s(%d) %s", msgRecommend, se.StatusCode, se.Body)
	}
	if err.Error() == "" {
		return msgUnknown
	}
	return err.Error()
}

// FormatResult renders items, stores and the shopping list.
func FormatResult(r *models.FoodSniperResponse) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("おすすめ食材\n")
	for _, item := range r.Items {
		fmt.Fprintf(&b, "  %s: %s\n", item.Name, item.Why)
	}
	b.WriteString("寄れる店\n")
	if len(r.Stores) == 0 {
		fmt.Fprintf(&b, "  %s\n", msgNoStores)
	}
	for _, st := range r.Stores {
		dist := ""
		if st.DistanceM != nil && *st.DistanceM > 0 {
			dist = fmt.Sprintf(" (%dm)", *st.DistanceM)
		}
		fmt.Fprintf(&b, "  %s%s：確度 %.2f / %s\n", st.Name, dist, st.Confidence, st.Note)
	}
	b.WriteString("買い物リスト\n")
	for _, item := range r.ShoppingList {
		fmt.Fprintf(&b, "  %s\n", item)
	}
	return b.String()
}
