// Package dashboard reads the density series and generates reports on demand.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/session"
)

// SeriesLimit is the most results the dashboard reads.
const SeriesLimit = 50

const msgLoadFailed = "読み込みに失敗しました。"

// Window selects which results are read once there are more than SeriesLimit.
type Window int

const (
	// WindowOldest reads computedAt ascending with the limit applied, which
	// returns the oldest SeriesLimit results.
	WindowOldest Window = iota
	// WindowNewest reads the newest SeriesLimit results, oldest first.
	WindowNewest
)

// Point is one density measurement.
type Point struct {
	ID           string
	Date         time.Time
	DensityIndex float64
}

// SeriesState is a snapshot for rendering.
type SeriesState struct {
	Loading bool
	Message string
	Points  []Point
}

// View is what the dashboard should render.
type View string

const (
	ViewLoading      View = "loading"
	ViewError        View = "error"
	ViewEmpty        View = "empty"
	ViewInsufficient View = "insufficient"
	ViewChart        View = "chart"
)

// View decides between loading, error, no data and the chart.
func (s SeriesState) View() View {
	switch {
	case s.Loading:
		return ViewLoading
	case s.Message != "":
		return ViewError
	case len(s.Points) == 0:
		return ViewEmpty
	case len(s.Points) < 2:
		return ViewInsufficient
	default:
		return ViewChart
	}
}

// SeriesOption configures a Series.
type SeriesOption func(*Series)

// WithWindow selects the read window.
func WithWindow(w Window) SeriesOption {
	return func(s *Series) { s.window = w }
}

// WithClock replaces time.Now for the timestamp fallback.
func WithClock(now func() time.Time) SeriesOption {
	return func(s *Series) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SeriesOption {
	return func(s *Series) { s.logger = l }
}

// Series reads the signed-in user's analysis results.
type Series struct {
	identity session.Identity
	store    docstore.Store
	window   Window
	now      func() time.Time
	logger   *zap.Logger

	mu    sync.Mutex
	state SeriesState
}

// NewSeries starts in the loading state.
func NewSeries(identity session.Identity, store docstore.Store, opts ...SeriesOption) *Series {
	s := &Series{
		identity: identity,
		store:    store,
		now:      time.Now,
		logger:   zap.NewNop(),
		state:    SeriesState{Loading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Series) State() SeriesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load reads the series. It does nothing until a user is signed in.
func (s *Series) Load(ctx context.Context) error {
	user := s.identity.User()
	if user == nil {
		return nil
	}
	s.mu.Lock()
	s.state.Loading = true
	s.state.Message = ""
	s.mu.Unlock()

	points, err := s.read(ctx, user.UID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Message = err.Error()
		if s.state.Message == "" {
			s.state.Message = msgLoadFailed
		}
		s.logger.Warn("failed to load series", zap.String("uid", user.UID), zap.Error(err))
		return err
	}
	s.state.Points = points
	return nil
}

func (s *Series) read(ctx context.Context, uid string) ([]Point, error) {
	q := docstore.Query{OrderBy: "computedAt", Direction: docstore.Asc, Limit: SeriesLimit}
	if s.window == WindowNewest {
		q.Direction = docstore.Desc
	}
	snaps, err := s.store.Query(ctx, docstore.UserItems(models.CollectionAnalysisResults, uid), q)
	if err != nil {
		return nil, fmt.Errorf("query analysis results: %w", err)
	}
	if s.window == WindowNewest {
		for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
	}

	points := make([]Point, 0, len(snaps))
	for _, snap := range snaps {
		density, ok := snap.Number("densityIndex")
		if !ok {
			continue
		}
		points = append(points, Point{ID: snap.Ref.ID, Date: pointTime(snap, s.now), DensityIndex: density})
	}
	return points, nil
}

// pointTime prefers computedAt, then createdAt, then now. Only structured
// timestamps count.
func pointTime(snap docstore.Snapshot, now func() time.Time) time.Time {
	if t, ok := snap.Time("computedAt"); ok {
		return t
	}
	if t, ok := snap.Time("createdAt"); ok {
		return t
	}
	return now()
}

// Summary is the latest point and its change from the one before.
type Summary struct {
	Latest   *Point
	Previous *Point
	Delta    float64
	HasDelta bool
}

// Summarize derives the summary. Delta is 0 with fewer than two points.
func Summarize(points []Point) Summary {
	var s Summary
	if n := len(points); n > 0 {
		s.Latest = &points[n-1]
		if n > 1 {
			s.Previous = &points[n-2]
			s.Delta = s.Latest.DensityIndex - s.Previous.DensityIndex
			s.HasDelta = true
		}
	}
	return s
}

// Default drawing area.
const (
	SparklineWidth   = 640
	SparklineHeight  = 200
	SparklinePadding = 20
)

// XY is a vertex of the polyline.
type XY struct {
	X, Y float64
}

// Polyline is the min-max normalised series inside a drawing area.
type Polyline struct {
	Points  []XY
	Width   float64
	Height  float64
	Padding float64
}

// String renders the points attribute of an SVG polyline.
func (p *Polyline) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, len(p.Points))
	for i, pt := range p.Points {
		parts[i] = strconv.FormatFloat(pt.X, 'f', -1, 64) + "," + strconv.FormatFloat(pt.Y, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Sparkline returns nil for fewer than two points.
func Sparkline(points []Point, width, height, padding float64) *Polyline {
	if len(points) < 2 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.DensityIndex)
		hi = math.Max(hi, p.DensityIndex)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	step := (width - padding*2) / float64(len(points)-1)

	line := &Polyline{Width: width, Height: height, Padding: padding, Points: make([]XY, len(points))}
	for i, p := range points {
		norm := (p.DensityIndex - lo) / span
		line.Points[i] = XY{
			X: padding + step*float64(i),
			Y: height - padding - norm*(height-padding*2),
		}
	}
	return line
}

// DefaultSparkline uses the standard drawing area.
func DefaultSparkline(points []Point) *Polyline {
	return Sparkline(points, SparklineWidth, SparklineHeight, SparklinePadding)
}
