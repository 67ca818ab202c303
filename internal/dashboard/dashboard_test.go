package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/api"
	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/docstore"
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

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func results() docstore.CollectionRef {
	return docstore.UserItems(models.CollectionAnalysisResults, "u1")
}

func put(t *testing.T, s docstore.Store, id string, data docstore.Data) {
	t.Helper()
	require.NoError(t, s.Set(context.Background(), results().Doc(id), data))
}

func TestSeriesLoad(t *testing.T) {
	store := docstore.NewMemoryStore()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	put(t, store, "a", docstore.Data{"densityIndex": 0.40, "computedAt": base})
	put(t, store, "b", docstore.Data{"densityIndex": "n/a", "computedAt": base.Add(time.Hour)})
	put(t, store, "c", docstore.Data{"densityIndex": 0.45, "computedAt": base.Add(2 * time.Hour)})
	// string timestamps are not structured: fall back to createdAt, then now
	put(t, store, "d", docstore.Data{"densityIndex": 0.5, "computedAt": "2026-03-02T00:00:00Z", "createdAt": base.Add(72 * time.Hour)})
	put(t, store, "e", docstore.Data{"densityIndex": 0.6, "computedAt": "2026-03-03T00:00:00Z"})
	// other users are never read
	require.NoError(t, store.Set(context.Background(),
		docstore.UserItems(models.CollectionAnalysisResults, "u2").Doc("x"),
		docstore.Data{"densityIndex": 0.9, "computedAt": base}))

	s := NewSeries(&fakeIdentity{user: &auth.User{UID: "u1"}}, store, WithClock(func() time.Time { return now }))
	assert.Equal(t, ViewLoading, s.State().View())

	require.NoError(t, s.Load(context.Background()))
	st := s.State()
	assert.False(t, st.Loading)
	require.Len(t, st.Points, 4)

	byID := map[string]Point{}
	for _, p := range st.Points {
		byID[p.ID] = p
	}
	assert.NotContains(t, byID, "b")
	assert.Equal(t, base, byID["a"].Date)
	assert.Equal(t, base.Add(72*time.Hour), byID["d"].Date)
	assert.Equal(t, now, byID["e"].Date)
	assert.Equal(t, ViewChart, st.View())
}

func TestSeriesWaitsForUser(t *testing.T) {
	s := NewSeries(&fakeIdentity{}, docstore.NewMemoryStore())
	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.State().Loading)
}

func TestSeriesWindow(t *testing.T) {
	store := docstore.NewMemoryStore()
	for i := 0; i < 55; i++ {
		put(t, store, fmt.Sprintf("r%02d", i), docstore.Data{
			"densityIndex": float64(i) / 100,
			"computedAt":   base.Add(time.Duration(i) * time.Hour),
		})
	}
	id := &fakeIdentity{user: &auth.User{UID: "u1"}}

	oldest := NewSeries(id, store)
	require.NoError(t, oldest.Load(context.Background()))
	pts := oldest.State().Points
	require.Len(t, pts, SeriesLimit)
	assert.Equal(t, "r00", pts[0].ID)
	assert.Equal(t, "r49", pts[len(pts)-1].ID)

	newest := NewSeries(id, store, WithWindow(WindowNewest))
	require.NoError(t, newest.Load(context.Background()))
	pts = newest.State().Points
	require.Len(t, pts, SeriesLimit)
	assert.Equal(t, "r05", pts[0].ID)
	assert.Equal(t, "r54", pts[len(pts)-1].ID)
}

type failingStore struct {
	docstore.Store
}

func (failingStore) Query(context.Context, docstore.CollectionRef, docstore.Query) ([]docstore.Snapshot, error) {
	return nil, errors.New("permission denied")
}

func TestSeriesFailure(t *testing.T) {
	s := NewSeries(&fakeIdentity{user: &auth.User{UID: "u1"}}, failingStore{})
	require.Error(t, s.Load(context.Background()))
	st := s.State()
	assert.False(t, st.Loading)
	assert.Contains(t, st.Message, "permission denied")
	assert.Equal(t, ViewError, st.View())
}

func TestSeriesViews(t *testing.T) {
	assert.Equal(t, ViewEmpty, SeriesState{}.View())
	assert.Equal(t, ViewInsufficient, SeriesState{Points: []Point{{DensityIndex: 1}}}.View())
}

func TestSummarize(t *testing.T) {
	s := Summarize(nil)
	assert.Nil(t, s.Latest)
	assert.False(t, s.HasDelta)
	assert.Zero(t, s.Delta)

	s = Summarize([]Point{{DensityIndex: 0.4}})
	require.NotNil(t, s.Latest)
	assert.Nil(t, s.Previous)
	assert.Zero(t, s.Delta)
	assert.False(t, s.HasDelta)

	s = Summarize([]Point{{DensityIndex: 0.4}, {DensityIndex: 0.42}, {DensityIndex: 0.47}})
	assert.True(t, s.HasDelta)
	assert.InDelta(t, 0.05, s.Delta, 1e-9)
	assert.InDelta(t, 0.42, s.Previous.DensityIndex, 1e-9)
}

func TestSparkline(t *testing.T) {
	assert.Nil(t, DefaultSparkline(nil))
	assert.Nil(t, DefaultSparkline([]Point{{DensityIndex: 1}}))

	values := []float64{0.3, 0.5, 0.4}
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{DensityIndex: v}
	}
	line := DefaultSparkline(pts)
	require.NotNil(t, line)
	require.Len(t, line.Points, 3)

	// x steps evenly across the padded width
	assert.InDelta(t, 20, line.Points[0].X, 1e-9)
	assert.InDelta(t, 320, line.Points[1].X, 1e-9)
	assert.InDelta(t, 620, line.Points[2].X, 1e-9)

	// y is the min-max normalised value, inverted inside the padded height
	for i, v := range values {
		norm := (v - 0.3) / 0.2
		assert.InDelta(t, 200-20-norm*160, line.Points[i].Y, 1e-9)
	}
	assert.InDelta(t, 180, line.Points[0].Y, 1e-9)
	assert.InDelta(t, 20, line.Points[1].Y, 1e-9)

	flat := DefaultSparkline([]Point{{DensityIndex: 0.5}, {DensityIndex: 0.5}})
	assert.Equal(t, "20,180 620,180", flat.String())
}

func TestReportsGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = jsonDecode(r, &got)
		_, _ = w.Write([]byte(`{"reportId":"report_1","highlights":["h1"],"nextActions":["a1","a2"],"rawText":"raw"}`))
	}))
	defer srv.Close()

	id := &fakeIdentity{user: &auth.User{UID: "u1"}}
	r := NewReports(id, api.New(srv.URL), nil)
	require.NoError(t, r.Generate(context.Background()))

	st := r.State()
	assert.Equal(t, ReportIdle, st.Status)
	require.NotNil(t, st.Report)
	assert.Equal(t, "report_1", st.Report.ReportID)
	assert.Equal(t, []string{"a1", "a2"}, st.Report.NextActions)
	assert.EqualValues(t, 7, got["periodDays"])
	assert.Equal(t, []bool{true}, id.forced)
	assert.Contains(t, FormatReport(st.Report), "  - h1")
}

func TestReportsErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"llm down"}`))
	}))
	defer srv.Close()

	r := NewReports(&fakeIdentity{user: &auth.User{UID: "u1"}}, api.New(srv.URL), nil)
	require.Error(t, r.Generate(context.Background()))

	st := r.State()
	assert.Equal(t, ReportError, st.Status)
	assert.Equal(t, `レポート生成に失敗しました。(500) {"detail":"llm down"}`, st.Message)
	assert.Nil(t, st.Report)
}

func TestReportsRejectsOverlap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte(`{"reportId":"report_1","highlights":[],"nextActions":[],"rawText":""}`))
	}))
	defer srv.Close()

	r := NewReports(&fakeIdentity{user: &auth.User{UID: "u1"}}, api.New(srv.URL), nil)
	done := make(chan error, 1)
	go func() { done <- r.Generate(context.Background()) }()
	<-entered

	assert.Equal(t, ReportLoading, r.State().Status)
	assert.ErrorIs(t, r.Generate(context.Background()), ErrBusy)
	close(release)
	require.NoError(t, <-done)
}

func TestReportsNoUser(t *testing.T) {
	r := NewReports(&fakeIdentity{}, api.New("http://127.0.0.1:0"), nil)
	require.NoError(t, r.Generate(context.Background()))
	assert.Equal(t, ReportIdle, r.State().Status)
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
