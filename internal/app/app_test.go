package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/checkin"
	"github.com/hairguard/hairguard/internal/config"
	"github.com/hairguard/hairguard/internal/foodsniper"
	"github.com/hairguard/hairguard/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "hairguard.db")
	cfg.Blobs.Dir = filepath.Join(dir, "blobs")
	cfg.Client.SessionFile = filepath.Join(dir, "session.json")
	return cfg
}

func stripes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 160, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 160; x++ {
			v := uint8(230)
			if (x/8)%2 == 0 {
				v = 30
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCheckInEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	backend, err := OpenBackend(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, backend.Close()) })
	assert.Nil(t, backend.Text)

	srv := httptest.NewServer(backend.Server().Handler())
	t.Cleanup(srv.Close)
	cfg.Client.APIBase = srv.URL

	client, err := OpenClient(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, client.Close()) })

	_, err = client.Provider.SignIn(ctx, auth.Credentials{Email: "a@example.com"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return client.Guard.User() != nil }, 5*time.Second, 10*time.Millisecond)

	flows := client.Flows()
	defer flows.CheckIn.Close()
	require.NoError(t, flows.CheckIn.Select(checkin.File{Name: "scalp.png", Data: stripes(t)}))
	require.NoError(t, flows.CheckIn.Submit(ctx))

	state := flows.CheckIn.State()
	require.Equal(t, checkin.StatusDone, state.Status, state.Message)
	require.NotNil(t, state.Result)
	assert.InDelta(t, 0.5, state.Result.DensityIndex, 0.05)
	assert.Equal(t, models.AnalysisIDFor(state.PhotoID), state.Result.AnalysisID)

	require.NoError(t, flows.Series.Load(ctx))
	assert.Len(t, flows.Series.State().Points, 1)

	pending, err := flows.CheckIn.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, flows.Reports.Generate(ctx))
	require.NotNil(t, flows.Reports.State().Report)
}

func TestLocator(t *testing.T) {
	cfg := testConfig(t)
	c := &Client{cfg: cfg}
	assert.Equal(t, foodsniper.NoLocator{}, c.Locator())

	lat, lng := 35.0, 139.0
	cfg.Client.Latitude, cfg.Client.Longitude = &lat, &lng
	assert.Equal(t, foodsniper.StaticLocator{Lat: 35, Lng: 139}, c.Locator())
}

func TestOpenBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"density model", func(c *config.Config) { c.ML.Type = "tflite" }, "failed to create ML model"},
		{"text model", func(c *config.Config) { c.ML.TextType = "gpt" }, "failed to create text model"},
		{"store", func(c *config.Config) { c.Store.Backend = "mongo" }, "failed to open document store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			b, err := OpenBackend(context.Background(), cfg, nil)
			require.ErrorContains(t, err, tt.want)
			assert.Nil(t, b)
		})
	}
}
