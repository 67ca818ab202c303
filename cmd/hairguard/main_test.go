package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/dashboard"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "store:\n  backend: memory\nblobs:\n  backend: memory\nclient:\n  session_file: " +
		filepath.Join(dir, "session.json") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "logout", "whoami", "checkin", "pending", "reanalyze",
		"dashboard", "report", "food", "history", "chat", "tui", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	out, err = run(t, "--config", cfg, "login", "--email", "a@example.com", "--name", "Aki")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Aki")

	out, err = run(t, "--config", cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Aki")

	_, err = run(t, "--config", cfg, "logout")
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "pending")
	assert.ErrorIs(t, err, errSignedOut)
}

func TestCheckinNeedsArgument(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "checkin")
	assert.Error(t, err)
}

func TestFlowError(t *testing.T) {
	assert.EqualError(t, flowError("表示用", assert.AnError), "表示用")
	assert.ErrorIs(t, flowError("", assert.AnError), assert.AnError)
}

func TestPrintSeries(t *testing.T) {
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	render := func(points ...dashboard.Point) string {
		cmd := &cobra.Command{}
		var out bytes.Buffer
		cmd.SetOut(&out)
		printSeries(cmd, dashboard.SeriesState{Points: points})
		return out.String()
	}

	single := render(dashboard.Point{ID: "a", Date: at, DensityIndex: 0.42})
	assert.Contains(t, single, "latest 0.420")
	assert.False(t, strings.ContainsAny(single, "▁▂▃▄▅▆▇█"))
	assert.NotContains(t, single, "polyline")

	two := render(
		dashboard.Point{ID: "a", Date: at, DensityIndex: 0.40},
		dashboard.Point{ID: "b", Date: at.Add(time.Hour), DensityIndex: 0.45},
	)
	assert.True(t, strings.ContainsAny(two, "▁▂▃▄▅▆▇█"))
	assert.Contains(t, two, "polyline")
}
