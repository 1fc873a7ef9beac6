package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/config"
)

const sampleConfig = `
[application]
name = "Shapes Demo"
start_width = 800
start_height = 600

[renderer]
backend = "software"
frames_in_flight = 4
max_objects = 32
wireframe = true
clear_color = [0.1, 0.2, 0.3, 1.0]

[scene]
shape_columns = 3
spin_speed_min = 0.1
spin_speed_max = 0.9
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "Shapes Demo", cfg.Application.Name)
	require.Equal(t, uint32(800), cfg.Application.StartWidth)
	require.Equal(t, uint32(4), cfg.Renderer.FramesInFlight)
	require.Equal(t, uint32(32), cfg.Renderer.MaxObjects)
	require.True(t, cfg.Renderer.Wireframe)
	require.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	require.Equal(t, uint32(3), cfg.Scene.ShapeColumns)

	// Fields absent from the file keep their defaults.
	require.Equal(t, uint32(100), cfg.Application.StartPosX)
}

func TestLoadClampsFramesInFlight(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[renderer]\nframes_in_flight = 1\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "not toml at all [")

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestWatcherReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	reloaded := make(chan *config.Config, 1)
	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer watcher.Close()

	writeConfig(t, dir, "[renderer]\nmax_objects = 99\n")

	select {
	case cfg := <-reloaded:
		require.Equal(t, uint32(99), cfg.Renderer.MaxObjects)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the rewritten config")
	}
}
