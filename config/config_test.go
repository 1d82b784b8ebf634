package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ytmp3d/config"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromString("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Single)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.Playlist)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, "yt-dlp", cfg.YTDLP.Path)
	assert.Equal(t, []string{"npx", "yt-dlp"}, cfg.YTDLP.Shim)
	assert.Zero(t, cfg.Limits.MaxConcurrentFetches)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestFromString(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromString(`
server:
  addr: 127.0.0.1:8080
  shutdown_grace: 3s
timeouts:
  single: 90s
  playlist: 10m
ffmpeg:
  path: /usr/local/bin/ffmpeg
ytdlp:
  path: /usr/local/bin/yt-dlp
  shim: []
limits:
  max_concurrent_fetches: 6
log:
  level: debug
  format: packed
`)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Single)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Playlist)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpeg.Path)
	assert.Empty(t, cfg.YTDLP.Shim)
	assert.Equal(t, 6, cfg.Limits.MaxConcurrentFetches)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, "packed", cfg.Log.Format)
}

func TestClamping(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromString(`
timeouts:
  single: 1ms
  playlist: 48h
limits:
  max_concurrent_fetches: 1000
`)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Timeouts.Single)
	assert.Equal(t, time.Hour, cfg.Timeouts.Playlist)
	assert.Equal(t, 64, cfg.Limits.MaxConcurrentFetches)
}

func TestValidation(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"EmptyAddr":      "server:\n  addr: ''\n",
		"EmptyFFmpeg":    "ffmpeg:\n  path: ''\n",
		"EmptyYTDLP":     "ytdlp:\n  path: ''\n",
		"NegativeLimit":  "limits:\n  max_concurrent_fetches: -1\n",
		"BadLevel":       "log:\n  level: loud\n",
		"BadFormat":      "log:\n  format: xml\n",
		"MissingTempDir": "temp_dir: /definitely/not/here\n",
		"MalformedYAML":  "server: [",
		"SingleLonger":   "timeouts:\n  single: 10m\n  playlist: 5m\n",
		"SingleEqual":    "timeouts:\n  single: 5m\n  playlist: 5m\n",
		"EqualClamped":   "timeouts:\n  single: 2h\n  playlist: 3h\n",
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := config.FromString(doc)
			assert.Error(t, err)
		})
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temp_dir: "+dir+"\n"), 0o600))

	cfg, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.TempDir)

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
