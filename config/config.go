package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/ytmp3d/log"
	"github.com/xeptore/ytmp3d/mathutil"
	"github.com/xeptore/ytmp3d/ratelimit"
)

var (
	DefaultAddr                    = ":3000"
	DefaultShutdownGrace           = 10 * time.Second
	DefaultSingleDownloadTimeout   = 2 * time.Minute
	DefaultPlaylistDownloadTimeout = 5 * time.Minute
	DefaultYTDLPShim               = []string{"npx", "yt-dlp"}
)

const (
	minTimeout = time.Second
	maxTimeout = time.Hour
)

type Config struct {
	Server   Server   `json:"server"     yaml:"server"`
	Timeouts Timeouts `json:"timeouts"   yaml:"timeouts"`
	FFmpeg   FFmpeg   `json:"ffmpeg"     yaml:"ffmpeg"`
	YTDLP    YTDLP    `json:"ytdlp"      yaml:"ytdlp"`
	TempDir  string   `json:"temp_dir"   yaml:"temp_dir"`
	// UserAgent overrides the browser User-Agent sent to YouTube.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
	Limits    Limits `json:"limits"     yaml:"limits"`
	Log       Log    `json:"log"        yaml:"log"`
}

type Server struct {
	Addr          string        `json:"addr"           yaml:"addr"`
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
}

type Timeouts struct {
	Single   time.Duration `json:"single"   yaml:"single"`
	Playlist time.Duration `json:"playlist" yaml:"playlist"`
}

type FFmpeg struct {
	Path string `json:"path" yaml:"path"`
}

type YTDLP struct {
	Path string `json:"path" yaml:"path"`
	// Shim is the command used when Path cannot be found. Set to an empty
	// list to disable the shim.
	Shim []string `json:"shim" yaml:"shim"`
}

type Limits struct {
	// MaxConcurrentFetches caps downloads across all requests. Zero means no cap.
	MaxConcurrentFetches int `json:"max_concurrent_fetches" yaml:"max_concurrent_fetches"`
}

type Log struct {
	Level  string `json:"level"  yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:          DefaultAddr,
			ShutdownGrace: DefaultShutdownGrace,
		},
		Timeouts: Timeouts{
			Single:   DefaultSingleDownloadTimeout,
			Playlist: DefaultPlaylistDownloadTimeout,
		},
		FFmpeg:    FFmpeg{Path: "ffmpeg"},
		YTDLP:     YTDLP{Path: "yt-dlp", Shim: append([]string(nil), DefaultYTDLPShim...)},
		TempDir:   "",
		UserAgent: "",
		Limits:    Limits{MaxConcurrentFetches: 0},
		Log:       Log{Level: zerolog.LevelInfoValue, Format: log.FormatPretty},
	}
}

func (cfg *Config) validate() error {
	if cfg.Server.Addr == "" {
		return errors.New("server address is empty")
	}

	if cfg.FFmpeg.Path == "" {
		return errors.New("ffmpeg path is empty")
	}

	if cfg.YTDLP.Path == "" {
		return errors.New("yt-dlp path is empty")
	}

	if cfg.Limits.MaxConcurrentFetches < 0 {
		return errors.New("max concurrent fetches is negative")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); nil != err {
		return fmt.Errorf("invalid log level %q: %v", cfg.Log.Level, err)
	}

	switch cfg.Log.Format {
	case log.FormatPretty, log.FormatPacked:
	default:
		return fmt.Errorf("invalid log format %q", cfg.Log.Format)
	}

	if cfg.TempDir != "" {
		info, err := os.Stat(cfg.TempDir)
		if nil != err {
			return fmt.Errorf("failed to stat temp dir: %v", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("temp dir %q is not a directory", cfg.TempDir)
		}
	}

	return nil
}

func (cfg *Config) normalize() {
	cfg.Timeouts.Single = mathutil.Clamp(cfg.Timeouts.Single, minTimeout, maxTimeout)
	cfg.Timeouts.Playlist = mathutil.Clamp(cfg.Timeouts.Playlist, minTimeout, maxTimeout)
	cfg.Server.ShutdownGrace = mathutil.Clamp(cfg.Server.ShutdownGrace, 0, maxTimeout)
	cfg.Limits.MaxConcurrentFetches = mathutil.Clamp(cfg.Limits.MaxConcurrentFetches, 0, ratelimit.MaxConcurrentFetchesCeiling)
}

// LogLevel returns the parsed log level. It must only be called on a validated config.
func (cfg *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(cfg.Log.Level)
	if nil != err {
		panic(fmt.Sprintf("unexpected invalid log level %q", cfg.Log.Level))
	}
	return lvl
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	cfg, err := parse(data)
	if nil != err {
		return nil, fmt.Errorf("config file %q: %v", filePath, err)
	}
	return cfg, nil
}

func FromString(data string) (*Config, error) {
	return parse([]byte(data))
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}
	cfg.normalize()

	// Compared after clamping.
	if cfg.Timeouts.Single >= cfg.Timeouts.Playlist {
		return nil, fmt.Errorf("validation failed: single timeout %s must be shorter than playlist timeout %s", cfg.Timeouts.Single, cfg.Timeouts.Playlist)
	}

	return cfg, nil
}
