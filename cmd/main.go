package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/cache"
	"github.com/xeptore/ytmp3d/config"
	"github.com/xeptore/ytmp3d/constant"
	"github.com/xeptore/ytmp3d/ctxutil"
	"github.com/xeptore/ytmp3d/fetch"
	"github.com/xeptore/ytmp3d/log"
	"github.com/xeptore/ytmp3d/resolver"
	"github.com/xeptore/ytmp3d/server"
	"github.com/xeptore/ytmp3d/transcode"
	"github.com/xeptore/ytmp3d/ytdlp"
)

const (
	flagConfigFilePath = "config"
)

func main() {
	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	//nolint:exhaustruct
	app := &cli.App{
		Name:     constant.AppName,
		Version:  constant.Version,
		Compiled: constant.CompileTime,
		Suggest:  true,
		Usage:    "YouTube to MP3 download server",
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Run the HTTP server",
				Action:  run,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:     flagConfigFilePath,
						Aliases:  []string{"c"},
						Usage:    "Config file path",
						Required: false,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			return
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

func loadConfig(cliCtx *cli.Context, logger zerolog.Logger) (*config.Config, error) {
	cfgEnv := os.Getenv("CONFIG")
	cfgFilePath := cliCtx.String(flagConfigFilePath)
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return nil, errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		cfg, err := config.FromFile(cfgFilePath)
		if nil != err {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
		return cfg, nil
	case cfgEnv != "":
		logger.Debug().Msg("Loading config from environment variable")
		cfg, err := config.FromString(cfgEnv)
		if nil != err {
			return nil, fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		return cfg, nil
	default:
		logger.Debug().Msg("No config given. Using defaults")
		return config.FromString("")
	}
}

func run(cliCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLogger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	cfg, err := loadConfig(cliCtx, bootLogger)
	if nil != err {
		return err
	}
	logger := log.New(os.Stdout, cfg.Log.Format, cfg.LogLevel())

	c := cache.New()
	defer c.Close()

	ytdlpRunner := ytdlp.New(cfg.YTDLP.Path, cfg.YTDLP.Shim, cfg.FFmpeg.Path, logger.With().Str("module", "ytdlp").Logger())
	fetcher := fetch.New(
		resolver.NewYouTube(cfg.UserAgent, logger.With().Str("module", "resolver").Logger()),
		transcode.NewFFmpeg(cfg.FFmpeg.Path, logger.With().Str("module", "ffmpeg").Logger()),
		ytdlpRunner,
		c,
		fetch.Options{
			TempDir:       cfg.TempDir,
			MaxConcurrent: int64(cfg.Limits.MaxConcurrentFetches),
		},
		logger.With().Str("module", "fetch").Logger(),
	)
	srv := server.New(
		fetcher,
		ytdlpRunner,
		server.Options{
			SingleTimeout:   cfg.Timeouts.Single,
			PlaylistTimeout: cfg.Timeouts.Playlist,
		},
		logger.With().Str("module", "server").Logger(),
	)

	// Requests outlive the signal context by the shutdown grace period so
	// in-flight downloads can finish.
	baseCtx, cancelBase := ctxutil.WithDelayedTimeout(ctx, cfg.Server.ShutdownGrace)
	defer cancelBase()

	//nolint:exhaustruct
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("Server is listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Dur("grace", cfg.Server.ShutdownGrace).Msg("Shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); nil != err {
		logger.Warn().Err(err).Msg("Graceful shutdown did not complete. Closing remaining connections")
		if err := httpServer.Close(); nil != err {
			return fmt.Errorf("failed to close server: %v", err)
		}
	}
	logger.Info().Msg("Server stopped")
	return nil
}
