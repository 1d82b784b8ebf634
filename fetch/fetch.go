package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/xeptore/ytmp3d/cache"
	"github.com/xeptore/ytmp3d/errutil"
	"github.com/xeptore/ytmp3d/log"
	"github.com/xeptore/ytmp3d/media"
	"github.com/xeptore/ytmp3d/resolver"
	"github.com/xeptore/ytmp3d/tmpfile"
)

const tempPrefix = "ytmp3d"

// ErrFallbackOutputMissing is returned when the fallback tool exits cleanly
// without leaving a usable MP3 behind.
var ErrFallbackOutputMissing = errors.New("fallback produced no output file")

type Resolver interface {
	Resolve(ctx context.Context, url string) (*resolver.Video, error)
}

type Transcoder interface {
	ToFile(ctx context.Context, src io.Reader, path string) error
}

type Extractor interface {
	Title(ctx context.Context, url string) (string, error)
	ExtractAudio(ctx context.Context, url, outTemplate string) error
}

type Stage string

const (
	StageExtraction Stage = "extraction"
	StageConversion Stage = "conversion"
	StageFallback   Stage = "fallback"
)

// StageError is a terminal failure of one fetch, tagged with the step that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Track is a finished MP3 on disk. The caller owns File and must Remove it.
type Track struct {
	Title    string
	FileName string
	File     *tmpfile.File
	Fallback bool
}

type Options struct {
	TempDir string
	// MaxConcurrent caps fetches running at once across all requests. Zero disables the cap.
	MaxConcurrent int64
}

type Fetcher struct {
	resolver   Resolver
	transcoder Transcoder
	extractor  Extractor
	cache      *cache.Cache
	sem        *semaphore.Weighted
	tempDir    string
	logger     zerolog.Logger
}

func New(res Resolver, tr Transcoder, ex Extractor, c *cache.Cache, opts Options, logger zerolog.Logger) *Fetcher {
	var sem *semaphore.Weighted
	if opts.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return &Fetcher{
		resolver:   res,
		transcoder: tr,
		extractor:  ex,
		cache:      c,
		sem:        sem,
		tempDir:    opts.TempDir,
		logger:     logger,
	}
}

// Fetch resolves url and produces an MP3 on disk, switching to the fallback
// extractor when the primary one is incompatible with the source. Context
// errors are returned as is; every other failure is a *StageError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Track, error) {
	if nil != f.sem {
		if err := f.sem.Acquire(ctx, 1); nil != err {
			return nil, err
		}
		defer f.sem.Release(1)
	}

	logger := f.logger.With().Str("url", url).Logger()

	video, err := f.resolver.Resolve(ctx, url)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, resolver.ErrIncompatible):
			logger.Warn().Err(err).Msg("Primary extractor is incompatible. Switching to fallback extractor")
			return f.fallback(ctx, url, logger)
		default:
			logger.Error().Func(log.Flaw(err)).Msg("Failed to resolve video")
			return nil, &StageError{Stage: StageExtraction, Err: err}
		}
	}
	defer video.Stream.Close()

	logger.Info().
		Str("video_id", video.ID).
		Str("title", video.Title).
		Int64("source_size", video.Size).
		Msg("Resolved video. Starting conversion")

	file := tmpfile.New(f.tempDir, tempPrefix, ".mp3")
	if err := f.transcoder.ToFile(ctx, video.Stream, file.Path); nil != err {
		f.remove(file, logger)
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		logger.Error().Func(log.Flaw(err)).Msg("Failed to convert video")
		return nil, &StageError{Stage: StageConversion, Err: err}
	}

	title := media.SanitizeTitle(video.Title)
	logger.Info().Str("file", file.Path).Msg("Conversion finished")
	return &Track{
		Title:    title,
		FileName: title + ".mp3",
		File:     file,
		Fallback: false,
	}, nil
}

func (f *Fetcher) fallback(ctx context.Context, url string, logger zerolog.Logger) (*Track, error) {
	title := media.SanitizeTitle(f.fallbackTitle(ctx, url, logger))

	file := tmpfile.New(f.tempDir, tempPrefix, ".mp3")
	if err := f.extractor.ExtractAudio(ctx, url, file.WithExt(".%(ext)s")); nil != err {
		f.remove(file, logger)
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		logger.Error().Func(log.Flaw(err)).Msg("Fallback extractor failed")
		return nil, &StageError{Stage: StageFallback, Err: err}
	}

	if size, err := file.Size(); nil != err || size == 0 {
		f.remove(file, logger)
		logger.Error().Err(err).Int64("size", size).Msg("Fallback extractor left no usable output")
		return nil, &StageError{Stage: StageFallback, Err: ErrFallbackOutputMissing}
	}

	logger.Info().Str("title", title).Str("file", file.Path).Msg("Fallback extraction finished")
	return &Track{
		Title:    title,
		FileName: title + ".mp3",
		File:     file,
		Fallback: true,
	}, nil
}

// fallbackTitle never fails: probe errors fall back to the placeholder title.
func (f *Fetcher) fallbackTitle(ctx context.Context, url string, logger zerolog.Logger) string {
	if title, ok := f.cache.Titles.Get(url); ok {
		return title
	}

	title, err := f.extractor.Title(ctx, url)
	if nil != err {
		logger.Warn().Err(err).Msg("Failed to get title from fallback extractor. Using placeholder")
		return media.PlaceholderTitle
	}
	f.cache.Titles.Set(url, title, cache.DefaultTitleTTL)
	return title
}

func (f *Fetcher) remove(file *tmpfile.File, logger zerolog.Logger) {
	if err := file.Remove(); nil != err {
		logger.Error().Func(log.Flaw(err)).Msg("Failed to remove temp file")
	}
}
