package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/ytmp3d/fetch"
	"github.com/xeptore/ytmp3d/log"
	"github.com/xeptore/ytmp3d/media"
	"github.com/xeptore/ytmp3d/ratelimit"
	"github.com/xeptore/ytmp3d/waitqueue"
)

var errArchive = errors.New("archive failed")

type playlistJob struct {
	archive    *archive
	queue      *waitqueue.Queue[media.Entry]
	filesAdded atomic.Int32
	filesError atomic.Int32
	logger     *zerolog.Logger
}

// playlist streams a ZIP of every entry. The deadline only applies until the
// first archive byte is sent; after that the batch runs to completion so the
// archive can be finalized.
func (s *Server) playlist(w http.ResponseWriter, r *http.Request, req *media.Request, logger *zerolog.Logger) {
	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)

	resp := newResponder(w, r.Context(), logger)
	job := &playlistJob{ //nolint:exhaustruct
		archive: newArchive(resp),
		logger:  logger,
	}

	deadline := time.AfterFunc(s.opts.PlaylistTimeout, func() {
		if job.archive.expire() {
			cancel(errDeadline)
			return
		}
		logger.Warn().Dur("timeout", s.opts.PlaylistTimeout).Msg("Playlist deadline passed after streaming started. Finishing archive")
	})
	defer deadline.Stop()

	entries, err := s.lister.Playlist(ctx, req.URL)
	if nil != err {
		switch {
		case resp.disconnected():
			logger.Info().Msg("Client disconnected while listing playlist")
		case isDeadline(ctx):
			logger.Warn().Dur("timeout", s.opts.PlaylistTimeout).Msg("Playlist listing timed out")
			resp.error(http.StatusGatewayTimeout, msgTimeout)
		default:
			logger.Error().Func(log.Flaw(err)).Msg("Failed to list playlist")
			resp.error(http.StatusInternalServerError, msgPlaylistPrefix+err.Error())
		}
		return
	}
	if len(entries) == 0 {
		logger.Info().Msg("Playlist has no entries")
		resp.error(http.StatusBadRequest, msgEmptyPlaylist)
		return
	}

	total := len(entries)
	entries = lo.Subset(entries, 0, ratelimit.PlaylistMaxEntries)
	logger.Info().Int("entries", total).Int("processing", len(entries)).Msg("Playlist listed")

	job.queue = waitqueue.New(entries)

	wg, wgCtx := errgroup.WithContext(ctx)
	for range ratelimit.PlaylistDownloadConcurrency {
		wg.Go(func() error { return s.playlistWorker(wgCtx, job) })
	}
	err = wg.Wait()

	defer func() {
		logger.Info().
			Int32("files_added", job.filesAdded.Load()).
			Int32("files_error", job.filesError.Load()).
			Msg("Playlist request finished")
	}()

	switch {
	case nil == err:
	case resp.disconnected():
		logger.Info().Msg("Client disconnected. Playlist download aborted")
		return
	case isDeadline(ctx):
		logger.Warn().Dur("timeout", s.opts.PlaylistTimeout).Msg("Playlist download timed out")
		resp.error(http.StatusGatewayTimeout, msgTimeout)
		return
	case errors.Is(err, errArchive):
		logger.Error().Err(err).Msg("Playlist archive failed")
		if !job.archive.Committed() {
			resp.error(http.StatusInternalServerError, msgArchive)
		}
		return
	default:
		logger.Error().Func(log.Flaw(err)).Msg("Playlist download failed")
		resp.error(http.StatusInternalServerError, msgProcessPrefix+err.Error())
		return
	}

	select {
	case <-job.queue.Drained():
	default:
		panic("playlist workers returned before the queue was drained")
	}

	if err := job.archive.Close(); nil != err {
		switch {
		case isDeadline(ctx):
			logger.Warn().Dur("timeout", s.opts.PlaylistTimeout).Msg("Playlist timed out before the archive was sent")
			resp.error(http.StatusGatewayTimeout, msgTimeout)
		default:
			logger.Error().Err(err).Msg("Failed to finalize playlist archive")
			if !job.archive.Committed() {
				resp.error(http.StatusInternalServerError, msgArchive)
			}
		}
	}
}

// playlistWorker pulls entries until the queue is exhausted. Per-entry
// failures are counted and skipped; only cancellation and archive failures
// stop the worker.
func (s *Server) playlistWorker(ctx context.Context, job *playlistJob) error {
	for {
		if err := ctx.Err(); nil != err {
			return err
		}
		entry, index, ok := job.queue.Next()
		if !ok {
			return nil
		}
		err := s.playlistEntry(ctx, job, entry, index)
		job.queue.Done()
		if nil != err {
			return err
		}
	}
}

func (s *Server) playlistEntry(ctx context.Context, job *playlistJob, entry media.Entry, index int) error {
	logger := job.logger.With().
		Int("index", index+1).
		Int("of", job.queue.Len()).
		Str("entry_id", entry.ID).
		Str("entry_title", entry.Title).
		Logger()
	logger.Info().Int("in_flight", job.queue.InFlight()).Msg("Downloading playlist entry")

	track, err := s.fetcher.Fetch(ctx, entry.URL())
	if nil != err {
		if nil != ctx.Err() {
			return ctx.Err()
		}
		job.filesError.Add(1)
		if stageErr := new(fetch.StageError); errors.As(err, &stageErr) {
			logger.Warn().Str("stage", string(stageErr.Stage)).Err(stageErr.Err).Msg("Playlist entry failed")
		} else {
			logger.Error().Func(log.Flaw(err)).Msg("Playlist entry failed")
		}
		return nil
	}
	defer func() {
		if err := track.File.Remove(); nil != err {
			logger.Error().Func(log.Flaw(err)).Msg("Failed to remove temp file")
		}
	}()

	file, err := os.Open(track.File.Path)
	if nil != err {
		job.filesError.Add(1)
		logger.Error().Err(err).Msg("Failed to open converted entry")
		return nil
	}
	defer file.Close()

	name, err := job.archive.Add(track.FileName, file)
	if nil != err {
		if ctxErr := ctx.Err(); nil != ctxErr {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", errArchive, err)
	}
	job.filesAdded.Add(1)
	logger.Info().Str("name", name).Msg("Playlist entry added to archive")
	return nil
}
