package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/xeptore/ytmp3d/fetch"
	"github.com/xeptore/ytmp3d/httputil"
	"github.com/xeptore/ytmp3d/log"
	"github.com/xeptore/ytmp3d/media"
)

func (s *Server) single(w http.ResponseWriter, r *http.Request, req *media.Request, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeoutCause(r.Context(), s.opts.SingleTimeout, errDeadline)
	defer cancel()

	resp := newResponder(w, r.Context(), logger)

	track, err := s.fetcher.Fetch(ctx, req.URL)
	if nil != err {
		s.failFetch(ctx, resp, err, logger)
		return
	}
	defer func() {
		if err := track.File.Remove(); nil != err {
			logger.Error().Func(log.Flaw(err)).Msg("Failed to remove temp file")
		}
	}()

	file, err := os.Open(track.File.Path)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to open converted file")
		resp.error(http.StatusInternalServerError, msgProcessPrefix+err.Error())
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if nil != err {
		logger.Error().Err(err).Msg("Failed to stat converted file")
		resp.error(http.StatusInternalServerError, msgProcessPrefix+err.Error())
		return
	}

	ok := resp.begin(func(h http.Header) {
		h.Set("Content-Type", "audio/mpeg")
		h.Set("Content-Disposition", httputil.ContentDisposition(track.FileName))
		h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		httputil.NoCache(h)
	})
	if !ok {
		logger.Info().Msg("Client disconnected before the file could be sent")
		return
	}

	n, err := io.Copy(w, file)
	if nil != err {
		logger.Warn().Err(err).Int64("sent_bytes", n).Int64("size", info.Size()).Msg("Failed to deliver file")
		return
	}
	logger.Info().Str("file_name", track.FileName).Int64("size", n).Bool("fallback", track.Fallback).Msg("File delivered")
}

// failFetch maps a failed fetch to its response. Nothing is written once the
// client is gone.
func (s *Server) failFetch(ctx context.Context, resp *responder, err error, logger *zerolog.Logger) {
	switch {
	case resp.disconnected():
		logger.Info().Msg("Client disconnected. Download cancelled")
		return
	case isDeadline(ctx):
		logger.Warn().Dur("timeout", s.opts.SingleTimeout).Msg("Download timed out")
		resp.error(http.StatusGatewayTimeout, msgTimeout)
		return
	}

	if stageErr := new(fetch.StageError); errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case fetch.StageExtraction:
			resp.error(http.StatusInternalServerError, msgDownloadPrefix+stageErr.Err.Error())
		case fetch.StageFallback:
			resp.error(http.StatusInternalServerError, msgFallbackFailed)
		case fetch.StageConversion:
			resp.error(http.StatusInternalServerError, msgConversion)
		default:
			resp.error(http.StatusInternalServerError, msgProcessPrefix+err.Error())
		}
		return
	}

	logger.Error().Func(log.Flaw(err)).Msg("Unexpected download failure")
	resp.error(http.StatusInternalServerError, msgProcessPrefix+err.Error())
}
