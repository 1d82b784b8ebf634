package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// responder guarantees at most one response per request and none after
// the client went away. Every status or body write goes through it.
type responder struct {
	mu        sync.Mutex
	w         http.ResponseWriter
	clientCtx context.Context //nolint:containedctx
	responded bool
	logger    *zerolog.Logger
}

func newResponder(w http.ResponseWriter, clientCtx context.Context, logger *zerolog.Logger) *responder {
	return &responder{
		mu:        sync.Mutex{},
		w:         w,
		clientCtx: clientCtx,
		responded: false,
		logger:    logger,
	}
}

// disconnected reports whether the client's request context is done.
func (r *responder) disconnected() bool {
	return nil != r.clientCtx.Err()
}

// error sends a JSON error body. It reports whether the response was written.
func (r *responder) error(status int, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.responded || r.disconnected() {
		r.logger.Debug().Int("status", status).Str("message", msg).Msg("Suppressed error response")
		return false
	}
	r.responded = true
	writeError(r.w, r.logger, status, msg)
	return true
}

// begin commits a success status with the headers set by setHeaders. The body
// may be written to r.w afterwards. It reports whether the caller may proceed.
func (r *responder) begin(setHeaders func(h http.Header)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.responded || r.disconnected() {
		return false
	}
	r.responded = true
	setHeaders(r.w.Header())
	r.w.WriteHeader(http.StatusOK)
	return true
}
