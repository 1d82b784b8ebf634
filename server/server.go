package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/ytmp3d/ctxutil"
	"github.com/xeptore/ytmp3d/fetch"
	"github.com/xeptore/ytmp3d/httputil"
	"github.com/xeptore/ytmp3d/media"
)

const (
	msgInvalidURL      = "URL inválida do YouTube."
	msgNotYouTube      = "URL deve ser do YouTube."
	msgEmptyPlaylist   = "Playlist vazia ou indisponível."
	msgDownloadPrefix  = "Erro ao baixar: "
	msgFallbackFailed  = "Erro ao baixar"
	msgConversion      = "Erro ao converter para MP3"
	msgPlaylistPrefix  = "Erro ao processar playlist: "
	msgArchive         = "Erro ao criar ZIP"
	msgProcessPrefix   = "Erro ao processar: "
	msgTimeout         = "Tempo excedido ao processar o download."
	defaultSingleLimit = 2 * time.Minute
	defaultListLimit   = 5 * time.Minute
)

// errDeadline is the cancellation cause of a request-scoped deadline. It
// separates a timeout from a client disconnect.
var errDeadline = errors.New("request deadline exceeded")

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Track, error)
}

type Lister interface {
	Playlist(ctx context.Context, url string) ([]media.Entry, error)
}

type Options struct {
	SingleTimeout   time.Duration
	PlaylistTimeout time.Duration
}

type Server struct {
	fetcher Fetcher
	lister  Lister
	opts    Options
	logger  zerolog.Logger
}

func New(f Fetcher, l Lister, opts Options, logger zerolog.Logger) *Server {
	if opts.SingleTimeout <= 0 {
		opts.SingleTimeout = defaultSingleLimit
	}
	if opts.PlaylistTimeout <= 0 {
		opts.PlaylistTimeout = defaultListLimit
	}
	return &Server{
		fetcher: f,
		lister:  l,
		opts:    opts,
		logger:  logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /download", s.download)
	return s.withRequestLog(s.withRecover(withCORS(mux)))
}

type downloadRequest struct {
	URL string `json:"url"`
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var body downloadRequest
	if err := httputil.DecodeJSON(r.Body, &body); nil != err {
		logger.Debug().Err(err).Msg("Failed to decode request body")
		writeError(w, logger, http.StatusBadRequest, msgInvalidURL)
		return
	}

	req, err := media.Classify(body.URL)
	if nil != err {
		logger.Info().Err(err).Str("url", body.URL).Msg("Rejected URL")
		switch {
		case errors.Is(err, media.ErrNotYouTube):
			writeError(w, logger, http.StatusBadRequest, msgNotYouTube)
		default:
			writeError(w, logger, http.StatusBadRequest, msgInvalidURL)
		}
		return
	}

	l := logger.With().Str("url", req.URL).Bool("playlist", req.IsPlaylist).Logger()
	if req.IsPlaylist {
		s.playlist(w, r, req, &l)
		return
	}
	s.single(w, r, req, &l)
}

func writeError(w http.ResponseWriter, logger *zerolog.Logger, status int, msg string) {
	if err := httputil.WriteJSON(w, status, httputil.ErrorBody{Error: msg}); nil != err {
		logger.Warn().Err(err).Msg("Failed to write error response")
	}
}

// isDeadline reports whether ctx ended because its request deadline fired.
func isDeadline(ctx context.Context) bool {
	return nil != ctx.Err() && errors.Is(ctxutil.Cause(ctx), errDeadline)
}
