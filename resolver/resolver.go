package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/errutil"
)

// DefaultUserAgent is sent on every metadata and stream request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrIncompatible marks failures caused by the source site changing its
// signing or obfuscation scheme. Callers should switch to the fallback extractor.
var ErrIncompatible = errors.New("primary extractor is incompatible with the source")

var incompatibilityMarkers = []string{
	"could not extract functions",
	"unable to extract",
	"this video is unavailable",
	"cipher not found",
	"signature timestamp not found",
}

// Video is a resolved item. Stream must be closed by the caller; it is also
// closed once the context passed to Resolve is done.
type Video struct {
	ID     string
	Title  string
	Stream io.ReadCloser
	Size   int64
}

type YouTube struct {
	client *youtube.Client
	logger zerolog.Logger
}

func NewYouTube(userAgent string, logger zerolog.Logger) *YouTube {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient := &http.Client{ //nolint:exhaustruct
		Transport: &userAgentTransport{
			base:      http.DefaultTransport,
			userAgent: userAgent,
		},
		// Stream bodies are long-lived; the request context bounds them instead.
		Timeout: 0,
	}
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient}, //nolint:exhaustruct
		logger: logger,
	}
}

func (y *YouTube) Resolve(ctx context.Context, url string) (*Video, error) {
	video, err := y.client.GetVideoContext(ctx, url)
	if nil != err {
		return nil, classify(ctx, "get video info", url, err)
	}

	format := bestAudioFormat(video.Formats)
	if nil == format {
		flawP := flaw.P{"url": url, "video_id": video.ID, "formats_count": len(video.Formats)}
		return nil, flaw.From(errors.New("no audio-only formats available")).Append(flawP)
	}
	y.logger.Debug().
		Str("video_id", video.ID).
		Str("mime_type", format.MimeType).
		Int("bitrate", format.Bitrate).
		Msg("Selected audio format")

	stream, size, err := y.client.GetStreamContext(ctx, video, format)
	if nil != err {
		return nil, classify(ctx, "get audio stream", url, err)
	}

	return &Video{
		ID:     video.ID,
		Title:  video.Title,
		Stream: closeOnDone(ctx, stream),
		Size:   size,
	}, nil
}

func classify(ctx context.Context, op, url string, err error) error {
	if errutil.IsContext(ctx) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if IsIncompatibility(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrIncompatible, err)
	}
	flawP := flaw.P{"url": url, "err_debug_tree": errutil.Tree(err).FlawP()}
	return flaw.From(fmt.Errorf("failed to %s: %v", op, err)).Append(flawP)
}

// IsIncompatibility reports whether err carries one of the known
// extraction-incompatibility messages.
func IsIncompatibility(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range incompatibilityMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// bestAudioFormat picks the audio-only format with the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !isAudioOnly(f) {
			continue
		}
		if nil == best || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func isAudioOnly(f *youtube.Format) bool {
	if f.Width != 0 || f.Height != 0 {
		return false
	}
	return strings.HasPrefix(f.MimeType, "audio/") || f.AudioChannels > 0
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

type ctxStream struct {
	io.ReadCloser
	stop func() bool
	once sync.Once
	err  error
}

func closeOnDone(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	s := &ctxStream{ReadCloser: rc} //nolint:exhaustruct
	s.stop = context.AfterFunc(ctx, s.closeOnce)
	return s
}

func (s *ctxStream) Close() error {
	s.stop()
	s.closeOnce()
	return s.err
}

func (s *ctxStream) closeOnce() {
	s.once.Do(func() {
		s.err = s.ReadCloser.Close()
	})
}
