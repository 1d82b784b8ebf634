package resolver

import (
	"context"
	"io"
	"net/http"

	"github.com/kkdai/youtube/v2"
)

func BestAudioFormat(formats youtube.FormatList) *youtube.Format {
	return bestAudioFormat(formats)
}

func CloseOnDone(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	return closeOnDone(ctx, rc)
}

func NewUserAgentTransport(base http.RoundTripper, ua string) http.RoundTripper {
	return &userAgentTransport{base: base, userAgent: ua}
}
