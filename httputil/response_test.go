package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ytmp3d/httputil"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, httputil.WriteJSON(rec, http.StatusBadRequest, httputil.ErrorBody{Error: "URL deve ser do YouTube."}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"URL deve ser do YouTube."}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var body struct {
		URL string `json:"url"`
	}
	require.NoError(t, httputil.DecodeJSON(strings.NewReader(`{"url":"https://youtu.be/abc"}`), &body))
	assert.Equal(t, "https://youtu.be/abc", body.URL)

	require.Error(t, httputil.DecodeJSON(strings.NewReader(`{"url":`), &body))
}

func TestContentDisposition(t *testing.T) {
	t.Parallel()

	t.Run("ASCII", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, `attachment; filename="song.mp3"; filename*=UTF-8''song.mp3`, httputil.ContentDisposition("song.mp3"))
	})

	t.Run("NonASCII", func(t *testing.T) {
		t.Parallel()
		got := httputil.ContentDisposition("canção.mp3")
		assert.Equal(t, `attachment; filename="canção.mp3"; filename*=UTF-8''can%C3%A7%C3%A3o.mp3`, got)
	})

	t.Run("Quotes", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, httputil.ContentDisposition(`a"b\c.mp3`), `filename="a\"b\\c.mp3"`)
	})

	t.Run("ControlChars", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, httputil.ContentDisposition("a\tb.mp3"), `filename="a_b.mp3"`)
	})
}

func TestNoCache(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	httputil.NoCache(h)
	assert.Equal(t, "no-cache, no-store, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}
