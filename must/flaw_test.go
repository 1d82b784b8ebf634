package must_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/must"
)

func TestBeFlaw(t *testing.T) {
	t.Parallel()

	t.Run("WrappedFlaw", func(t *testing.T) {
		t.Parallel()
		f := flaw.From(errors.New("transcoder crashed"))
		err := fmt.Errorf("fetch: %w", f)
		assert.Same(t, f, must.BeFlaw(err))
	})

	t.Run("PlainError", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { must.BeFlaw(errors.New("plain")) })
	})
}

func TestNotEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ffmpeg", must.NotEmpty("ffmpeg path", "ffmpeg"))
	assert.PanicsWithValue(t, "ffmpeg path must not be empty", func() { must.NotEmpty("ffmpeg path", "") })
}
