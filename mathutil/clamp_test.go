package mathutil_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/ytmp3d/mathutil"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, mathutil.Clamp(-4, 0, 64))
	assert.Equal(t, 64, mathutil.Clamp(100, 0, 64))
	assert.Equal(t, 12, mathutil.Clamp(12, 0, 64))
	assert.Equal(t, time.Second, mathutil.Clamp(time.Millisecond, time.Second, time.Hour))
	assert.InDelta(t, 0.5, mathutil.Clamp(0.5, 0.0, 1.0), 0)
}
