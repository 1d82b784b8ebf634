package executil_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/xeptore/ytmp3d/executil"
)

func TestStderrLogsLines(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := executil.NewStderr(zerolog.New(&out).Level(zerolog.DebugLevel))
	_, _ = s.Write([]byte("first li"))
	_, _ = s.Write([]byte("ne\r\nsecond line\n\npart"))
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
	s.Flush()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"line":"first line"`)
	assert.Contains(t, lines[1], `"line":"second line"`)
	assert.Contains(t, lines[2], `"line":"part"`)
}

func TestStderrTail(t *testing.T) {
	t.Parallel()

	s := executil.NewStderr(zerolog.Nop())
	_, _ = s.Write([]byte(strings.Repeat("a", 5000)))
	_, _ = s.Write([]byte("END"))
	tail := s.String()
	assert.Len(t, tail, 4<<10)
	assert.True(t, strings.HasSuffix(tail, "aEND"))
}
