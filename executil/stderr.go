package executil

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

const defaultTailBytes = 4 << 10

// Stderr collects a subprocess' stderr for diagnostics. Every complete line
// is logged at debug level and the last few KiB are kept for error payloads.
type Stderr struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	partial []byte
	tail    []byte
	limit   int
}

func NewStderr(logger zerolog.Logger) *Stderr {
	return &Stderr{
		mu:      sync.Mutex{},
		logger:  logger,
		partial: nil,
		tail:    nil,
		limit:   defaultTailBytes,
	}
}

func (s *Stderr) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tail = append(s.tail, p...)
	if over := len(s.tail) - s.limit; over > 0 {
		s.tail = s.tail[over:]
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.logLine(s.partial[:i])
		s.partial = s.partial[i+1:]
	}
	return len(p), nil
}

// Flush logs a trailing line not terminated by a newline.
func (s *Stderr) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partial) > 0 {
		s.logLine(s.partial)
		s.partial = nil
	}
}

func (s *Stderr) logLine(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	s.logger.Debug().Bytes("line", line).Msg("stderr")
}

// String returns the retained tail.
func (s *Stderr) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.tail)
}
