package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

const archiveCompressionLevel = 5

var errResponseUnavailable = errors.New("response can no longer be written")

// archive is a ZIP written straight to the response. Entries are appended in
// the order they are added; concurrent adds are serialized.
type archive struct {
	mu    sync.Mutex
	zw    *zip.Writer
	out   *lazyResponse
	names map[string]struct{}
}

func newArchive(resp *responder) *archive {
	out := &lazyResponse{resp: resp, committed: false, expired: false}
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, archiveCompressionLevel)
	})
	return &archive{
		mu:    sync.Mutex{},
		zw:    zw,
		out:   out,
		names: make(map[string]struct{}),
	}
}

// Add copies src into a new entry. A name already in the archive gets a
// " (n)" suffix before its extension.
func (a *archive) Add(name string, src io.Reader) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name = a.uniqueName(name)
	//nolint:exhaustruct
	fw, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if nil != err {
		return "", fmt.Errorf("failed to create archive entry: %w", err)
	}
	if _, err := io.Copy(fw, src); nil != err {
		return "", fmt.Errorf("failed to write archive entry: %w", err)
	}
	if err := a.zw.Flush(); nil != err {
		return "", fmt.Errorf("failed to flush archive: %w", err)
	}
	a.out.flush()
	return name, nil
}

// Close writes the central directory.
func (a *archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.zw.Close(); nil != err {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	a.out.flush()
	return nil
}

// Committed reports whether any archive byte reached the response.
func (a *archive) Committed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.committed
}

// expire stops the archive from ever committing. It reports false when bytes
// were already sent, in which case the archive must still be closed.
func (a *archive) expire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out.committed {
		return false
	}
	a.out.expired = true
	return true
}

func (a *archive) uniqueName(name string) string {
	if _, taken := a.names[name]; !taken {
		a.names[name] = struct{}{}
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, taken := a.names[candidate]; !taken {
			a.names[candidate] = struct{}{}
			return candidate
		}
	}
}

// lazyResponse commits the ZIP response headers on the first write.
type lazyResponse struct {
	resp      *responder
	committed bool
	expired   bool
}

func (l *lazyResponse) Write(p []byte) (int, error) {
	if l.expired {
		return 0, errResponseUnavailable
	}
	if !l.committed {
		ok := l.resp.begin(func(h http.Header) {
			h.Set("Content-Type", "application/zip")
			h.Set("Content-Disposition", `attachment; filename="playlist.zip"`)
			h.Set("Cache-Control", "no-cache")
		})
		if !ok {
			return 0, errResponseUnavailable
		}
		l.committed = true
	}
	return l.resp.w.Write(p)
}

func (l *lazyResponse) flush() {
	if l.committed {
		_ = http.NewResponseController(l.resp.w).Flush()
	}
}
