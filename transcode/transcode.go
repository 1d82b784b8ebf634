package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/errutil"
	"github.com/xeptore/ytmp3d/executil"
	"github.com/xeptore/ytmp3d/must"
)

const (
	Bitrate = "128k"
	Format  = "mp3"
	Codec   = "libmp3lame"

	waitDelay = 5 * time.Second
)

var (
	// ErrEmptyOutput is returned when ffmpeg exits cleanly but writes nothing.
	ErrEmptyOutput = errors.New("conversion produced empty output")
	// ErrSource is returned when reading the source stream fails.
	ErrSource = errors.New("source stream failed")
)

type FFmpeg struct {
	bin    string
	logger zerolog.Logger
}

func NewFFmpeg(bin string, logger zerolog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, logger: logger}
}

func Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-c:a", Codec,
		"-b:a", Bitrate,
		"-f", Format,
		"pipe:1",
	}
}

// Run pipes src through ffmpeg into dst. The subprocess is killed when ctx is done.
func (f *FFmpeg) Run(ctx context.Context, src io.Reader, dst io.Writer) error {
	stderr := executil.NewStderr(f.logger)
	in := &sourceReader{r: src} //nolint:exhaustruct

	cmd := exec.CommandContext(ctx, f.bin, Args()...)
	cmd.Stdin = in
	cmd.Stdout = dst
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	stderr.Flush()
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return ctx.Err()
		case nil != in.Err():
			return fmt.Errorf("%w: %w", ErrSource, in.Err())
		default:
			flawP := errutil.CmdFlawPayload(cmd, stderr.String())
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return flaw.From(fmt.Errorf("ffmpeg failed: %v", err)).Append(flawP)
		}
	}
	if err := in.Err(); nil != err {
		return fmt.Errorf("%w: %w", ErrSource, err)
	}
	return nil
}

// ToFile runs the pipeline into a new file at path. The file is flushed and
// closed before its size is checked. Partial output is left for the caller
// to remove.
func (f *FFmpeg) ToFile(ctx context.Context, src io.Reader, path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to create output file: %v", err)).Append(flawP)
	}

	if err := f.Run(ctx, src, file); nil != err {
		_ = file.Close()
		switch {
		case errutil.IsContext(ctx), errors.Is(err, ErrSource):
			return err
		case errutil.IsFlaw(err):
			return must.BeFlaw(err).Append(flaw.P{"path": path})
		default:
			panic(errutil.UnknownError(err))
		}
	}

	if err := file.Sync(); nil != err {
		_ = file.Close()
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to sync output file: %v", err)).Append(flawP)
	}
	if err := file.Close(); nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to close output file: %v", err)).Append(flawP)
	}

	info, err := os.Stat(path)
	if nil != err {
		flawP := flaw.P{"path": path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to stat output file: %v", err)).Append(flawP)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	return nil
}

// sourceReader remembers the first non-EOF read error of the source stream.
type sourceReader struct {
	r   io.Reader
	mu  sync.Mutex
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if nil != err && !errors.Is(err, io.EOF) {
		s.mu.Lock()
		if nil == s.err {
			s.err = err
		}
		s.mu.Unlock()
	}
	return n, err
}

func (s *sourceReader) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
