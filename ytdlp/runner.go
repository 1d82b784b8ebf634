package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"
	"gopkg.in/matryer/try.v1"

	"github.com/xeptore/ytmp3d/errutil"
	"github.com/xeptore/ytmp3d/executil"
	"github.com/xeptore/ytmp3d/media"
	"github.com/xeptore/ytmp3d/must"
)

const waitDelay = 5 * time.Second

var (
	// ErrNotFound is returned when neither the binary nor the shim could be started.
	ErrNotFound = errors.New("yt-dlp executable not found")
	// ErrNoTitle is returned when the metadata dump carries no title.
	ErrNoTitle = errors.New("yt-dlp metadata has no title")
)

// DefaultShim runs yt-dlp through the npm package runner.
var DefaultShim = []string{"npx", "yt-dlp"}

type ExitError struct {
	Code int
	Args []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("yt-dlp exited with code %d", e.Code)
}

type Runner struct {
	bin        string
	shim       []string
	ffmpegPath string
	logger     zerolog.Logger
}

// New returns a runner invoking bin, falling back once to shim if bin cannot
// be found. An empty shim disables the fallback. ffmpegPath is forwarded to
// yt-dlp only when it names a file rather than a command looked up in PATH.
func New(bin string, shim []string, ffmpegPath string, logger zerolog.Logger) *Runner {
	if bin == "" {
		bin = "yt-dlp"
	}
	if filepath.Base(ffmpegPath) == ffmpegPath {
		ffmpegPath = ""
	}
	return &Runner{
		bin:        bin,
		shim:       shim,
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// Title returns the title of a single video without downloading it.
func (r *Runner) Title(ctx context.Context, url string) (string, error) {
	var stdout bytes.Buffer
	if err := r.run(ctx, &stdout, url, "--dump-json", "--no-playlist", "--no-warnings"); nil != err {
		return "", err
	}

	out := stdout.Bytes()
	if i := bytes.IndexByte(out, '{'); i >= 0 {
		out = out[i:]
	}
	title := gjson.GetBytes(out, "title").String()
	if strings.TrimSpace(title) == "" {
		return "", ErrNoTitle
	}
	return title, nil
}

// ExtractAudio downloads url and converts it to a 128 kbps MP3 written to
// outTemplate with %(ext)s replaced by mp3.
func (r *Runner) ExtractAudio(ctx context.Context, url, outTemplate string) error {
	args := []string{
		"-o", outTemplate,
		"--no-playlist",
		"--no-warnings",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
	}
	if r.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", r.ffmpegPath)
	}
	args = append(args, url)
	if err := r.run(ctx, io.Discard, args...); nil != err {
		return annotate(ctx, err, flaw.P{"url": url, "output_template": outTemplate})
	}
	return nil
}

// Playlist lists the members of a playlist without resolving each of them.
func (r *Runner) Playlist(ctx context.Context, url string) ([]media.Entry, error) {
	baseArgs := []string{"--flat-playlist", "--no-warnings", "--skip-download"}

	var stdout bytes.Buffer
	if err := r.run(ctx, &stdout, append([]string{url, "--dump-single-json"}, baseArgs...)...); nil != err {
		return nil, annotate(ctx, err, flaw.P{"url": url, "dump": "single"})
	}
	entries, err := ParsePlaylist(stdout.Bytes())
	if nil == err {
		return entries, nil
	}
	r.logger.Debug().Err(err).Msg("Single JSON playlist dump could not be parsed. Retrying with per-entry dump")

	stdout.Reset()
	if err := r.run(ctx, &stdout, append([]string{url, "--dump-json"}, baseArgs...)...); nil != err {
		return nil, annotate(ctx, err, flaw.P{"url": url, "dump": "per_entry"})
	}
	entries, err = ParsePlaylist(stdout.Bytes())
	if nil != err {
		flawP := flaw.P{"url": url, "output_size": stdout.Len()}
		return nil, flaw.From(fmt.Errorf("failed to parse playlist: %v", err)).Append(flawP)
	}
	return entries, nil
}

// run performs at most two attempts: the binary itself, then the shim when
// the binary is missing.
func (r *Runner) run(ctx context.Context, stdout io.Writer, args ...string) error {
	err := try.Do(func(attempt int) (retry bool, err error) {
		name, cmdArgs := r.bin, args
		if attempt > 1 {
			name, cmdArgs = r.shim[0], append(append([]string{}, r.shim[1:]...), args...)
			r.logger.Warn().Str("bin", r.bin).Strs("shim", r.shim).Msg("yt-dlp binary not found. Retrying through shim")
		}

		err = r.exec(ctx, stdout, name, cmdArgs)
		if nil != err && errors.Is(err, ErrNotFound) {
			return attempt == 1 && len(r.shim) > 0, err
		}
		return false, err
	})
	if nil != err {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	_, ok := errutil.IsAny(err, exec.ErrNotFound, fs.ErrNotExist)
	return ok
}

// annotate attaches flawP to unexpected failures. Classified errors are
// returned untouched.
func annotate(ctx context.Context, err error, flawP flaw.P) error {
	switch exitErr := new(ExitError); {
	case errutil.IsContext(ctx), errors.Is(err, ErrNotFound), errors.As(err, &exitErr):
		return err
	case errutil.IsFlaw(err):
		return must.BeFlaw(err).Append(flawP)
	default:
		panic(errutil.UnknownError(err))
	}
}

func (r *Runner) exec(ctx context.Context, stdout io.Writer, name string, args []string) error {
	stderr := executil.NewStderr(r.logger.With().Str("bin", name).Logger())
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); nil != err {
		switch {
		case errutil.IsContext(ctx):
			return ctx.Err()
		case isNotFound(err):
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		default:
			flawP := errutil.CmdFlawPayload(cmd, "")
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return flaw.From(fmt.Errorf("failed to start yt-dlp: %v", err)).Append(flawP)
		}
	}

	err := cmd.Wait()
	stderr.Flush()
	if nil != err {
		if errutil.IsContext(ctx) {
			return ctx.Err()
		}
		if exitErr := new(exec.ExitError); errors.As(err, &exitErr) {
			r.logger.Debug().Int("exit_code", exitErr.ExitCode()).Str("stderr", stderr.String()).Msg("yt-dlp exited with failure")
			return &ExitError{Code: exitErr.ExitCode(), Args: args}
		}
		flawP := errutil.CmdFlawPayload(cmd, stderr.String())
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("yt-dlp failed: %v", err)).Append(flawP)
	}
	return nil
}
