package tmpfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/errutil"
	"github.com/xeptore/ytmp3d/must"
)

// File is a temporary file path owned by a single job. Nothing is created on
// disk by New; the owner writes to Path and calls Remove exactly when done.
type File struct {
	Path string
	stem string

	once      sync.Once
	removeErr error
}

// New returns a unique path under dir, or the OS temp dir when dir is empty,
// named <prefix>-<uuid>-<unix-millis><ext>. prefix must not be empty.
func New(dir, prefix, ext string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	name := must.NotEmpty("temp file prefix", prefix) + "-" + uuid.NewString() + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	stem := filepath.Join(dir, name)
	return &File{
		Path: stem + ext,
		stem: stem,
	}
}

// WithExt returns the stem joined with ext.
func (f *File) WithExt(ext string) string {
	return f.stem + ext
}

func (f *File) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if nil != err {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the file and any sibling sharing its stem. Only the first
// call touches the filesystem; later calls return the first result.
func (f *File) Remove() error {
	f.once.Do(func() {
		f.removeErr = f.remove()
	})
	return f.removeErr
}

func (f *File) remove() error {
	var errs []error
	if err := os.Remove(f.Path); nil != err && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	matches, err := filepath.Glob(globEscape(f.stem) + ".*")
	if nil != err {
		errs = append(errs, err)
	}
	for _, m := range matches {
		if err := os.Remove(m); nil != err && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		flawP := flaw.P{"path": f.Path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to remove temp file: %v", err)).Append(flawP)
	}
	return nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
