package tmpfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/ytmp3d/tmpfile"
)

func TestNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := tmpfile.New(dir, "ytmp3d", ".mp3")
	assert.Equal(t, dir, filepath.Dir(f.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(f.Path), "ytmp3d-"))
	assert.True(t, strings.HasSuffix(f.Path, ".mp3"))
	assert.Equal(t, f.Path, f.WithExt(".mp3"))
	assert.Equal(t, strings.TrimSuffix(f.Path, ".mp3")+".webm", f.WithExt(".webm"))

	_, err := os.Stat(f.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewUnique(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu    sync.Mutex
		paths = make(map[string]struct{})
		wg    sync.WaitGroup
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := tmpfile.New(dir, "ytmp3d", ".mp3").Path
			mu.Lock()
			paths[p] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, paths, 100)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := tmpfile.New(dir, "ytmp3d", ".mp3")
	require.NoError(t, os.WriteFile(f.Path, []byte("mp3"), 0o600))
	require.NoError(t, os.WriteFile(f.WithExt(".webm.part"), []byte("part"), 0o600))
	require.NoError(t, os.WriteFile(f.WithExt(".m4a"), []byte("m4a"), 0o600))
	other := tmpfile.New(dir, "ytmp3d", ".mp3")
	require.NoError(t, os.WriteFile(other.Path, []byte("other"), 0o600))

	size, err := f.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)

	require.NoError(t, f.Remove())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(other.Path), entries[0].Name())
}

func TestRemoveOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := tmpfile.New(dir, "ytmp3d", ".mp3")
	require.NoError(t, os.WriteFile(f.Path, []byte("mp3"), 0o600))
	require.NoError(t, f.Remove())

	// A file recreated after the first removal is left alone.
	require.NoError(t, os.WriteFile(f.Path, []byte("again"), 0o600))
	require.NoError(t, f.Remove())
	_, err := os.Stat(f.Path)
	assert.NoError(t, err)
}

func TestRemoveMissing(t *testing.T) {
	t.Parallel()
	f := tmpfile.New(t.TempDir(), "ytmp3d", ".mp3")
	assert.NoError(t, f.Remove())
}

func TestNewEmptyPrefix(t *testing.T) {
	t.Parallel()
	assert.PanicsWithValue(t, "temp file prefix must not be empty", func() { tmpfile.New(t.TempDir(), "", ".mp3") })
}
