package catalog_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/labstack/gommon/random"
	"github.com/localflix/localflix/internal/catalog"
	"github.com/localflix/localflix/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

// writeLibraryFile creates a file (and any missing parent directories)
// below the library root, filled with random content of the given size.
func writeLibraryFile(t *testing.T, root string, relPath string, size int) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.Nil(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.Nil(t, os.WriteFile(path, []byte(random.String(uint8(size))), 0o644))
	return path
}

func entryRelPaths(entries []catalog.MediaEntry) []string {
	relPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		relPaths = append(relPaths, entry.RelPath)
	}

	return relPaths
}

func Test_Scan_FindsPlayableFiles(t *testing.T) {
	root := t.TempDir()
	writeLibraryFile(t, root, "movie one.mp4", 100)
	writeLibraryFile(t, root, "show.mkv", 200)
	writeLibraryFile(t, root, "nested/deeper/episode.mkv", 50)
	writeLibraryFile(t, root, "UPPER.MP4", 25)

	entries, err := catalog.Scan(root)
	require.Nil(t, err)

	assert.ElementsMatch(t,
		[]string{"movie one.mp4", "show.mkv", "nested/deeper/episode.mkv", "UPPER.MP4"},
		entryRelPaths(entries))

	for _, entry := range entries {
		assert.Equal(t, catalog.KeyForRelPath(entry.RelPath), entry.Key)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(entry.RelPath)), entry.AbsPath)
		assert.NotZero(t, entry.Size)

		if entry.RelPath == "movie one.mp4" {
			assert.Equal(t, "movie one", entry.Name)
			assert.Equal(t, catalog.MP4, entry.Kind)
			assert.EqualValues(t, 100, entry.Size)
		}
	}
}

func Test_Scan_SkipsUnplayableFiles(t *testing.T) {
	root := t.TempDir()
	writeLibraryFile(t, root, "keep.mp4", 100)
	writeLibraryFile(t, root, "notes.txt", 100)
	writeLibraryFile(t, root, "trailer.avi", 100)
	writeLibraryFile(t, root, ".hidden.mp4", 100)
	writeLibraryFile(t, root, ".hiddendir/inner.mp4", 100)
	require.Nil(t, os.WriteFile(filepath.Join(root, "empty.mp4"), []byte{}, 0o644))

	entries, err := catalog.Scan(root)
	require.Nil(t, err)
	assert.Equal(t, []string{"keep.mp4"}, entryRelPaths(entries))
}

func Test_Scan_FollowsSymlinksOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevated privileges on Windows")
	}

	root := t.TempDir()
	writeLibraryFile(t, root, "nested/episode.mkv", 100)

	// A second route into the nested directory, plus a cycle back up to
	// the root. The walk must terminate and index the episode once.
	require.Nil(t, os.Symlink(filepath.Join(root, "nested"), filepath.Join(root, "alias")))
	require.Nil(t, os.Symlink(root, filepath.Join(root, "nested", "loop")))

	entries, err := catalog.Scan(root)
	require.Nil(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "episode", entries[0].Name)
	assert.Equal(t, catalog.MKV, entries[0].Kind)
}

func Test_Scan_UnwalkableRoot(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		entries, err := catalog.Scan(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
		assert.Nil(t, entries)
	})

	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		path := writeLibraryFile(t, root, "file.mp4", 10)

		entries, err := catalog.Scan(path)
		assert.Error(t, err)
		assert.Nil(t, entries)
	})
}
