package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.nfo"), "b")
	writeFile(t, filepath.Join(root, "a.srt"), "a")
	writeFile(t, filepath.Join(root, "Season 1", "c.srt"), "c")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	s := NewStore()

	files, err := s.ListFiles(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "Season 1", "c.srt"),
		filepath.Join(root, "a.srt"),
		filepath.Join(root, "b.nfo"),
	}, files)

	files, err = s.ListFiles(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.srt"),
		filepath.Join(root, "b.nfo"),
	}, files)
}

func TestListFiles_MissingRoot(t *testing.T) {
	s := NewStore()

	_, err := s.ListFiles(filepath.Join(t.TempDir(), "missing"), true)
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.srt")
	writeFile(t, path, "a")

	s := NewStore()
	assert.True(t, s.FileExists(path))
	assert.False(t, s.FileExists(root))
	assert.True(t, s.FolderExists(root))
	assert.False(t, s.FolderExists(path))
	assert.Equal(t, root, s.GetParentFolder(path))
}

func TestFileSize(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.srt")
	writeFile(t, path, "subtitle")

	s := NewStore()

	size, err := s.FileSize(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8, size)

	_, err = s.FileSize(filepath.Join(root, "missing.srt"))
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestMoveFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.srt")
	dst := filepath.Join(root, "Season 1", "b.srt")
	writeFile(t, src, "subtitle")

	s := NewStore()
	require.NoError(t, s.MoveFile(src, dst))

	assert.False(t, s.FileExists(src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "subtitle", string(data))
}

func TestMoveFile_RefusesToOverwrite(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.srt")
	dst := filepath.Join(root, "b.srt")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	s := NewStore()
	err := s.MoveFile(src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDestinationExists))
	assert.True(t, s.FileExists(src))
}

func TestTransferFile_Modes(t *testing.T) {
	tests := []struct {
		name          string
		mode          TransferMode
		sourceRemains bool
	}{
		{"move", TransferModeMove, false},
		{"copy", TransferModeCopy, true},
		{"hardlink or copy", TransferModeHardLinkOrCopy, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			src := filepath.Join(root, "download", "a.en.srt")
			dst := filepath.Join(root, "library", "Show", "a.en.srt")
			writeFile(t, src, "1\n00:00:01,000 --> 00:00:02,000\nhi\n")

			s := NewStore()
			require.NoError(t, s.TransferFile(src, dst, tt.mode, true, true))

			assert.True(t, s.FileExists(dst))
			assert.Equal(t, tt.sourceRemains, s.FileExists(src))
		})
	}
}

func TestTransferFile_Overwrite(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.nfo")
	dst := filepath.Join(root, "b.nfo")
	writeFile(t, src, "new contents")
	writeFile(t, dst, "old")

	s := NewStore()
	require.NoError(t, s.TransferFile(src, dst, TransferModeCopy, true, true))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new contents", string(data))
}

func TestTransferFile_SamePath(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.nfo")
	writeFile(t, src, "a")

	s := NewStore()
	assert.Error(t, s.TransferFile(src, src, TransferModeMove, true, false))
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.nfo")
	writeFile(t, path, "a")

	s := NewStore()
	require.NoError(t, s.DeleteFile(path))
	assert.False(t, s.FileExists(path))
	assert.NoError(t, s.DeleteFile(path))
}
