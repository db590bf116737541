package fileutils

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

type TransferMode int

const (
	TransferModeMove TransferMode = iota
	TransferModeCopy
	TransferModeHardLinkOrCopy
)

func (m TransferMode) String() string {
	switch m {
	case TransferModeCopy:
		return "copy"
	case TransferModeHardLinkOrCopy:
		return "hardlink_or_copy"
	}
	return "move"
}

// ErrDestinationExists is returned when a move or transfer would replace an
// existing file without being allowed to.
var ErrDestinationExists = errors.New("destination file already exists")

// Store implements the file primitives used to reconcile extra files. All
// paths are absolute. Calls are synchronous and may block on slow disks.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// ListFiles returns every regular file below root in lexical order. When
// recursive is false only the files directly inside root are returned.
// Subdirectories that can't be read are skipped.
func (s *Store) ListFiles(root string, recursive bool) ([]string, error) {
	files := make([]string, 0)

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				files = append(files, filepath.Join(root, entry.Name()))
			}
		}
		return files, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sort.Strings(files)
	return files, nil
}

func (s *Store) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return info.Size(), nil
}

func (s *Store) FolderExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *Store) GetParentFolder(path string) string {
	return filepath.Dir(filepath.Clean(path))
}

func (s *Store) DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// MoveFile moves src to dst, creating the destination folder when needed.
// It refuses to replace an existing file.
func (s *Store) MoveFile(src, dst string) error {
	return s.TransferFile(src, dst, TransferModeMove, false, false)
}

// TransferFile moves, copies or hard-links src to dst. HardLinkOrCopy falls
// back to a copy when a link can't be created, e.g. across filesystems.
// With verify the size of dst is checked against the size of src.
func (s *Store) TransferFile(src, dst string, mode TransferMode, overwrite, verify bool) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)
	if src == dst {
		return errors.Errorf("source and destination are the same: %s", src)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.WithStack(err)
	}

	if dstInfo, err := os.Lstat(dst); err == nil {
		// A case-only rename on a case-insensitive filesystem stats as the
		// same file; os.Rename handles that on its own.
		sameFile := mode == TransferModeMove && os.SameFile(srcInfo, dstInfo)
		if !overwrite && !sameFile {
			return errors.Wrap(ErrDestinationExists, dst)
		}
		if overwrite && !sameFile {
			if err := os.Remove(dst); err != nil {
				return errors.WithStack(err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}

	switch mode {
	case TransferModeMove:
		err = moveFile(src, dst)
	case TransferModeCopy:
		err = copyFile(src, dst)
	case TransferModeHardLinkOrCopy:
		err = os.Link(src, dst)
		if err != nil {
			err = copyFile(src, dst)
		}
	default:
		err = errors.Errorf("unknown transfer mode %d", mode)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	if verify {
		dstInfo, err := os.Stat(dst)
		if err != nil {
			return errors.WithStack(err)
		}
		if dstInfo.Size() != srcInfo.Size() {
			return errors.Errorf("transfer of %s incomplete: expected %d bytes, got %d", src, srcInfo.Size(), dstInfo.Size())
		}
	}

	return nil
}

func moveFile(src, dst string) error {
	// Try a simple rename first (fastest, works if src and dst are on same filesystem)
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	err = copyFile(src, dst)
	if err != nil {
		return errors.WithStack(err)
	}

	// Remove the source file only after successful copy
	err = os.Remove(src)
	if err != nil {
		os.Remove(dst)
		return errors.WithStack(err)
	}

	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		destFile.Close()
		os.Remove(dst)
		return errors.WithStack(err)
	}

	return errors.WithStack(destFile.Close())
}
