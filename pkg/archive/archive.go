// Package archive reads modpack zips and installer jars and writes the final
// server bundle zip.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
	"github.com/mholt/archives"
)

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// open returns a read-only view of archivePath. The caller must call close.
func open(ctx context.Context, archivePath string) (fs.FS, func(), error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive file %s: %w", archivePath, err)
	}
	closeFn := func() {
		if closer, ok := fsys.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return fsys, closeFn, nil
}

// ReadFile returns the contents of a single entry. name is slash separated and
// relative to the archive root. A missing entry yields an error matching
// fs.ErrNotExist.
func (am *Manager) ReadFile(ctx context.Context, archivePath, name string) ([]byte, error) {
	fsys, closeFn, err := open(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", name, archivePath, err)
	}
	return data, nil
}

// Has reports whether the archive contains the entry name.
func (am *Manager) Has(ctx context.Context, archivePath, name string) (bool, error) {
	fsys, closeFn, err := open(ctx, archivePath)
	if err != nil {
		return false, err
	}
	defer closeFn()

	_, err = fs.Stat(fsys, path.Clean(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// ExtractDir extracts every file below prefix into destDir with prefix
// stripped, merging with existing content. An empty prefix extracts the whole
// archive; a prefix that does not exist extracts nothing. It returns the number
// of files written. Symlinks are skipped.
func (am *Manager) ExtractDir(ctx context.Context, archivePath, prefix, destDir string) (int, error) {
	fsys, closeFn, err := open(ctx, archivePath)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	root := "."
	if p := strings.Trim(path.Clean("/"+prefix), "/"); p != "" {
		root = p
	}
	if _, err := fs.Stat(fsys, root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat %s in %s: %w", root, archivePath, err)
	}

	if err := fsutil.EnsureDir(destDir); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	count := 0
	err = fs.WalkDir(fsys, root, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry == root {
			return nil
		}

		rel := entry
		if root != "." {
			rel = strings.TrimPrefix(entry, root+"/")
		}
		target, err := fsutil.SafeJoin(destDir, rel)
		if err != nil {
			return errors.Wrapf(errors.ErrArchiveTraversal, "%s", entry)
		}

		if d.IsDir() {
			return fsutil.EnsureDir(target)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", entry, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := writeRegularFile(fsys, entry, target, info); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// Create writes the contents of sourceDir into a zip archive at archivePath.
// Entries are stored relative to sourceDir.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}

	format := archives.Zip{}
	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		_ = file.Close()
		_ = os.Remove(archivePath)
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	return file.Close()
}

// writeRegularFile copies one archive entry to targetPath preserving its mode
// and modification time.
func writeRegularFile(fsys fs.FS, entry, targetPath string, info fs.FileInfo) error {
	srcFile, err := fsys.Open(entry)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", entry, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", entry, err)
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dstFile, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy file %s: %w", entry, err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", targetPath, err)
	}

	if err := os.Chtimes(targetPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time for %s: %w", targetPath, err)
	}
	return nil
}
