//go:generate mockgen -destination=./mocks/archive.go . ArchiveReader

package manifest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// ArchiveReader reads single entries from a zip archive.
// *archive.Manager implements it.
type ArchiveReader interface {
	ReadFile(ctx context.Context, archivePath, name string) ([]byte, error)
}

// SourceKind tells where a manifest was read from.
type SourceKind string

// Source kinds.
const (
	SourceFile    SourceKind = "file"
	SourceDir     SourceKind = "dir"
	SourceArchive SourceKind = "archive"
)

// Pack is a loaded manifest together with where its overrides live.
type Pack struct {
	Manifest *Manifest
	Kind     SourceKind
	// Path is the archive for SourceArchive, otherwise the directory
	// containing manifest.json.
	Path string
}

// OverridesDir returns the on-disk overrides folder for file and directory
// packs. Archive packs return "".
func (p *Pack) OverridesDir() string {
	if p.Kind == SourceArchive {
		return ""
	}
	return filepath.Join(p.Path, filepath.FromSlash(p.Manifest.Overrides))
}

// Load reads a manifest from a manifest.json file, a directory containing
// one, or a modpack zip.
func Load(ctx context.Context, path string, archives ArchiveReader) (*Pack, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	if info.IsDir() {
		m, err := loadFile(filepath.Join(path, FileName))
		if err != nil {
			return nil, err
		}
		return &Pack{Manifest: m, Kind: SourceDir, Path: path}, nil
	}

	if isArchive(path) {
		data, err := archives.ReadFile(ctx, path, FileName)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s has no %s", path, FileName)
			}
			return nil, err
		}
		m, err := Parse(data)
		if err != nil {
			return nil, err
		}
		return &Pack{Manifest: m, Kind: SourceArchive, Path: path}, nil
	}

	m, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return &Pack{Manifest: m, Kind: SourceFile, Path: filepath.Dir(path)}, nil
}

func loadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return Parse(data)
}

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return true
	}
	return false
}
