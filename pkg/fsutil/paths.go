package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// AppName is the name of the application used in paths.
const AppName = "mcbundle"

// GetConfigDir returns the platform-specific config directory for mcbundle.
// XDG_CONFIG_HOME is honoured on every platform.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// SafeJoin joins a slash-separated relative path onto root and rejects
// results that would land outside root. Download sinks, archive entries and
// manifest overrides all pass through here.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.Wrap(errors.ErrInvalidPath, "empty path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", errors.Wrapf(errors.ErrInvalidPath, "absolute path %q", rel)
	}
	if filepath.VolumeName(rel) != "" {
		return "", errors.Wrapf(errors.ErrInvalidPath, "path %q has a volume name", rel)
	}

	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	if joined == cleanRoot {
		return "", errors.Wrapf(errors.ErrInvalidPath, "path %q resolves to the root", rel)
	}
	if !strings.HasPrefix(joined, cleanRoot+string(os.PathSeparator)) {
		return "", errors.Wrapf(errors.ErrInvalidPath, "path %q escapes %s", rel, root)
	}
	return joined, nil
}
