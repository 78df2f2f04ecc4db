package hooks

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// FileExtension is the extension of hook scripts.
const FileExtension = ".tengo"

// LoadFiles reads each script in paths and registers it for phase.
func LoadFiles(manager *Manager, phase Phase, paths []string) error {
	for _, path := range paths {
		if filepath.Ext(path) != FileExtension {
			return errors.Wrapf(errors.ErrHookLoad, "%s: hook scripts must end in %s", path, FileExtension)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "%s: %v", path, err)
		}
		if err := manager.Add(Hook{Phase: phase, Name: path, Content: string(content)}); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromDir registers <dir>/<phase>.tengo for every phase that has one.
// A missing dir is not an error.
func LoadFromDir(manager *Manager, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(errors.ErrHookLoad, "failed to read hook directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExtension {
			continue
		}
		phase := Phase(strings.TrimSuffix(entry.Name(), FileExtension))
		if !phase.Valid() {
			continue
		}
		if err := LoadFiles(manager, phase, []string{filepath.Join(dir, entry.Name())}); err != nil {
			return err
		}
	}
	return nil
}

// Template returns a starter script for phase.
func Template(phase Phase) string {
	switch phase {
	case PostDownload:
		return `// post-download hook
// Runs after every file is downloaded and verified, before overrides are merged.
// Available variables:
// - bundleDir: string - directory the server bundle is assembled in
// - packName, packVersion: string - modpack name and version
// - minecraftVersion: string - Minecraft version of the pack
// - loader: string - mod loader id, e.g. forge-47.2.0
// Assign a message to err to fail the build.

// Example: refuse to build without a required mod
/*
os := import("os")
if is_error(os.stat(bundleDir + "/mods/jei.jar")) {
    err = "jei.jar is missing"
}
*/`

	case PrePackage:
		return `// pre-package hook
// Runs after launch scripts are rendered, right before the bundle is zipped.
// Available variables: same as the post-download hook.
// Assign a message to err to fail the build.

// Example: add a server.properties default
/*
os := import("os")
f := os.create(bundleDir + "/server.properties")
f.write_string("motd=" + packName + " " + packVersion + "\n")
f.close()
*/`

	default:
		return "// Unknown hook phase: " + string(phase)
	}
}
