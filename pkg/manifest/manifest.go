// Package manifest parses CurseForge modpack manifests.
package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/hashicorp/go-version"
)

// FileName is the name of the manifest inside a modpack.
const FileName = "manifest.json"

// ManifestType is the only manifestType value accepted.
const ManifestType = "minecraftModpack"

// DefaultOverrides is used when the manifest does not name an overrides folder.
const DefaultOverrides = "overrides"

// Manifest is a CurseForge modpack manifest.
type Manifest struct {
	Minecraft       Minecraft `json:"minecraft"`
	ManifestType    string    `json:"manifestType"`
	ManifestVersion int       `json:"manifestVersion"`
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Author          string    `json:"author"`
	Files           []File    `json:"files"`
	Overrides       string    `json:"overrides"`
}

// Minecraft names the game version and mod loaders a pack targets.
type Minecraft struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

// ModLoader is one entry of minecraft.modLoaders, e.g. {"id": "forge-47.2.0"}.
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// File references one mod file on CurseForge.
type File struct {
	ProjectID int   `json:"projectID"`
	FileID    int   `json:"fileID"`
	Required  *bool `json:"required,omitempty"`
}

// IsRequired reports whether the file must be installed. Entries without the
// flag are treated as required.
func (f File) IsRequired() bool {
	return f.Required == nil || *f.Required
}

func (f File) String() string {
	return fmt.Sprintf("%d/%d", f.ProjectID, f.FileID)
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrManifestParse, err.Error())
	}
	if m.Overrides == "" {
		m.Overrides = DefaultOverrides
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fields a build depends on.
func (m *Manifest) Validate() error {
	if m.ManifestType != "" && m.ManifestType != ManifestType {
		return errors.Wrapf(errors.ErrManifestInvalid, "unsupported manifestType %q", m.ManifestType)
	}
	if m.Minecraft.Version == "" {
		return errors.Wrap(errors.ErrManifestInvalid, "minecraft.version is empty")
	}
	if _, err := m.MinecraftVersion(); err != nil {
		return err
	}
	if len(m.Minecraft.ModLoaders) == 0 {
		return errors.ErrNoModLoader
	}
	for i, f := range m.Files {
		if f.ProjectID <= 0 || f.FileID <= 0 {
			return errors.Wrapf(errors.ErrManifestInvalid, "files[%d] has no projectID or fileID", i)
		}
	}
	if !isRelativeSubdir(m.Overrides) {
		return errors.Wrapf(errors.ErrManifestInvalid, "overrides %q must be a relative folder", m.Overrides)
	}
	return nil
}

// MinecraftVersion parses minecraft.version.
func (m *Manifest) MinecraftVersion() (*version.Version, error) {
	v, err := version.NewVersion(m.Minecraft.Version)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidVersion, "minecraft version %q: %v", m.Minecraft.Version, err)
	}
	return v, nil
}

// RequiredFiles returns the files to install. Optional files are included
// when includeOptional is set. Duplicate file ids are dropped.
func (m *Manifest) RequiredFiles(includeOptional bool) []File {
	seen := make(map[int]bool, len(m.Files))
	out := make([]File, 0, len(m.Files))
	for _, f := range m.Files {
		if !f.IsRequired() && !includeOptional {
			continue
		}
		if seen[f.FileID] {
			continue
		}
		seen[f.FileID] = true
		out = append(out, f)
	}
	return out
}

// PrimaryLoader returns the loader marked primary. A single loader is used
// even when it is not flagged.
func (m *Manifest) PrimaryLoader() (Loader, error) {
	loaders := m.Minecraft.ModLoaders
	var chosen *ModLoader
	for i := range loaders {
		if loaders[i].Primary {
			chosen = &loaders[i]
			break
		}
	}
	if chosen == nil {
		if len(loaders) != 1 {
			return Loader{}, errors.ErrNoModLoader
		}
		chosen = &loaders[0]
	}
	return ParseLoader(chosen.ID, m.Minecraft.Version)
}

// Slug returns a filesystem-friendly "<name>-<version>" identifier.
func (m *Manifest) Slug() string {
	name := m.Name
	if name == "" {
		name = "modpack"
	}
	s := name
	if m.Version != "" {
		s += "-" + m.Version
	}
	return sanitize(s)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "modpack"
	}
	return b.String()
}

func isRelativeSubdir(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.Contains(p, ":") {
		return false
	}
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
