package manifest

import (
	"fmt"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/hashicorp/go-version"
)

// LoaderKind identifies a mod loader family.
type LoaderKind string

// Supported loader families.
const (
	LoaderForge LoaderKind = "forge"
)

// Loader is a parsed modLoaders id such as "forge-47.2.0".
type Loader struct {
	Kind             LoaderKind
	Version          string
	MinecraftVersion string
}

// ParseLoader parses a loader id for the given Minecraft version.
func ParseLoader(id, minecraftVersion string) (Loader, error) {
	kind, ver, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok || ver == "" {
		return Loader{}, errors.ErrUnsupportedLoaderWithName(id)
	}

	switch LoaderKind(strings.ToLower(kind)) {
	case LoaderForge:
	default:
		return Loader{}, errors.ErrUnsupportedLoaderWithName(id)
	}

	// Older manifests repeat the game version: "forge-1.12.2-14.23.5.2860".
	ver = strings.TrimPrefix(ver, minecraftVersion+"-")
	if _, err := version.NewVersion(ver); err != nil {
		return Loader{}, errors.Wrapf(errors.ErrInvalidVersion, "loader %q: %v", id, err)
	}

	return Loader{Kind: LoaderForge, Version: ver, MinecraftVersion: minecraftVersion}, nil
}

// FullVersion is the Maven version of the loader artifact, "<mc>-<loader>".
func (l Loader) FullVersion() string {
	return l.MinecraftVersion + "-" + l.Version
}

func (l Loader) String() string {
	return fmt.Sprintf("%s-%s", l.Kind, l.Version)
}

// AtLeast reports whether the Minecraft version is at or above min.
func (l Loader) AtLeast(min string) bool {
	have, err := version.NewVersion(l.MinecraftVersion)
	if err != nil {
		return false
	}
	constraint, err := version.NewConstraint(">= " + min)
	if err != nil {
		return false
	}
	// Pre-release suffixes such as "1.20.5-rc1" still count as that release.
	return constraint.Check(have.Core())
}
