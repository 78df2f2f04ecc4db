package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/manifest/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const sampleManifest = `{
  "minecraft": {
    "version": "1.20.1",
    "modLoaders": [{"id": "forge-47.2.0", "primary": true}]
  },
  "manifestType": "minecraftModpack",
  "manifestVersion": 1,
  "name": "All The Mods 9",
  "version": "0.2.44",
  "author": "ATMTeam",
  "files": [
    {"projectID": 238222, "fileID": 4712866, "required": true},
    {"projectID": 306612, "fileID": 4846313, "required": false},
    {"projectID": 238222, "fileID": 4712866, "required": true},
    {"projectID": 32274, "fileID": 4671429}
  ],
  "overrides": "overrides"
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "1.20.1", m.Minecraft.Version)
	assert.Equal(t, "All The Mods 9", m.Name)
	assert.Len(t, m.Files, 4)
	assert.True(t, m.Files[0].IsRequired())
	assert.False(t, m.Files[1].IsRequired())
	assert.True(t, m.Files[3].IsRequired(), "missing flag means required")
	assert.Equal(t, "All-The-Mods-9-0.2.44", m.Slug())

	v, err := m.MinecraftVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", v.String())
}

func TestParse_DefaultOverrides(t *testing.T) {
	m, err := Parse([]byte(`{"minecraft":{"version":"1.12.2","modLoaders":[{"id":"forge-14.23.5.2860"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultOverrides, m.Overrides)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{`, errors.ErrManifestParse},
		{"wrong type", `{"manifestType":"other","minecraft":{"version":"1.20.1","modLoaders":[{"id":"forge-47.2.0"}]}}`, errors.ErrManifestInvalid},
		{"no version", `{"minecraft":{"modLoaders":[{"id":"forge-47.2.0"}]}}`, errors.ErrManifestInvalid},
		{"bad version", `{"minecraft":{"version":"latest","modLoaders":[{"id":"forge-47.2.0"}]}}`, errors.ErrInvalidVersion},
		{"no loader", `{"minecraft":{"version":"1.20.1"}}`, errors.ErrNoModLoader},
		{"bad file", `{"minecraft":{"version":"1.20.1","modLoaders":[{"id":"forge-47.2.0"}]},"files":[{"projectID":1}]}`, errors.ErrManifestInvalid},
		{"escaping overrides", `{"minecraft":{"version":"1.20.1","modLoaders":[{"id":"forge-47.2.0"}]},"overrides":"../etc"}`, errors.ErrManifestInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequiredFiles(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	required := m.RequiredFiles(false)
	assert.Equal(t, []string{"238222/4712866", "32274/4671429"}, fileIDs(required))

	all := m.RequiredFiles(true)
	assert.Equal(t, []string{"238222/4712866", "306612/4846313", "32274/4671429"}, fileIDs(all))
}

func fileIDs(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, fmt.Sprint(f))
	}
	return out
}

func TestPrimaryLoader(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	l, err := m.PrimaryLoader()
	require.NoError(t, err)
	assert.Equal(t, LoaderForge, l.Kind)
	assert.Equal(t, "47.2.0", l.Version)
	assert.Equal(t, "1.20.1-47.2.0", l.FullVersion())
	assert.Equal(t, "forge-47.2.0", l.String())

	m.Minecraft.ModLoaders = []ModLoader{{ID: "forge-47.1.0"}, {ID: "forge-47.2.0"}}
	_, err = m.PrimaryLoader()
	assert.ErrorIs(t, err, errors.ErrNoModLoader)
}

func TestParseLoader(t *testing.T) {
	l, err := ParseLoader("forge-1.12.2-14.23.5.2860", "1.12.2")
	require.NoError(t, err)
	assert.Equal(t, "14.23.5.2860", l.Version)
	assert.Equal(t, "1.12.2-14.23.5.2860", l.FullVersion())

	_, err = ParseLoader("fabric-0.14.21", "1.20.1")
	assert.ErrorIs(t, err, errors.ErrUnsupportedLoader)

	_, err = ParseLoader("forge", "1.20.1")
	assert.ErrorIs(t, err, errors.ErrUnsupportedLoader)

	_, err = ParseLoader("forge-abc", "1.20.1")
	assert.ErrorIs(t, err, errors.ErrInvalidVersion)
}

func TestLoader_AtLeast(t *testing.T) {
	tests := []struct {
		mc   string
		want bool
	}{
		{"1.16.5", false},
		{"1.17", true},
		{"1.17.1", true},
		{"1.20.1", true},
		{"1.12.2", false},
		{"1.7.10", false},
	}
	for _, tt := range tests {
		t.Run(tt.mc, func(t *testing.T) {
			l := Loader{Kind: LoaderForge, Version: "1.0.0", MinecraftVersion: tt.mc}
			assert.Equal(t, tt.want, l.AtLeast("1.17"))
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(sampleManifest), 0o644))

	pack, err := Load(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceDir, pack.Kind)
	assert.Equal(t, dir, pack.Path)
	assert.Equal(t, filepath.Join(dir, "overrides"), pack.OverridesDir())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my-pack.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	pack, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, pack.Kind)
	assert.Equal(t, dir, pack.Path)
}

func TestLoad_Archive(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockArchiveReader(ctrl)

	zipPath := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("PK"), 0o644))

	reader.EXPECT().ReadFile(gomock.Any(), zipPath, FileName).Return([]byte(sampleManifest), nil)

	pack, err := Load(context.Background(), zipPath, reader)
	require.NoError(t, err)
	assert.Equal(t, SourceArchive, pack.Kind)
	assert.Empty(t, pack.OverridesDir())
	assert.Equal(t, "All The Mods 9", pack.Manifest.Name)
}

func TestLoad_ArchiveWithoutManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockArchiveReader(ctrl)

	zipPath := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("PK"), 0o644))
	reader.EXPECT().ReadFile(gomock.Any(), zipPath, FileName).Return(nil, fmt.Errorf("open: %w", fs.ErrNotExist))

	_, err := Load(context.Background(), zipPath, reader)
	assert.ErrorIs(t, err, errors.ErrManifestNotFound)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.ErrorIs(t, err, errors.ErrManifestNotFound)

	_, err = Load(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, errors.ErrManifestNotFound)
}
