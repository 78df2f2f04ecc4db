package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	pkgerrors "github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "mods", "jei.jar")

	require.NoError(t, WriteFileAtomic(target, []byte("first"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(target, []byte("second"), FileModeDefault))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files should be left behind")
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	target := filepath.Join(t.TempDir(), "start.sh")
	require.NoError(t, WriteFileAtomic(target, []byte("#!/bin/sh\n"), FileModeExec))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileModeExec), info.Mode().Perm())
}

func TestMove_File(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "bundle.zip")
	dst := filepath.Join(dir, "out", "nested", "bundle.zip")

	require.NoError(t, WriteFileAtomic(src, []byte("zip"), FileModeDefault))
	require.NoError(t, Move(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
	assert.NoFileExists(t, src)
}

func TestMove_Directory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, WriteFileAtomic(filepath.Join(src, "config", "a.toml"), []byte("a"), FileModeDefault))

	dst := filepath.Join(dir, "dst")
	require.NoError(t, Move(src, dst))
	assert.FileExists(t, filepath.Join(dst, "config", "a.toml"))
	assert.NoDirExists(t, src)
}

func TestMove_Errors(t *testing.T) {
	assert.Error(t, Move("", "x"))
	assert.Error(t, Move(filepath.Join(t.TempDir(), "missing"), "x"))
}

func TestCopyTree_Merges(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "overrides")
	dst := filepath.Join(dir, "bundle")

	require.NoError(t, WriteFileAtomic(filepath.Join(src, "config", "forge.toml"), []byte("new"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(filepath.Join(src, "server.properties"), []byte("motd=hi"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(filepath.Join(dst, "config", "forge.toml"), []byte("old"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(filepath.Join(dst, "mods", "jei.jar"), []byte("jar"), FileModeDefault))

	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "config", "forge.toml"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.FileExists(t, filepath.Join(dst, "server.properties"))
	assert.FileExists(t, filepath.Join(dst, "mods", "jei.jar"))
	assert.FileExists(t, filepath.Join(src, "server.properties"), "source must be left intact")
}

func TestIsEmptyDir(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsEmptyDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = IsEmptyDir(dir)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "x"), nil, FileModeDefault))
	empty, err = IsEmptyDir(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "bundle")

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr bool
	}{
		{name: "mod sink", rel: "mods/jei.jar", want: filepath.Join(root, "mods", "jei.jar")},
		{name: "library sink", rel: "libraries/net/minecraftforge/forge/1.20.1-47.2.0/forge.jar",
			want: filepath.Join(root, "libraries", "net", "minecraftforge", "forge", "1.20.1-47.2.0", "forge.jar")},
		{name: "inner dot-dot stays inside", rel: "mods/../config/a.toml", want: filepath.Join(root, "config", "a.toml")},
		{name: "escape", rel: "../evil.jar", wantErr: true},
		{name: "nested escape", rel: "mods/../../evil.jar", wantErr: true},
		{name: "absolute", rel: "/etc/passwd", wantErr: true},
		{name: "empty", rel: "", wantErr: true},
		{name: "root itself", rel: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(root, tt.rel)
			if tt.wantErr {
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", AppName), dir)
}
