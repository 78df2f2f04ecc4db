package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/errors"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CURSEFORGE_API_KEY", "")
	t.Setenv("MCBUNDLE_S3_BUCKET", "")
	t.Setenv("MCBUNDLE_LOG_LEVEL", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var logs bytes.Buffer
	logger.SetTestOutput(&logs)
	t.Cleanup(logger.UnsetTestOutput)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mcbundle version")
}

func TestConfigInit(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfigFileExists)

	_, err = execute(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigSetGet(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "config", "set", "download.concurrency", "4")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "config", "get", "download.concurrency")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = execute(t, "--config", path, "config", "set", "download.concurrency", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConcurrencyInvalid)

	_, err = execute(t, "--config", path, "config", "get", "download.parallelism")
	assert.ErrorIs(t, err, errors.ErrUnknownConfigKey)
}

func TestConfigSetDoesNotPersistEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CURSEFORGE_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "config", "set", "server.memory", "8G")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "memory: 8G")
	assert.NotContains(t, string(data), "from-env")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "config", "set", "sources.curseforge_api_key", "very-secret")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "SETTING")
	assert.Contains(t, out, "sources.curseforge_api_key")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "very-secret")

	out, err = execute(t, "--config", path, "config", "show", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "download:")
	assert.NotContains(t, out, "very-secret")
}

func TestInvalidLogFormatFlag(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "--log-format", "xml", "config", "show")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
}

func TestHookNew(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "hook", "new", "pre-package")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "// pre-package hook"))

	_, err = execute(t, "hook", "new", "pre-install")
	assert.ErrorIs(t, err, errors.ErrHookLoad)

	path := filepath.Join(t.TempDir(), "hooks", "check.tengo")
	_, err = execute(t, "hook", "new", "post-download", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "post-download hook")

	_, err = execute(t, "hook", "new", "post-download", path)
	assert.ErrorIs(t, err, errors.ErrHookLoad)
}

func TestBuildMissingModpack(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "build", filepath.Join(t.TempDir(), "absent.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrManifestNotFound)
	assert.Contains(t, err.Error(), "manifest")
}

func TestBuildIgnoresNonPositiveOverrides(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "build", "--concurrency", "-3", "--max-retries", "2", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrManifestNotFound)
}
