// Package config provides configuration management for mcbundle.
// It handles loading, validating and saving the YAML configuration file that
// controls downloads, upstream sources, the generated server launch files,
// build hooks and optional publishing. A missing file yields the defaults.
package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
	"github.com/glorpus-work/mcbundle/pkg/platform"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Download DownloadConfig `yaml:"download"`
	Sources  SourcesConfig  `yaml:"sources"`
	Server   ServerConfig   `yaml:"server"`
	Build    BuildConfig    `yaml:"build"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Publish  PublishConfig  `yaml:"publish"`

	// Output settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// DownloadConfig controls the download coordinator and fetcher.
type DownloadConfig struct {
	// MaxRetries is the total number of attempts per file, including the first.
	MaxRetries  int           `yaml:"max_retries"`
	Concurrency int           `yaml:"concurrency"`
	CheckHashes bool          `yaml:"check_hashes"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	UserAgent   string        `yaml:"user_agent"`
}

// SourcesConfig holds the upstream endpoints files are resolved against.
type SourcesConfig struct {
	MojangManifestURL string `yaml:"mojang_manifest_url"`
	ForgeMavenURL     string `yaml:"forge_maven_url"`
	CurseForgeAPIURL  string `yaml:"curseforge_api_url"`
	CurseForgeAPIKey  string `yaml:"curseforge_api_key,omitempty"`
	IncludeOptional   bool   `yaml:"include_optional"`
}

// ServerConfig controls the rendered launch files.
type ServerConfig struct {
	JavaPath   string   `yaml:"java_path"`
	Memory     string   `yaml:"memory"`
	JVMArgs    []string `yaml:"jvm_args,omitempty"`
	AcceptEULA bool     `yaml:"accept_eula"`
	Platform   string   `yaml:"platform"` // any, linux, macos, windows
}

// BuildConfig controls where the bundle is assembled and written.
type BuildConfig struct {
	WorkDir     string `yaml:"work_dir,omitempty"`
	OutputDir   string `yaml:"output_dir"`
	ArchiveName string `yaml:"archive_name,omitempty"` // defaults to <pack>-<version>-server.zip
	KeepWorkDir bool   `yaml:"keep_work_dir"`
}

// HooksConfig lists tengo scripts run at fixed points of a build.
type HooksConfig struct {
	PostDownload []string `yaml:"post_download,omitempty"`
	PrePackage   []string `yaml:"pre_package,omitempty"`
}

// PublishConfig controls optional upload of the finished bundle.
type PublishConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config describes an S3 (or S3-compatible) destination. Publishing is
// disabled while Bucket is empty.
type S3Config struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
}

// Enabled reports whether publishing to S3 is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Default configuration values.
const (
	DefaultMaxRetries  = 5
	DefaultConcurrency = 10
	DefaultReadTimeout = 30 * time.Second
	DefaultRetryDelay  = time.Second
	DefaultUserAgent   = "mcbundle/1.0"

	DefaultMojangManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	DefaultForgeMavenURL     = "https://maven.minecraftforge.net"
	DefaultCurseForgeAPIURL  = "https://api.curseforge.com"

	DefaultJavaPath = "java"
	DefaultMemory   = "4G"

	DefaultOutputDir = "."

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			MaxRetries:  DefaultMaxRetries,
			Concurrency: DefaultConcurrency,
			CheckHashes: true,
			ReadTimeout: DefaultReadTimeout,
			RetryDelay:  DefaultRetryDelay,
			UserAgent:   DefaultUserAgent,
		},
		Sources: SourcesConfig{
			MojangManifestURL: DefaultMojangManifestURL,
			ForgeMavenURL:     DefaultForgeMavenURL,
			CurseForgeAPIURL:  DefaultCurseForgeAPIURL,
		},
		Server: ServerConfig{
			JavaPath: DefaultJavaPath,
			Memory:   DefaultMemory,
			Platform: platform.Any,
		},
		Build: BuildConfig{
			OutputDir: DefaultOutputDir,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig loads configuration from a file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader. Keys absent
// from the document keep their default values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigValidation, err)
	}

	return config, nil
}

// SaveConfig saves configuration to a file. The file is written to a temporary
// path first and renamed into place.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeSecure)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.JVMArgs = append([]string(nil), c.Server.JVMArgs...)
	out.Hooks.PostDownload = append([]string(nil), c.Hooks.PostDownload...)
	out.Hooks.PrePackage = append([]string(nil), c.Hooks.PrePackage...)
	if out.Sources.CurseForgeAPIKey != "" {
		out.Sources.CurseForgeAPIKey = "********"
	}
	if out.Publish.S3.SecretAccessKey != "" {
		out.Publish.S3.SecretAccessKey = "********"
	}
	return &out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateDownload(c.Download); err != nil {
		return err
	}
	if err := validateSources(c.Sources); err != nil {
		return err
	}
	if err := validatePublish(c.Publish.S3); err != nil {
		return err
	}
	if !platform.IsValid(c.Server.Platform) {
		return errors.Wrapf(errors.ErrConfigValue, "server.platform %q, expected one of %s",
			c.Server.Platform, strings.Join(platform.Valid(), ", "))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return errors.ErrInvalidOutputFormatWithDetails(c.LogFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(c.LogLevel)
	}
	return nil
}

func validateDownload(d DownloadConfig) error {
	if d.MaxRetries < 1 {
		return errors.ErrMaxRetriesInvalid
	}
	if d.Concurrency < 1 {
		return errors.ErrConcurrencyInvalid
	}
	if d.ReadTimeout < 0 || d.RetryDelay < 0 {
		return errors.ErrTimeoutNegative
	}
	return nil
}

func validateSources(s SourcesConfig) error {
	urls := []struct{ key, value string }{
		{"sources.mojang_manifest_url", s.MojangManifestURL},
		{"sources.forge_maven_url", s.ForgeMavenURL},
		{"sources.curseforge_api_url", s.CurseForgeAPIURL},
	}
	for _, u := range urls {
		if !isHTTPURL(u.value) {
			return errors.ErrInvalidURLWithDetails(u.key, u.value)
		}
	}
	return nil
}

func validatePublish(s S3Config) error {
	if !s.Enabled() {
		return nil
	}
	if s.Region == "" {
		return errors.ErrS3RegionMissing
	}
	if s.Endpoint != "" && !isHTTPURL(s.Endpoint) {
		return errors.ErrInvalidURLWithDetails("publish.s3.endpoint", s.Endpoint)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	dir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// applyDefaults fills in values that must never be empty.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaults.Download.UserAgent
	}
	if c.Sources.MojangManifestURL == "" {
		c.Sources.MojangManifestURL = defaults.Sources.MojangManifestURL
	}
	if c.Sources.ForgeMavenURL == "" {
		c.Sources.ForgeMavenURL = defaults.Sources.ForgeMavenURL
	}
	if c.Sources.CurseForgeAPIURL == "" {
		c.Sources.CurseForgeAPIURL = defaults.Sources.CurseForgeAPIURL
	}
	if c.Server.JavaPath == "" {
		c.Server.JavaPath = defaults.Server.JavaPath
	}
	if c.Server.Memory == "" {
		c.Server.Memory = defaults.Server.Memory
	}
	if c.Server.Platform == "" {
		c.Server.Platform = defaults.Server.Platform
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = defaults.Build.OutputDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}
}
