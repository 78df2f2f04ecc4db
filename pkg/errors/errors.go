// Package errors holds the sentinel errors shared across mcbundle together with
// small helpers for wrapping them with context. Errors are grouped by the part of
// the build they come from.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Config errors.
var (
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists (use --force to overwrite)")

	// ErrMaxRetriesInvalid is returned when download.max_retries is less than 1.
	ErrMaxRetriesInvalid = fmt.Errorf("max_retries must be at least 1")

	// ErrConcurrencyInvalid is returned when download.concurrency is less than 1.
	ErrConcurrencyInvalid = fmt.Errorf("concurrency must be at least 1")

	// ErrTimeoutNegative is returned when a duration setting is negative.
	ErrTimeoutNegative = fmt.Errorf("duration cannot be negative")

	ErrInvalidLogLevel     = fmt.Errorf("invalid log level")
	ErrInvalidOutputFormat = fmt.Errorf("invalid log format")
	ErrInvalidURL          = fmt.Errorf("invalid URL")
	ErrUnknownConfigKey    = fmt.Errorf("unknown configuration key")
	ErrConfigValue         = fmt.Errorf("invalid configuration value")
	ErrS3RegionMissing     = fmt.Errorf("publish.s3.region is required when a bucket is set")
	ErrEnvFile             = fmt.Errorf("failed to load env file")
)

// Manifest errors.
var (
	ErrManifestNotFound     = fmt.Errorf("manifest not found")
	ErrManifestParse        = fmt.Errorf("failed to parse manifest")
	ErrManifestInvalid      = fmt.Errorf("invalid manifest")
	ErrNoModLoader          = fmt.Errorf("manifest declares no mod loader")
	ErrUnsupportedLoader    = fmt.Errorf("unsupported mod loader")
	ErrInvalidVersion       = fmt.Errorf("invalid version")
	ErrUnknownGameVersion   = fmt.Errorf("unknown minecraft version")
	ErrServerJarUnavailable = fmt.Errorf("no server download for minecraft version")
)

// Build errors.
var (
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrSinkWrite        = fmt.Errorf("failed to write downloaded file")
	ErrInvalidSink      = fmt.Errorf("invalid sink path")
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrMissingAPIKey    = fmt.Errorf("curseforge api key is not configured")
	ErrPublishFailed    = fmt.Errorf("failed to publish bundle")
	ErrHookExecution    = fmt.Errorf("error executing hook")
	ErrHookScript       = fmt.Errorf("hook script error")
	ErrHookLoad         = fmt.Errorf("failed to load hook")
	ErrArchiveTraversal = fmt.Errorf("archive entry escapes destination")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrInvalidLogLevelWithDetails creates a wrapped error naming the rejected level.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: debug, info, warn, error", ErrInvalidLogLevel, level)
}

// ErrInvalidOutputFormatWithDetails creates a wrapped error naming the rejected format.
func ErrInvalidOutputFormatWithDetails(format string) error {
	return fmt.Errorf("%w: '%s', must be one of: text, json", ErrInvalidOutputFormat, format)
}

// ErrInvalidURLWithDetails creates a wrapped error naming the setting holding a bad URL.
func ErrInvalidURLWithDetails(key, value string) error {
	return fmt.Errorf("%s: %w: '%s'", key, ErrInvalidURL, value)
}

// ErrUnsupportedLoaderWithName creates a wrapped error naming the loader id.
func ErrUnsupportedLoaderWithName(id string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedLoader, id)
}

// ErrConfigFileExistsWithPath creates a wrapped error naming the existing file.
func ErrConfigFileExistsWithPath(path string) error {
	return fmt.Errorf("%s: %w", path, ErrConfigFileExists)
}
