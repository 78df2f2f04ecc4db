package config

import (
	"os"
	"strings"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/joho/godotenv"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvCurseForgeAPIKey = "CURSEFORGE_API_KEY"
	EnvS3Bucket         = "MCBUNDLE_S3_BUCKET"
	EnvLogLevel         = "MCBUNDLE_LOG_LEVEL"
)

// LoadEnvFiles loads the given dotenv files into the process environment.
// Missing files are skipped and variables already set are left alone.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(errors.ErrEnvFile, "%s: %v", path, err)
		}
	}
	return nil
}

// ApplyEnv fills settings from the environment. The CurseForge key only
// applies when the file left it empty, so keys never have to be written into
// config.yaml.
func (c *Config) ApplyEnv() {
	if c.Sources.CurseForgeAPIKey == "" {
		c.Sources.CurseForgeAPIKey = strings.TrimSpace(os.Getenv(EnvCurseForgeAPIKey))
	}
	if bucket := os.Getenv(EnvS3Bucket); bucket != "" {
		c.Publish.S3.Bucket = bucket
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}
