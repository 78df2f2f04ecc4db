package cli

import (
	"fmt"

	"github.com/glorpus-work/mcbundle/pkg/config"
	"github.com/glorpus-work/mcbundle/pkg/pipeline"
	"github.com/spf13/cobra"
)

type buildFlags struct {
	output          string
	workDir         string
	archiveName     string
	concurrency     int
	maxRetries      int
	noVerify        bool
	keepWorkDir     bool
	includeOptional bool
	noPublish       bool
	acceptEULA      bool
	platform        string
}

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build <manifest.json|modpack-dir|modpack.zip>",
		Short: "Build a server bundle from a modpack",
		Long: `Build a deployable server bundle from a CurseForge modpack.

The vanilla server jar, the Forge installer and its libraries and every mod
file are downloaded concurrently and verified against their published hashes.
Overrides are merged, launch scripts rendered and the result is zipped into
the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Directory the bundle zip is written to (defaults to config)")
	cmd.Flags().StringVar(&flags.workDir, "work-dir", "", "Directory the bundle is assembled in (default: temporary)")
	cmd.Flags().StringVar(&flags.archiveName, "name", "", "File name of the bundle zip")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "Number of parallel downloads (0=config)")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", 0, "Attempts per file including the first (0=config)")
	cmd.Flags().BoolVar(&flags.noVerify, "no-verify", false, "Skip hash verification of downloaded files")
	cmd.Flags().BoolVar(&flags.keepWorkDir, "keep-work-dir", false, "Keep the assembled server directory")
	cmd.Flags().BoolVar(&flags.includeOptional, "include-optional", false, "Also install files the manifest marks optional")
	cmd.Flags().BoolVar(&flags.noPublish, "no-publish", false, "Skip publishing even when publish.s3 is configured")
	cmd.Flags().BoolVar(&flags.acceptEULA, "accept-eula", false, "Write eula=true, accepting the Minecraft EULA")
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Only render start scripts for this system (any, linux, macos, windows)")

	cmd.Example = `  # Build from an exported modpack zip
  mcbundle build ./All-The-Mods-9.zip

  # Build from an unpacked modpack with 4 parallel downloads
  mcbundle build --concurrency 4 --output ./dist ./my-pack`

	return cmd
}

func runBuild(cmd *cobra.Command, input string, flags buildFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	hooks := pipeline.Hooks{OnEvent: func(e pipeline.Event) {
		switch {
		case e.Phase == pipeline.PhaseError:
			_, _ = fmt.Fprintf(out, "error in %s: %s\n", e.ID, e.Msg)
		case e.Phase == pipeline.PhaseDone:
			_, _ = fmt.Fprintf(out, "done: %s\n", e.Msg)
		case e.ID != "":
			_, _ = fmt.Fprintf(out, "%s: %s (%s)\n", e.Phase, e.ID, e.Msg)
		default:
			_, _ = fmt.Fprintf(out, "%s: %s\n", e.Phase, e.Msg)
		}
	}}

	result, err := pipeline.New(cfg, pipeline.WithHooks(hooks)).Build(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("failed to build bundle: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Built %s (%d mods, %d libraries)\n", result.BundlePath, result.Mods, result.Libraries)
	if result.Location != "" {
		_, _ = fmt.Fprintf(out, "Published to %s\n", result.Location)
	}
	if result.WorkDir != "" {
		_, _ = fmt.Fprintf(out, "Work directory kept at %s\n", result.WorkDir)
	}
	return nil
}

// apply overrides configuration with the flags that were set.
func (f buildFlags) apply(cfg *config.Config) error {
	if f.output != "" {
		cfg.Build.OutputDir = f.output
	}
	if f.workDir != "" {
		cfg.Build.WorkDir = f.workDir
	}
	if f.archiveName != "" {
		cfg.Build.ArchiveName = f.archiveName
	}
	if f.concurrency > 0 {
		cfg.Download.Concurrency = f.concurrency
	}
	if f.maxRetries > 0 {
		cfg.Download.MaxRetries = f.maxRetries
	}
	if f.noVerify {
		cfg.Download.CheckHashes = false
	}
	if f.keepWorkDir {
		cfg.Build.KeepWorkDir = true
	}
	if f.includeOptional {
		cfg.Sources.IncludeOptional = true
	}
	if f.noPublish {
		cfg.Publish.S3.Bucket = ""
	}
	if f.acceptEULA {
		cfg.Server.AcceptEULA = true
	}
	if f.platform != "" {
		cfg.Server.Platform = f.platform
	}
	return cfg.Validate()
}
