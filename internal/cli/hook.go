package cli

import (
	"fmt"
	"os"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
	"github.com/glorpus-work/mcbundle/pkg/hooks"
	"github.com/spf13/cobra"
)

// NewHookCmd creates the hook command with subcommands.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Work with build hooks",
		Long: `Build hooks are tengo scripts run at fixed points of a build.
Configure them under hooks.post_download and hooks.pre_package, or place
<phase>.tengo files in .mcbundle/hooks next to a modpack directory.`,
	}

	cmd.AddCommand(newHookNewCmd())
	return cmd
}

func newHookNewCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:       "new <post-download|pre-package> [FILE]",
		Short:     "Write a starter hook script",
		Long:      "Print a starter script for the phase, or write it to FILE.",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{string(hooks.PostDownload), string(hooks.PrePackage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			phase := hooks.Phase(args[0])
			if !phase.Valid() {
				return hooks.ErrUnsupportedPhase(args[0])
			}
			script := hooks.Template(phase) + "\n"

			if len(args) == 1 {
				_, err := fmt.Fprint(cmd.OutOrStdout(), script)
				return err
			}

			path := args[1]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite): %w", path, errors.ErrHookLoad)
			}
			if err := fsutil.WriteFileAtomic(path, []byte(script), fsutil.FileModeDefault); err != nil {
				return err
			}
			logger.Success("Hook script created", logger.Fields{"path": path, "phase": phase})
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
