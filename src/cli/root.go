package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"oci-volume-backup/src/config"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/logging"
)

// rootState is filled by the root command's pre-run and shared with
// subcommands.
type rootState struct {
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger
}

// NewRootCmd returns the root cobra command for the oci-volume-backup CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	st := &rootState{stdout: stdout, stderr: stderr, logger: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:               "oci-volume-backup",
		Short:             "Back up Podman or Docker volumes from a remote host over SSH",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: st.setup,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newBackupCmd(st))
	cmd.AddCommand(newVolumesCmd(st))
	cmd.AddCommand(newListCmd(stdout))
	cmd.AddCommand(newVerifyCmd(stdout))
	cmd.AddCommand(newPruneCmd(st))

	return cmd
}

// setup loads the env file, fills unset flags from the environment and
// builds the logger.
func (st *rootState) setup(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	loaded, err := config.LoadEnvFile(envFile)
	if err != nil {
		return err
	}
	applied, err := config.ApplyEnv(cmd.Flags(), nil)
	if err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger, err := logging.New(logging.Config{Level: level, Format: format}, st.stderr)
	if err != nil {
		return err
	}
	st.logger = logger
	if loaded != "" {
		logger.Debug().Str("file", loaded).Msg("Loaded env file")
	}
	if len(applied) > 0 {
		logger.Debug().Strs("flags", applied).Msg("Flags taken from environment")
	}
	return nil
}

// Execute runs the CLI with the process stdio.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, Describe(err))
		return 1
	}
	return 0
}

var categoryMessages = map[error]string{
	errdefs.ErrConfiguration:   "invalid configuration",
	errdefs.ErrConnection:      "could not connect",
	errdefs.ErrAuthentication:  "authentication failed",
	errdefs.ErrChannel:         "could not open a remote channel",
	errdefs.ErrRemoteExecution: "remote command failed",
	errdefs.ErrDecoding:        "unexpected remote output",
	errdefs.ErrLocalIO:         "local file error",
}

// Describe renders err for the terminal, prefixed by its category.
func Describe(err error) string {
	if msg, ok := categoryMessages[errdefs.Category(err)]; ok {
		return fmt.Sprintf("%s: %v", msg, err)
	}
	return fmt.Sprintf("error: %v", err)
}
