package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	dir "oci-volume-backup/src/backend/directory"
	vol "oci-volume-backup/src/backup/volumes"
	"oci-volume-backup/src/catalog"
	"oci-volume-backup/src/safety"
	"oci-volume-backup/src/target"
)

func newBackupCmd(st *rootState) *cobra.Command {
	var conn connFlags
	var targetDir string
	var continueOnError bool
	var ignoreExitStatus bool
	var noChecksums bool
	stdout := st.stdout
	cmd := &cobra.Command{
		Use:   "backup [VOLUME ...]",
		Short: "Export local volumes (all or selected) from the remote host into <target-dir>/<volume>.tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := getSafetyOptions(cmd)
			dest, err := target.ParseDestination(targetDir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			c, err := conn.connect(ctx, st, cmd.InOrStdin(), ignoreExitStatus)
			if err != nil {
				return err
			}
			defer c.Close()

			vols, err := catalog.ListVolumes(ctx, c.commands, c.runner)
			if err != nil {
				return err
			}
			if vols, err = catalog.Filter(vols, args); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Found %d volume(s) on %s\n", len(vols), c.session.Endpoint())
			if len(vols) == 0 {
				return nil
			}

			be, err := openDestination(dest, opts.DryRun)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(vols))
			for _, v := range vols {
				names = append(names, v.Name)
			}
			ok, err := safety.ConfirmOverwrite(opts, cmd.InOrStdin(), stdout, be.Existing(names))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Aborted")
				return nil
			}

			var progress io.Writer
			if !opts.DryRun && isTerminal(stdout) {
				progress = stdout
			}
			report, err := vol.Run(ctx, vol.Options{
				Commands:        c.commands,
				Runner:          c.runner,
				Volumes:         vols,
				Backend:         be,
				Observer:        &textObserver{w: stdout},
				Logger:          st.logger,
				ContinueOnError: continueOnError,
				Checksums:       !noChecksums,
				DryRun:          opts.DryRun,
				Progress:        progress,
			})
			if !opts.DryRun {
				var total uint64
				for _, r := range report.Succeeded() {
					total += uint64(r.Bytes)
				}
				fmt.Fprintf(stdout, "Backed up %d of %d volume(s) (%s) to %s\n", len(report.Succeeded()), len(vols), humanize.Bytes(total), dest)
			}
			return err
		},
	}
	conn.register(cmd.Flags())
	cmd.Flags().StringVarP(&targetDir, "target-dir", "t", ".", "Local directory receiving the archives")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep backing up remaining volumes after a failure")
	cmd.Flags().BoolVar(&ignoreExitStatus, "ignore-exit-status", false, "Treat a non-zero remote exit status as success")
	cmd.Flags().BoolVar(&noChecksums, "no-checksums", false, "Do not update checksums.txt")
	return cmd
}

// openDestination creates the target directory. A dry run never creates it.
func openDestination(dest target.Destination, dryRun bool) (*dir.Backend, error) {
	if dryRun {
		if _, err := os.Stat(dest.Dir); errors.Is(err, fs.ErrNotExist) {
			return &dir.Backend{Root: dest.Dir}, nil
		}
	} else if err := dest.Ensure(); err != nil {
		return nil, err
	}
	return dir.New(dest.Dir)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// textObserver prints one line per step.
type textObserver struct {
	w io.Writer
}

func (o *textObserver) Started(i, total int, v catalog.Volume, path string) {
	fmt.Fprintf(o.w, "[%d/%d] Backing up volume %s -> %s\n", i, total, v.Name, path)
}

func (o *textObserver) Finished(i, total int, res vol.Result) {
	if res.Outcome == vol.Planned {
		fmt.Fprintf(o.w, "[%d/%d] Would run: %s\n", i, total, res.Command)
		return
	}
	fmt.Fprintf(o.w, "[%d/%d] Done %s (%s)\n", i, total, res.Volume, humanize.Bytes(uint64(res.Bytes)))
}

func (o *textObserver) Failed(i, total int, res vol.Result) {
	fmt.Fprintf(o.w, "[%d/%d] Failed %s: %v\n", i, total, res.Volume, res.Err)
}
