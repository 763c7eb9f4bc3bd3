package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	dir "oci-volume-backup/src/backend/directory"
	vol "oci-volume-backup/src/backup/volumes"
	"oci-volume-backup/src/catalog"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/safety"
	"oci-volume-backup/src/target"
)

func newPruneCmd(st *rootState) *cobra.Command {
	var conn connFlags
	var targetDir string
	var allowEmpty bool
	stdout := st.stdout
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives of volumes that no longer exist on the remote host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := target.ParseDestination(targetDir)
			if err != nil {
				return err
			}
			be, err := dir.New(dest.Dir)
			if err != nil {
				return err
			}
			entries, err := be.List()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			c, err := conn.connect(ctx, st, cmd.InOrStdin(), false)
			if err != nil {
				return err
			}
			defer c.Close()
			vols, err := catalog.ListVolumes(ctx, c.commands, c.runner)
			if err != nil {
				return err
			}
			toDelete := vol.Orphans(entries, vols)
			emptyCatalog := len(vols) == 0 && len(toDelete) > 0
			if emptyCatalog {
				st.logger.Warn().Str("endpoint", c.session.Endpoint().String()).Int("archives", len(toDelete)).Msg("Remote host reported no volumes; every archive is an orphan")
			}

			// Preview
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VOLUME\tFILE\tSIZE\tACTION")
			for _, e := range toDelete {
				fmt.Fprintf(tw, "%s\t%s\t%s\tdelete\n", e.Volume, e.File, humanize.Bytes(uint64(e.Size)))
			}
			_ = tw.Flush()

			opts := getSafetyOptions(cmd)
			if opts.DryRun || len(toDelete) == 0 {
				return nil
			}
			if emptyCatalog && !allowEmpty {
				return fmt.Errorf("%w: remote host reported no volumes; refusing to delete all %d archive(s) (pass --allow-empty-catalog to override)", errdefs.ErrConfiguration, len(toDelete))
			}
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout, fmt.Sprintf("Delete %d archive(s)?", len(toDelete)))
			if err != nil || !ok {
				return err
			}
			files := make([]string, 0, len(toDelete))
			for _, e := range toDelete {
				files = append(files, e.File)
			}
			if err := be.Remove(files); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %d archive(s)\n", len(files))
			return nil
		},
	}
	conn.register(cmd.Flags())
	cmd.Flags().StringVarP(&targetDir, "target-dir", "t", ".", "Directory holding the archives")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty-catalog", false, "Delete every archive when the remote host reports no volumes")
	return cmd
}
