package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"oci-volume-backup/src/catalog"
)

func newVolumesCmd(st *rootState) *cobra.Command {
	var conn connFlags
	var output string
	stdout := st.stdout
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "List the local volumes on the remote host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported --output: %s", output)
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
			if output == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(vols)
			}
			for _, v := range vols {
				fmt.Fprintln(stdout, v.Name)
			}
			return nil
		},
	}
	conn.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
