package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"oci-volume-backup/src/target"
	"oci-volume-backup/src/verify"
)

func newVerifyCmd(stdout io.Writer) *cobra.Command {
	var output string
	var targetDir string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify archive checksums and readability in the target directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported --output: %s", output)
			}
			dest, err := target.ParseDestination(targetDir)
			if err != nil {
				return err
			}
			results, err := verify.Dir(dest.Dir)
			if err != nil {
				return err
			}
			switch output {
			case "json":
				if results == nil {
					results = []verify.Result{}
				}
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			default:
				tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "FILE\tSTATUS\tDETAIL")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.File, r.Status, r.Detail)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			failed := 0
			for _, r := range results {
				if !r.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archive(s) failed verification", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetDir, "target-dir", "t", ".", "Directory holding the archives")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
