package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"oci-volume-backup/src/backend"
	dir "oci-volume-backup/src/backend/directory"
	"oci-volume-backup/src/target"
)

func newListCmd(stdout io.Writer) *cobra.Command {
	var output string
	var targetDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List volume archives in the target directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := target.ParseDestination(targetDir)
			if err != nil {
				return err
			}
			var be backend.StorageBackend
			b, err := dir.New(dest.Dir)
			if err != nil {
				return err
			}
			be = b
			entries, err := be.List()
			if err != nil {
				return err
			}
			switch output {
			case "json":
				if entries == nil {
					entries = []backend.Entry{}
				}
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table", "":
				return renderTable(stdout, entries)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVarP(&targetDir, "target-dir", "t", ".", "Directory holding the archives")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func renderTable(w io.Writer, entries []backend.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOLUME\tFILE\tSIZE\tMODIFIED\tSHA256")
	for _, e := range entries {
		sum := e.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		if sum == "" {
			sum = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Volume, e.File, humanize.Bytes(uint64(e.Size)), e.ModTime.UTC().Format(time.RFC3339), sum)
	}
	return tw.Flush()
}
