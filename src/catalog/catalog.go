package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"oci-volume-backup/src/engine"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/remote"
)

// Volume is a local-driver volume discovered on the remote host.
type Volume struct {
	Name string `json:"name"`
}

// ListVolumes runs the engine's listing command and parses its output. The
// order returned by the engine is kept; nothing is sorted or deduplicated.
func ListVolumes(ctx context.Context, cmds engine.Commands, r remote.Runner) ([]Volume, error) {
	out, err := r.Run(ctx, cmds.ListVolumes())
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	return Parse(out)
}

// Parse splits listing output into volumes, one per non-empty line.
func Parse(out []byte) ([]Volume, error) {
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%w: volume listing is not valid UTF-8", errdefs.ErrDecoding)
	}
	vols := []Volume{}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		vols = append(vols, Volume{Name: line})
	}
	return vols, nil
}

// Filter keeps the volumes named in include, in catalog order. An empty
// include keeps everything. Requested names that are not in the catalog are
// reported together.
func Filter(vols []Volume, include []string) ([]Volume, error) {
	if len(include) == 0 {
		return vols, nil
	}
	want := make(map[string]bool, len(include))
	for _, n := range include {
		want[n] = false
	}
	var out []Volume
	for _, v := range vols {
		if _, ok := want[v.Name]; ok {
			want[v.Name] = true
			out = append(out, v)
		}
	}
	var missing []string
	for _, n := range include {
		if !want[n] {
			missing = append(missing, n)
			want[n] = true
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: volumes not found on remote host: %s", errdefs.ErrConfiguration, strings.Join(missing, ", "))
	}
	return out, nil
}
