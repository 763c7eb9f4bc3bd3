package volumes

import (
	"oci-volume-backup/src/backend"
	"oci-volume-backup/src/catalog"
)

// Orphans returns the archives whose volume is no longer in the catalog.
func Orphans(entries []backend.Entry, vols []catalog.Volume) []backend.Entry {
	live := make(map[string]bool, len(vols))
	for _, v := range vols {
		live[v.Name] = true
	}
	var out []backend.Entry
	for _, e := range entries {
		if !live[e.Volume] {
			out = append(out, e)
		}
	}
	return out
}
