package backend

import "time"

// Entry is one volume archive found in a backup directory.
type Entry struct {
	Volume  string    `json:"volume"`
	File    string    `json:"file"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	// SHA256 is the recorded checksum, empty when none was recorded.
	SHA256 string `json:"sha256,omitempty"`
}

// StorageBackend lists archives in a backup location.
type StorageBackend interface {
	List() ([]Entry, error)
}
