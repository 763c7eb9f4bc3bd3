package verify

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	dir "oci-volume-backup/src/backend/directory"
)

// Status values reported per archive.
const (
	StatusOK       = "ok"
	StatusMismatch = "mismatch"
	StatusMissing  = "missing"
	StatusCorrupt  = "corrupt"
	// StatusUnrecorded marks an archive with no ledger entry. It is still
	// checked for readability.
	StatusUnrecorded = "unrecorded"
)

// Result is the outcome for one archive.
type Result struct {
	File     string `json:"file"`
	Status   string `json:"status"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Entries  int    `json:"entries,omitempty"`
}

// OK reports whether the archive passed.
func (r Result) OK() bool { return r.Status == StatusOK || r.Status == StatusUnrecorded }

// Dir checks every archive in root against the checksum ledger and makes
// sure each one decodes as a gzip-wrapped tar stream. Results are sorted by
// file name.
func Dir(root string) ([]Result, error) {
	b, err := dir.New(root)
	if err != nil {
		return nil, err
	}
	sums, err := b.ReadChecksums()
	if err != nil {
		return nil, err
	}
	entries, err := b.List()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Result
	for _, e := range entries {
		seen[e.File] = true
		out = append(out, File(e.Path, sums[e.File]))
	}
	for name, want := range sums {
		if seen[name] {
			continue
		}
		out = append(out, Result{File: name, Status: StatusMissing, Expected: want, Detail: "listed in " + dir.ChecksumsFile})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

// AllOK reports whether every result passed.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}

// File verifies one archive. An empty want skips the checksum comparison.
func File(path, want string) Result {
	res := Result{File: filepath.Base(path), Expected: strings.ToLower(want)}
	f, err := os.Open(path)
	if err != nil {
		res.Status = StatusMissing
		res.Detail = err.Error()
		return res
	}
	defer f.Close()

	h := sha256.New()
	n, err := readArchive(io.TeeReader(f, h))
	if err != nil {
		// drain the rest so the checksum still covers the whole file
		if _, cerr := io.Copy(h, f); cerr != nil {
			res.Status = StatusCorrupt
			res.Detail = cerr.Error()
			return res
		}
	}
	res.Actual = hex.EncodeToString(h.Sum(nil))
	res.Entries = n

	switch {
	case res.Expected != "" && res.Expected != res.Actual:
		res.Status = StatusMismatch
	case err != nil:
		res.Status = StatusCorrupt
		res.Detail = err.Error()
	case res.Expected == "":
		res.Status = StatusUnrecorded
	default:
		res.Status = StatusOK
	}
	return res
}

// readArchive walks a gzip-compressed tar stream and returns the number of
// tar entries read.
func readArchive(r io.Reader) (int, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	n := 0
	for {
		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("tar: %w", err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return n, fmt.Errorf("tar: %w", err)
		}
		n++
	}
	// consume gzip trailer and any padding so the checksum covers it
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return n, fmt.Errorf("gzip: %w", err)
	}
	return n, nil
}
