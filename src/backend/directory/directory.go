package directory

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"oci-volume-backup/src/backend"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/target"
)

// ChecksumsFile is the sha256 ledger kept next to the archives.
const ChecksumsFile = "checksums.txt"

// Backend implements backend.StorageBackend for a flat directory of
// <volume>.tar.gz files.
type Backend struct {
	Root string // absolute directory path
}

func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("directory backend root must not be empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: stat root: %v", errdefs.ErrLocalIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root is not a directory: %s", errdefs.ErrLocalIO, root)
	}
	return &Backend{Root: root}, nil
}

// ArchivePath returns the path of a volume's archive.
func (b *Backend) ArchivePath(volume string) string {
	return filepath.Join(b.Root, target.ArchiveName(volume))
}

// Create opens the volume's archive for writing, truncating any previous
// content.
func (b *Backend) Create(volume string) (*os.File, error) {
	f, err := os.OpenFile(b.ArchivePath(volume), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
	}
	return f, nil
}

// Existing returns the file names of archives already present for volumes.
func (b *Backend) Existing(volumes []string) []string {
	var out []string
	for _, v := range volumes {
		if _, err := os.Stat(b.ArchivePath(v)); err == nil {
			out = append(out, target.ArchiveName(v))
		}
	}
	return out
}

func (b *Backend) List() ([]backend.Entry, error) {
	dirEntries, err := os.ReadDir(b.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
	}
	sums, err := b.ReadChecksums()
	if err != nil {
		return nil, err
	}
	var entries []backend.Entry
	for _, de := range dirEntries {
		name := de.Name()
		// skip hidden
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, target.ArchiveSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
		}
		entries = append(entries, backend.Entry{
			Volume:  strings.TrimSuffix(name, target.ArchiveSuffix),
			File:    name,
			Path:    filepath.Join(b.Root, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			SHA256:  sums[name],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Volume < entries[j].Volume })
	return entries, nil
}

// Remove deletes the named archive files and drops them from the ledger.
// Files already gone are ignored.
func (b *Backend) Remove(files []string) error {
	if len(files) == 0 {
		return nil
	}
	sums, err := b.ReadChecksums()
	if err != nil {
		return err
	}
	for _, name := range files {
		if filepath.Base(name) != name || !strings.HasSuffix(name, target.ArchiveSuffix) {
			return fmt.Errorf("%w: refusing to remove %q", errdefs.ErrLocalIO, name)
		}
		if err := os.Remove(filepath.Join(b.Root, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
		}
		delete(sums, name)
	}
	return b.WriteChecksums(sums)
}

// ReadChecksums parses the ledger. A missing ledger yields an empty map.
func (b *Backend) ReadChecksums() (map[string]string, error) {
	sums := map[string]string{}
	f, err := os.Open(filepath.Join(b.Root, ChecksumsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return sums, nil
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Expect format: <sha256>  <filename>
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}
		sums[parts[1]] = strings.ToLower(parts[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errdefs.ErrLocalIO, ChecksumsFile, err)
	}
	return sums, nil
}

// MergeChecksums records updated sums on top of the existing ledger and
// rewrites it sorted by file name.
func (b *Backend) MergeChecksums(updated map[string]string) error {
	if len(updated) == 0 {
		return nil
	}
	sums, err := b.ReadChecksums()
	if err != nil {
		return err
	}
	for k, v := range updated {
		sums[k] = v
	}
	return b.WriteChecksums(sums)
}

// WriteChecksums replaces the ledger.
func (b *Backend) WriteChecksums(sums map[string]string) error {
	files := make([]string, 0, len(sums))
	for name := range sums {
		files = append(files, name)
	}
	sort.Strings(files)
	var sb strings.Builder
	for _, name := range files {
		fmt.Fprintf(&sb, "%s  %s\n", sums[name], name)
	}
	if err := os.WriteFile(filepath.Join(b.Root, ChecksumsFile), []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errdefs.ErrLocalIO, ChecksumsFile, err)
	}
	return nil
}
