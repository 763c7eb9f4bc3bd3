package target

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"oci-volume-backup/src/errdefs"
)

// DefaultPort is the SSH port used when none is given.
const DefaultPort uint16 = 22

// Endpoint is the remote host a session connects to.
type Endpoint struct {
	Host string
	Port uint16
}

// NewEndpoint builds an Endpoint. A zero port selects DefaultPort.
func NewEndpoint(host string, port uint16) (Endpoint, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: host must not be empty", errdefs.ErrConfiguration)
	}
	// Accept "[::1]" as well as "::1".
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if port == 0 {
		port = DefaultPort
	}
	return Endpoint{Host: host, Port: port}, nil
}

// ParseEndpoint parses "host" or "host:port".
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: endpoint must not be empty", errdefs.ErrConfiguration)
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port part.
		return NewEndpoint(s, 0)
	}
	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: invalid port in %q", errdefs.ErrConfiguration, raw)
	}
	return NewEndpoint(host, uint16(p))
}

// String renders host:port for dialing.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Destination is the local directory archives are written to.
type Destination struct {
	// Raw is the value as given by the user.
	Raw string
	// Dir is the cleaned absolute path.
	Dir string
}

// ParseDestination cleans and absolutizes a directory path. An empty path
// means the current directory.
func ParseDestination(raw string) (Destination, error) {
	d := Destination{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		s = "."
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return d, fmt.Errorf("%w: resolve target dir %q: %v", errdefs.ErrConfiguration, raw, err)
	}
	d.Dir = filepath.Clean(abs)
	return d, nil
}

// Ensure creates the directory if needed.
func (d Destination) Ensure() error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create target dir: %v", errdefs.ErrLocalIO, err)
	}
	return nil
}

// ArchivePath returns <dir>/<volume>.tar.gz.
func (d Destination) ArchivePath(volume string) string {
	return filepath.Join(d.Dir, ArchiveName(volume))
}

// ArchiveName returns the file name used for a volume's archive.
func ArchiveName(volume string) string {
	return volume + ArchiveSuffix
}

// ArchiveSuffix is appended to volume names to form archive file names.
const ArchiveSuffix = ".tar.gz"

func (d Destination) String() string {
	if d.Dir != "" {
		return d.Dir
	}
	return d.Raw
}
