package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"

	"oci-volume-backup/src/errdefs"
)

// Engine is the container engine driven on the remote host.
type Engine int

// The zero value is not a valid engine.
const (
	Podman Engine = iota + 1
	Docker
)

// Names lists the accepted command-line tokens.
var Names = []string{"podman", "docker"}

// ParseError is returned by Parse for unknown engine tokens.
type ParseError struct{ Value string }

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid engine %q, values are podman or docker", e.Value)
}

func (e *ParseError) Unwrap() error { return errdefs.ErrConfiguration }

// Parse maps the canonical lowercase token to an Engine. Matching is
// case-sensitive.
func Parse(s string) (Engine, error) {
	switch s {
	case "podman":
		return Podman, nil
	case "docker":
		return Docker, nil
	}
	return 0, &ParseError{Value: s}
}

// String returns the engine's command-line token.
func (e Engine) String() string {
	switch e {
	case Podman:
		return "podman"
	case Docker:
		return "docker"
	}
	return fmt.Sprintf("Engine(%d)", int(e))
}

// Valid reports whether e is one of the known engines.
func (e Engine) Valid() bool { return e == Podman || e == Docker }

// Set and Type let an Engine be used directly as a pflag value.
func (e *Engine) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

func (e *Engine) Type() string { return "engine" }

// volumeName matches the name grammar shared by podman and docker.
var volumeName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateVolumeName rejects names that could break out of the export
// command's quoting.
func ValidateVolumeName(name string) error {
	if !volumeName.MatchString(name) {
		return fmt.Errorf("%w: unsafe volume name %q", errdefs.ErrConfiguration, name)
	}
	return nil
}

// Commands builds the remote command strings for one engine.
type Commands struct {
	Engine Engine
	// Prefix is an already-quoted word list placed before the engine
	// invocation, e.g. "sudo -n".
	Prefix string
}

// NewCommands validates the engine and an optional raw prefix. The prefix is
// split with shell rules and re-quoted so that it always forms plain words.
func NewCommands(e Engine, rawPrefix string) (Commands, error) {
	if !e.Valid() {
		return Commands{}, fmt.Errorf("%w: unknown engine %v", errdefs.ErrConfiguration, e)
	}
	c := Commands{Engine: e}
	if strings.TrimSpace(rawPrefix) != "" {
		words, err := shellquote.Split(rawPrefix)
		if err != nil {
			return Commands{}, fmt.Errorf("%w: remote prefix %q: %v", errdefs.ErrConfiguration, rawPrefix, err)
		}
		c.Prefix = shellquote.Join(words...)
	}
	return c, nil
}

func (c Commands) engine() string {
	if c.Prefix == "" {
		return c.Engine.String()
	}
	return c.Prefix + " " + c.Engine.String()
}

// ListVolumes returns the listing command for local-driver volumes.
func (c Commands) ListVolumes() string {
	return c.engine() + " volume ls -f 'driver=local' --format '{{.Name}}'"
}

// ExportVolume returns the export-and-compress command for one volume.
func (c Commands) ExportVolume(name string) (string, error) {
	if !c.Engine.Valid() {
		return "", fmt.Errorf("%w: unknown engine %v", errdefs.ErrConfiguration, c.Engine)
	}
	if err := ValidateVolumeName(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s volume export \"%s\" | gzip", c.engine(), name), nil
}
