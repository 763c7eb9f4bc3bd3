package credential

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"oci-volume-backup/src/errdefs"
)

// DefaultKeyPath is used when neither a password nor a key path is given.
const DefaultKeyPath = "~/.ssh/id_rsa.pem"

// Kind tags the active Credential variant.
type Kind int

const (
	Password Kind = iota + 1
	KeyPair
)

func (k Kind) String() string {
	switch k {
	case Password:
		return "password"
	case KeyPair:
		return "key-pair"
	}
	return "unknown"
}

// Algorithm identifies the key family of a KeyPair credential.
type Algorithm string

const (
	AlgorithmRSA     Algorithm = "rsa"
	AlgorithmECDSA   Algorithm = "ecdsa"
	AlgorithmEd25519 Algorithm = "ed25519"
)

// Credential is either a password or a private key. Exactly one of the
// variant fields is meaningful, selected by Kind.
type Credential struct {
	User string
	Kind Kind

	Password string

	// PEM is the raw private key text read from KeyPath.
	PEM        []byte
	KeyPath    string
	Passphrase string
	Algorithm  Algorithm
}

// Options are the user-supplied authentication settings.
type Options struct {
	User       string
	Password   string
	KeyPath    string
	Passphrase string
}

// Resolver turns Options into a Credential. ReadFile is swappable for tests.
type Resolver struct {
	ReadFile func(path string) ([]byte, error)
	Expand   func(path string) (string, error)
}

// DefaultResolver reads keys from disk and expands "~" with go-homedir.
var DefaultResolver = Resolver{ReadFile: os.ReadFile, Expand: homedir.Expand}

// Resolve selects the credential. A password wins over a key path, and in
// that case the key file is never read.
func Resolve(opts Options) (Credential, error) {
	return DefaultResolver.Resolve(opts)
}

func (r Resolver) Resolve(opts Options) (Credential, error) {
	if strings.TrimSpace(opts.User) == "" {
		return Credential{}, fmt.Errorf("%w: user must not be empty", errdefs.ErrConfiguration)
	}
	if opts.Password != "" {
		return Credential{User: opts.User, Kind: Password, Password: opts.Password}, nil
	}

	path := opts.KeyPath
	if path == "" {
		path = DefaultKeyPath
	}
	expanded, err := r.Expand(path)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: resolve key path %q: %v", errdefs.ErrConfiguration, path, err)
	}
	pem, err := r.ReadFile(expanded)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: read private key %s: %v", errdefs.ErrConfiguration, expanded, err)
	}
	c := Credential{User: opts.User, Kind: KeyPair, PEM: pem, KeyPath: expanded, Passphrase: opts.Passphrase}
	signer, err := c.Signer()
	if err != nil {
		return Credential{}, err
	}
	c.Algorithm = algorithmOf(signer.PublicKey().Type())
	return c, nil
}

// Signer parses the PEM material of a KeyPair credential.
func (c Credential) Signer() (ssh.Signer, error) {
	if c.Kind != KeyPair {
		return nil, fmt.Errorf("%w: credential is not a key pair", errdefs.ErrConfiguration)
	}
	var (
		signer ssh.Signer
		err    error
	)
	if c.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(c.PEM, []byte(c.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(c.PEM)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: private key %s is encrypted, pass --key-passphrase", errdefs.ErrConfiguration, c.KeyPath)
		}
		return nil, fmt.Errorf("%w: parse private key %s: %v", errdefs.ErrConfiguration, c.KeyPath, err)
	}
	return signer, nil
}

func algorithmOf(keyType string) Algorithm {
	switch {
	case keyType == ssh.KeyAlgoRSA:
		return AlgorithmRSA
	case keyType == ssh.KeyAlgoED25519:
		return AlgorithmEd25519
	case strings.HasPrefix(keyType, "ecdsa-"):
		return AlgorithmECDSA
	}
	return Algorithm(keyType)
}

// Describe renders the credential without secret material.
func (c Credential) Describe() string {
	switch c.Kind {
	case Password:
		return fmt.Sprintf("%s (password)", c.User)
	case KeyPair:
		return fmt.Sprintf("%s (%s key %s)", c.User, c.Algorithm, c.KeyPath)
	}
	return c.User
}

// PromptPassword reads a password from the terminal without echo.
func PromptPassword(in *os.File, out io.Writer, user string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: --ask-password needs an interactive terminal", errdefs.ErrConfiguration)
	}
	fmt.Fprintf(out, "Password for %s: ", user)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("%w: read password: %v", errdefs.ErrConfiguration, err)
	}
	return string(b), nil
}
