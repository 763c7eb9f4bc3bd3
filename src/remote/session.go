// Package remote owns the SSH connection to the engine host and runs one-shot
// commands over it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"oci-volume-backup/src/credential"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/target"
)

// DefaultConnectTimeout bounds dial plus handshake.
const DefaultConnectTimeout = 30 * time.Second

// DialFunc opens the transport connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Session is one authenticated SSH connection. It is not safe for concurrent
// use; commands are run one after another.
type Session struct {
	Logger         zerolog.Logger
	HostKeys       ssh.HostKeyCallback
	ConnectTimeout time.Duration
	Dial           DialFunc

	user       string
	auth       []ssh.AuthMethod
	configured bool
	client     *ssh.Client
	endpoint   target.Endpoint
}

// NewSession returns an unconfigured session. Host keys are accepted without
// verification unless HostKeys is set (see KnownHosts).
func NewSession(logger zerolog.Logger) *Session {
	return &Session{Logger: logger, ConnectTimeout: DefaultConnectTimeout}
}

// KnownHosts returns a callback verifying host keys against OpenSSH
// known_hosts files.
func KnownHosts(files ...string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("%w: load known hosts: %v", errdefs.ErrConfiguration, err)
	}
	return cb, nil
}

// ConfigureAuthentication records the credential used by Connect. It does no
// I/O and must be called exactly once.
func (s *Session) ConfigureAuthentication(c credential.Credential) error {
	if s.configured {
		return fmt.Errorf("%w: authentication already configured", errdefs.ErrConfiguration)
	}
	switch c.Kind {
	case credential.Password:
		s.auth = []ssh.AuthMethod{ssh.Password(c.Password)}
	case credential.KeyPair:
		signer, err := c.Signer()
		if err != nil {
			return err
		}
		s.auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		return fmt.Errorf("%w: no credential configured", errdefs.ErrConfiguration)
	}
	s.user = c.User
	s.configured = true
	return nil
}

// Connect dials the endpoint and authenticates. Failures wrap ErrConnection
// or ErrAuthentication.
func (s *Session) Connect(ctx context.Context, ep target.Endpoint) error {
	if !s.configured {
		return fmt.Errorf("%w: authentication not configured", errdefs.ErrConfiguration)
	}
	if s.client != nil {
		return fmt.Errorf("%w: session already connected to %s", errdefs.ErrConnection, s.endpoint)
	}
	hostKeys := s.HostKeys
	if hostKeys == nil {
		s.Logger.Warn().Str("host", ep.Host).Msg("Host key verification disabled, pass --known-hosts to enable it")
		hostKeys = ssh.InsecureIgnoreHostKey()
	}
	timeout := s.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	cfg := &ssh.ClientConfig{
		User:            s.user,
		Auth:            s.auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	dial := s.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	addr := ep.String()
	conn, err := dial(dctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", errdefs.ErrConnection, addr, err)
	}
	if deadline, ok := dctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		if isAuthFailure(err) {
			return fmt.Errorf("%w: %s@%s: %v", errdefs.ErrAuthentication, s.user, addr, err)
		}
		return fmt.Errorf("%w: handshake with %s: %v", errdefs.ErrConnection, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	s.client = ssh.NewClient(cc, chans, reqs)
	s.endpoint = ep
	// The key material is no longer needed once authenticated.
	s.auth = nil
	s.Logger.Debug().Str("endpoint", addr).Str("user", s.user).Msg("Connected")
	return nil
}

// isAuthFailure recognizes x/crypto/ssh's client-side auth rejection, which
// has no exported error type.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

// Channel is a one-shot command execution channel.
type Channel struct {
	s *ssh.Session
}

// OpenChannel opens a fresh execution channel. Channels are never reused.
func (s *Session) OpenChannel() (*Channel, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: session is not connected", errdefs.ErrChannel)
	}
	ss, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open channel on %s: %v", errdefs.ErrChannel, s.endpoint, err)
	}
	return &Channel{s: ss}, nil
}

// Close closes the channel. It is safe to call more than once.
func (c *Channel) Close() error {
	if err := c.s.Close(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Endpoint returns the endpoint the session is connected to.
func (s *Session) Endpoint() target.Endpoint { return s.endpoint }

// Close tears down the connection.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
