package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"oci-volume-backup/src/credential"
	"oci-volume-backup/src/engine"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/remote"
	"oci-volume-backup/src/target"
)

// connFlags are the flags shared by every command that talks to the remote
// host.
type connFlags struct {
	host           string
	user           string
	port           uint16
	engine         engine.Engine
	password       string
	askPassword    bool
	keyPath        string
	keyPassphrase  string
	knownHosts     []string
	connectTimeout time.Duration
	commandTimeout time.Duration
	remotePrefix   string
}

func (f *connFlags) register(fs *pflag.FlagSet) {
	f.engine = engine.Podman
	fs.StringVar(&f.host, "host", "", "Remote host name or address (required)")
	fs.StringVarP(&f.user, "user", "u", "", "SSH user name (required)")
	fs.Uint16VarP(&f.port, "port", "p", target.DefaultPort, "SSH port")
	fs.VarP(&f.engine, "engine", "e", "Container engine on the remote host: podman|docker")
	fs.StringVarP(&f.password, "password", "P", "", "SSH password; when empty a private key is used")
	fs.BoolVar(&f.askPassword, "ask-password", false, "Prompt for the SSH password")
	fs.StringVarP(&f.keyPath, "key-path", "k", credential.DefaultKeyPath, "PEM private key used when no password is given")
	fs.StringVar(&f.keyPassphrase, "key-passphrase", "", "Passphrase of an encrypted private key")
	fs.StringSliceVar(&f.knownHosts, "known-hosts", nil, "known_hosts file(s) used to verify the host key (default: accept any key)")
	fs.DurationVar(&f.connectTimeout, "connect-timeout", remote.DefaultConnectTimeout, "Timeout for connecting and authenticating")
	fs.DurationVar(&f.commandTimeout, "command-timeout", 0, "Timeout for each remote command (0 means none)")
	fs.StringVar(&f.remotePrefix, "remote-prefix", "", "Words placed before the engine command, e.g. 'sudo -n'")
}

func (f *connFlags) validate() error {
	if f.host == "" {
		return fmt.Errorf("%w: --host is required", errdefs.ErrConfiguration)
	}
	if f.user == "" {
		return fmt.Errorf("%w: --user is required", errdefs.ErrConfiguration)
	}
	return nil
}

// connection is an authenticated session plus the command builder for the
// selected engine.
type connection struct {
	session  *remote.Session
	runner   remote.Commander
	commands engine.Commands
}

func (c *connection) Close() error { return c.session.Close() }

// connect resolves the credential and opens the session. stdin is only read
// for --ask-password.
func (f *connFlags) connect(ctx context.Context, st *rootState, stdin io.Reader, ignoreExitStatus bool) (*connection, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	ep, err := target.NewEndpoint(f.host, f.port)
	if err != nil {
		return nil, err
	}
	cmds, err := engine.NewCommands(f.engine, f.remotePrefix)
	if err != nil {
		return nil, err
	}

	password := f.password
	if f.askPassword && password == "" {
		in, ok := stdin.(*os.File)
		if !ok {
			return nil, fmt.Errorf("%w: --ask-password needs an interactive terminal", errdefs.ErrConfiguration)
		}
		if password, err = credential.PromptPassword(in, st.stderr, f.user); err != nil {
			return nil, err
		}
	}
	cred, err := credential.Resolve(credential.Options{
		User:       f.user,
		Password:   password,
		KeyPath:    f.keyPath,
		Passphrase: f.keyPassphrase,
	})
	if err != nil {
		return nil, err
	}

	sess := remote.NewSession(st.logger)
	sess.ConnectTimeout = f.connectTimeout
	if len(f.knownHosts) > 0 {
		cb, err := remote.KnownHosts(f.knownHosts...)
		if err != nil {
			return nil, err
		}
		sess.HostKeys = cb
	}
	if err := sess.ConfigureAuthentication(cred); err != nil {
		return nil, err
	}
	st.logger.Info().Str("endpoint", ep.String()).Str("credential", cred.Describe()).Str("engine", f.engine.String()).Msg("Connecting")
	if err := sess.Connect(ctx, ep); err != nil {
		return nil, err
	}
	return &connection{
		session: sess,
		runner: remote.Commander{
			Session:  sess,
			Executor: remote.Executor{Logger: st.logger, IgnoreExitStatus: ignoreExitStatus},
			Timeout:  f.commandTimeout,
		},
		commands: cmds,
	}, nil
}
