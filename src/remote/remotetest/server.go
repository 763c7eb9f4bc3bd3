// Package remotetest runs an in-process SSH server that executes commands
// through a Go handler. It is used by tests of the remote session and of the
// code built on top of it.
package remotetest

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Handler runs one exec request and returns its exit status. ctx is
// canceled when the server shuts down.
type Handler func(ctx context.Context, command string, stdout, stderr io.Writer) int

// Server is a minimal SSH server supporting password and public-key auth and
// "exec" session requests.
type Server struct {
	Host string
	Port uint16
	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	user       string
	password   string
	authorized ssh.PublicKey
	handler    Handler

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conns    []net.Conn
	commands []string
	attempts []string
}

// Option configures a Server.
type Option func(*Server)

// WithUser sets the only user allowed to log in (default "backup").
func WithUser(user string) Option { return func(s *Server) { s.user = user } }

// WithPassword enables password authentication.
func WithPassword(pw string) Option { return func(s *Server) { s.password = pw } }

// WithAuthorizedKey enables public-key authentication for key.
func WithAuthorizedKey(key ssh.PublicKey) Option { return func(s *Server) { s.authorized = key } }

// WithHandler sets the exec handler.
func WithHandler(h Handler) Option { return func(s *Server) { s.handler = h } }

// NewServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		user: "backup",
		handler: func(context.Context, string, io.Writer, io.Writer) int {
			return 0
		},
	}
	for _, o := range opts {
		o(s)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	s.HostKey = hostSigner.PublicKey()

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			s.recordAttempt("password")
			if s.password != "" && c.User() == s.user && string(pw) == s.password {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			s.recordAttempt("publickey")
			if s.authorized != nil && c.User() == s.user && bytes.Equal(key.Marshal(), s.authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("key rejected")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.ln = ln
	addr := ln.Addr().(*net.TCPAddr)
	s.Host = addr.IP.String()
	s.Port = uint16(addr.Port)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.serve(cfg)
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Commands returns every command received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// AuthAttempts returns the auth methods clients tried, in order.
func (s *Server) AuthAttempts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attempts...)
}

// DropConnections closes every accepted connection without closing the
// listener.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Close stops the server.
func (s *Server) Close() {
	s.cancel()
	_ = s.ln.Close()
	s.DropConnections()
}

func (s *Server) recordAttempt(method string) {
	s.mu.Lock()
	s.attempts = append(s.attempts, method)
	s.mu.Unlock()
}

func (s *Server) serve(cfg *ssh.ServerConfig) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handleConn(conn, cfg)
	}
}

func (s *Server) handleConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)
	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, creqs, err := nc.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, creqs)
	}
}

type execPayload struct {
	Command string
}

type exitStatusPayload struct {
	Status uint32
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var p execPayload
		if err := ssh.Unmarshal(req.Payload, &p); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)
		s.mu.Lock()
		s.commands = append(s.commands, p.Command)
		s.mu.Unlock()

		status := s.handler(s.ctx, p.Command, ch, ch.Stderr())
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusPayload{Status: uint32(status)}))
		go ssh.DiscardRequests(reqs)
		return
	}
}

// Key is a generated client key pair.
type Key struct {
	PEM    []byte
	Public ssh.PublicKey
}

// RSAKey generates a PKCS#1 "RSA PRIVATE KEY" PEM.
func RSAKey(t testing.TB) Key {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	pub, err := ssh.NewPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatalf("rsa public key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}
	return Key{PEM: pem.EncodeToMemory(block), Public: pub}
}

// Ed25519Key generates an OpenSSH private key, encrypted when passphrase is
// not empty.
func Ed25519Key(t testing.TB, passphrase string) Key {
	t.Helper()
	pubRaw, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	pub, err := ssh.NewPublicKey(pubRaw)
	if err != nil {
		t.Fatalf("ed25519 public key: %v", err)
	}
	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("marshal ed25519 key: %v", err)
	}
	return Key{PEM: pem.EncodeToMemory(block), Public: pub}
}
