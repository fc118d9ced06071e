package session

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// SSHOpener opens sessions over SSH. Every command runs on its own exec
// channel, so no prompt detection or paging control is needed.
type SSHOpener struct{}

// NewSSHOpener creates a new SSH opener
func NewSSHOpener() *SSHOpener {
	return &SSHOpener{}
}

// Open dials the target and authenticates with password or
// keyboard-interactive auth.
func (o *SSHOpener) Open(ctx context.Context, target Target) (Session, error) {
	addr := target.Address()

	hostKeyCallback, err := hostKeyCallback(target)
	if err != nil {
		return nil, cwerrors.ConnectionError(addr, err)
	}

	timeout := target.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	config := &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(target.Password),
			ssh.KeyboardInteractive(passwordChallenge(target.Password)),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, cwerrors.ConnectionError(addr, err)
	}

	// bound the handshake; cleared once the client is up
	_ = conn.SetDeadline(time.Now().Add(timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, cwerrors.ConnectionError(addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	commandTimeout := target.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}

	return &sshSession{
		client:  ssh.NewClient(c, chans, reqs),
		timeout: commandTimeout,
	}, nil
}

func hostKeyCallback(target Target) (ssh.HostKeyCallback, error) {
	if target.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if target.KnownHostsFile == "" {
		return nil, fmt.Errorf("no known_hosts file configured and host key checking is enabled")
	}
	cb, err := knownhosts.New(target.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load knownhosts %s: %w", target.KnownHostsFile, err)
	}
	return cb, nil
}

func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}
}

type sshSession struct {
	client  *ssh.Client
	timeout time.Duration
}

// Execute runs command on a fresh exec channel
func (s *sshSession) Execute(ctx context.Context, command string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", cwerrors.CommandError(command, err)
	}
	defer sess.Close()

	var out bytes.Buffer
	sess.Stdout = &out
	sess.Stderr = &out

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(command)
	}()

	select {
	case err := <-done:
		if err != nil {
			return out.String(), cwerrors.CommandError(command, err)
		}
		return out.String(), nil
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		sess.Close()
		return "", cwerrors.CommandError(command, ctx.Err())
	}
}

// Close closes the underlying SSH connection
func (s *sshSession) Close() error {
	return s.client.Close()
}
