// Package session opens command-line sessions on network devices.
package session

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Default timeouts used when a Target leaves them unset
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultCommandTimeout = 60 * time.Second
)

// Target identifies a device and the static credentials used to reach it.
type Target struct {
	Host                  string
	Port                  int
	Username              string
	Password              string
	ConnectTimeout        time.Duration
	CommandTimeout        time.Duration
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
}

// Address returns host:port
func (t Target) Address() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Session executes text commands on an open device session.
type Session interface {
	// Execute runs command and returns its output. Failures are CommandErrors.
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// Opener establishes sessions. Failures are ConnectionErrors.
type Opener interface {
	Open(ctx context.Context, target Target) (Session, error)
}
