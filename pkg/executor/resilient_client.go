package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"

	dm "github.com/andrej220/formation/pkg/shared-models"
)

const (
	defaultSSHPort     = 22
	defaultDialTimeout = 10 * time.Second
)

// SSHConnector dials hosts with key-file authentication.
type SSHConnector struct {
	Port        int
	DialTimeout time.Duration
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey; hosts are freshly created machines.
	HostKeyCallback ssh.HostKeyCallback
	// BreakerSettings configures the per-host breaker guarding the handshake
	// and every session open. Name is set per host.
	BreakerSettings gobreaker.Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ Connector = (*SSHConnector)(nil)

// DefaultBreakerSettings trips after repeated connect or session-open failures on one host.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
}

func NewSSHConnector(port int) *SSHConnector {
	return &SSHConnector{
		Port:            port,
		DialTimeout:     defaultDialTimeout,
		BreakerSettings: DefaultBreakerSettings(),
	}
}

func (c *SSHConnector) Connect(ctx context.Context, address string, creds dm.Credentials) (Session, error) {
	auth, err := publicKeyAuth(creds.KeyFile)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := c.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // ephemeral infrastructure
	}
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	port := c.Port
	if port <= 0 {
		port = defaultSSHPort
	}

	config := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}

	target := net.JoinHostPort(address, strconv.Itoa(port))
	cb := c.breaker(address)
	res, err := cb.Execute(func() (any, error) {
		dialer := &net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", target, err)
		}
		sshConn, chans, reqs, err := ssh.NewClientConn(conn, target, config)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("ssh handshake with %s as %s: %w", target, creds.Username, err)
		}
		return ssh.NewClient(sshConn, chans, reqs), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("connect %s: %w", target, err)
		}
		return nil, err
	}
	return &sshSession{client: res.(*ssh.Client), cb: cb}, nil
}

// breaker returns the circuit breaker of address, shared by every
// connection to that host for the lifetime of the connector.
func (c *SSHConnector) breaker(address string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.breakers == nil {
		c.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	cb, ok := c.breakers[address]
	if !ok {
		settings := c.BreakerSettings
		if settings.ReadyToTrip == nil {
			settings = DefaultBreakerSettings()
		}
		settings.Name = "ssh-" + address
		cb = gobreaker.NewCircuitBreaker(settings)
		c.breakers[address] = cb
	}
	return cb
}

// BreakerState reports the breaker state of address.
func (c *SSHConnector) BreakerState(address string) gobreaker.State {
	return c.breaker(address).State()
}

// sshSession holds one client connection; each command gets its own channel session.
type sshSession struct {
	client *ssh.Client
	cb     *gobreaker.CircuitBreaker
}

func (s *sshSession) Run(command string) ([]byte, int, error) {
	res, err := s.cb.Execute(func() (any, error) {
		return s.client.NewSession()
	})
	if err != nil {
		return nil, -1, fmt.Errorf("new session: %w", err)
	}
	sess := res.(*ssh.Session)
	defer sess.Close()

	output, err := sess.CombinedOutput(command)
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return output, exitErr.ExitStatus(), nil
		}
		return output, -1, fmt.Errorf("run command: %w", err)
	}
	return output, 0, nil
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

func publicKeyAuth(privateKeyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}
