// Package netprobe waits for a TCP port on a remote host to accept connections.
//
// Provisioning of a freshly created machine cannot start before its SSH daemon
// is listening, so every remote session is gated on WaitReady.
package netprobe

import (
	"context"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/andrej220/formation/internal/lg"
)

const (
	DefaultPort        = 22
	DefaultMaxAttempts = 300
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultDialTimeout = 1 * time.Second
)

// Config tunes the probe. Zero values fall back to the defaults.
type Config struct {
	Port        int           `yaml:"port"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	// MaxDelay caps a single wait. Zero leaves the schedule uncapped.
	MaxDelay    time.Duration `yaml:"max_delay"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Option func(*Prober)

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(p *Prober) { p.dial = dial }
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Prober) { p.newTimer = newTimer }
}

func WithLogger(logger lg.Logger) Option {
	return func(p *Prober) { p.logger = logger }
}

// Prober checks TCP reachability with bounded exponential backoff.
// It keeps no state between WaitReady calls and is safe for concurrent use.
type Prober struct {
	cfg      Config
	dial     DialFunc
	newTimer func() backoff.Timer
	logger   lg.Logger
}

func New(cfg Config, opts ...Option) *Prober {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	p := &Prober{cfg: cfg, logger: lg.Discard}
	p.dial = (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schedule returns the delay sequence between attempts.
// Failed attempt k is followed by BaseDelay * 2^(k+1); the sequence stops
// after MaxAttempts-1 delays so that at most MaxAttempts dials are made.
func (p *Prober) Schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * p.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.cfg.MaxDelay > 0 {
		b.MaxInterval = p.cfg.MaxDelay
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1))
}

// WaitReady reports whether address:Port accepted a connection before the
// attempts ran out or ctx was cancelled.
func (p *Prober) WaitReady(ctx context.Context, address string) bool {
	target := net.JoinHostPort(address, strconv.Itoa(p.cfg.Port))

	probe := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
		defer cancel()
		conn, err := p.dial(dialCtx, "tcp", target)
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}

	notify := func(err error, next time.Duration) {
		p.logger.Info("waiting for host to become reachable",
			lg.String("address", target),
			lg.Duration("retry_in", next),
			lg.Err(err))
	}

	var timer backoff.Timer
	if p.newTimer != nil {
		timer = p.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(probe, backoff.WithContext(p.Schedule(), ctx), notify, timer)
	if err != nil {
		p.logger.Warn("host is not reachable", lg.String("address", target), lg.Err(err))
		return false
	}
	return true
}
