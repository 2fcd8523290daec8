package netprobe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantTimer fires immediately and records every requested wait.
type instantTimer struct {
	delays *[]time.Duration
	c      chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	*t.delays = append(*t.delays, d)
	t.c <- time.Now()
}
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func recordingTimer(delays *[]time.Duration) func() backoff.Timer {
	return func() backoff.Timer {
		return &instantTimer{delays: delays, c: make(chan time.Time, 1)}
	}
}

func failingDialer(calls *atomic.Int32) DialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}
}

func TestWaitReady_Unreachable(t *testing.T) {
	var calls atomic.Int32
	var delays []time.Duration
	p := New(Config{MaxAttempts: 6, BaseDelay: 10 * time.Millisecond},
		WithDialer(failingDialer(&calls)),
		WithTimer(recordingTimer(&delays)))

	assert.False(t, p.WaitReady(context.Background(), "192.0.2.1"))
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, []time.Duration{
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		160 * time.Millisecond,
		320 * time.Millisecond,
	}, delays)
}

func TestWaitReady_EventuallyReachable(t *testing.T) {
	var calls atomic.Int32
	var delays []time.Duration
	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}
	p := New(Config{MaxAttempts: 10}, WithDialer(dial), WithTimer(recordingTimer(&delays)))

	assert.True(t, p.WaitReady(context.Background(), "192.0.2.1"))
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, delays, 2)
}

func TestWaitReady_TargetAddress(t *testing.T) {
	var target string
	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		target = address
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}
	p := New(Config{Port: 2222}, WithDialer(dial))

	assert.True(t, p.WaitReady(context.Background(), "10.0.0.5"))
	assert.Equal(t, "10.0.0.5:2222", target)
}

func TestWaitReady_LocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	p := New(Config{Port: port, MaxAttempts: 3})
	assert.True(t, p.WaitReady(context.Background(), "127.0.0.1"))
}

func TestWaitReady_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Config{MaxAttempts: 50}, WithDialer(failingDialer(&calls)))
	assert.False(t, p.WaitReady(ctx, "192.0.2.1"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchedule_Monotonic(t *testing.T) {
	for _, attempts := range []int{1, 2, 10, 40} {
		p := New(Config{MaxAttempts: attempts, BaseDelay: time.Millisecond})
		b := p.Schedule()

		var delays []time.Duration
		for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
			delays = append(delays, next)
		}

		assert.Len(t, delays, attempts-1, "attempts=%d", attempts)
		for i := 1; i < len(delays); i++ {
			assert.Greater(t, delays[i], delays[i-1], "attempts=%d index=%d", attempts, i)
		}
	}
}

func TestSchedule_MaxDelay(t *testing.T) {
	p := New(Config{MaxAttempts: 8, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	b := p.Schedule()

	var last time.Duration
	for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
		assert.LessOrEqual(t, next, time.Second)
		last = next
	}
	assert.Equal(t, time.Second, last)
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, DefaultPort, p.cfg.Port)
	assert.Equal(t, DefaultMaxAttempts, p.cfg.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.cfg.BaseDelay)
	assert.Equal(t, DefaultDialTimeout, p.cfg.DialTimeout)
}
