// Package fakes provides in-memory stand-ins for the executor's network
// collaborators so provisioning can be tested without real hosts.
package fakes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/andrej220/formation/pkg/executor"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

// Prober reports a fixed reachability per address. Unknown addresses are reachable.
type Prober struct {
	mu          sync.Mutex
	Unreachable map[string]bool
	Probed      []string
}

func (p *Prober) WaitReady(_ context.Context, address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Probed = append(p.Probed, address)
	return !p.Unreachable[address]
}

// Shell simulates a tiny subset of a POSIX shell:
// "echo ARGS", "true", "false", "exit N" and "fail-transport".
func Shell(command string) ([]byte, int, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, 0, nil
	}
	switch fields[0] {
	case "echo":
		return []byte(strings.Join(fields[1:], " ") + "\n"), 0, nil
	case "true":
		return nil, 0, nil
	case "false":
		return nil, 1, nil
	case "exit":
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err == nil {
				return nil, n, nil
			}
		}
		return nil, 0, nil
	case "fail-transport":
		return nil, -1, errors.New("connection reset by peer")
	default:
		return []byte(fmt.Sprintf("sh: %s: command not found\n", fields[0])), 127, nil
	}
}

// Connector hands out sessions backed by Shell and records every command per host.
type Connector struct {
	mu         sync.Mutex
	ConnectErr map[string]error
	Connects   map[string]int
	Commands   map[string][]string
	// Panic makes Connect panic for the given address.
	Panic map[string]bool
}

var _ executor.Connector = (*Connector)(nil)

func NewConnector() *Connector {
	return &Connector{
		ConnectErr: make(map[string]error),
		Connects:   make(map[string]int),
		Commands:   make(map[string][]string),
		Panic:      make(map[string]bool),
	}
}

func (c *Connector) Connect(_ context.Context, address string, _ dm.Credentials) (executor.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Panic[address] {
		panic("connector exploded for " + address)
	}
	if err := c.ConnectErr[address]; err != nil {
		return nil, err
	}
	c.Connects[address]++
	return &session{host: address, owner: c}, nil
}

// Ran returns the commands executed on address so far.
func (c *Connector) Ran(address string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Commands[address]...)
}

// Sessions returns how many connections were opened in total.
func (c *Connector) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.Connects {
		total += n
	}
	return total
}

type session struct {
	host  string
	owner *Connector
}

func (s *session) Run(command string) ([]byte, int, error) {
	s.owner.mu.Lock()
	s.owner.Commands[s.host] = append(s.owner.Commands[s.host], command)
	s.owner.mu.Unlock()
	return Shell(command)
}

func (s *session) Close() error { return nil }
