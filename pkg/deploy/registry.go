package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrUnsupportedCloud = errors.New("cloud is not supported")

// Driver creates resources on one cloud.
type Driver interface {
	DeployNetwork(ctx context.Context, params Params) error
	DeployNode(ctx context.Context, params Params) error
}

// Registry maps cloud identifiers to drivers. Only the clouds in Clouds can
// be registered.
type Registry struct {
	mu      sync.RWMutex
	drivers map[Cloud]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[Cloud]Driver)}
}

func (r *Registry) Register(cloud Cloud, driver Driver) error {
	if !slices.Contains(Clouds, cloud) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCloud, cloud)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[cloud] = driver
	return nil
}

func (r *Registry) Lookup(cloud Cloud) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[cloud]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCloud, cloud)
	}
	return d, nil
}

// Invoke resolves the driver for op and calls the method for its kind.
func (r *Registry) Invoke(ctx context.Context, op Operation) error {
	d, err := r.Lookup(op.Cloud)
	if err != nil {
		return err
	}
	switch op.Kind {
	case KindNetwork:
		return d.DeployNetwork(ctx, op.Params())
	case KindNode:
		return d.DeployNode(ctx, op.Params())
	}
	return fmt.Errorf("unknown operation kind %q", op.Kind)
}
