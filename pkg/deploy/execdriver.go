package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/andrej220/formation/internal/lg"
)

// Target is the local command that performs one kind of operation.
type Target struct {
	Command string   `yaml:"command" json:"command" bson:"command"`
	Args    []string `yaml:"args" json:"args" bson:"args"`
}

// Profile names the network and node targets of one cloud.
type Profile struct {
	Network Target `yaml:"network" json:"network" bson:"network"`
	Node    Target `yaml:"node" json:"node" bson:"node"`
}

// Request is written as JSON to the target's stdin.
type Request struct {
	Cloud  Cloud  `json:"cloud"`
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

// ExecDriver deploys by running the profile's command for each operation.
type ExecDriver struct {
	Cloud   Cloud
	Profile Profile
	Logger  lg.Logger
}

var _ Driver = (*ExecDriver)(nil)

func (d *ExecDriver) DeployNetwork(ctx context.Context, params Params) error {
	return d.run(ctx, d.Profile.Network, KindNetwork, params)
}

func (d *ExecDriver) DeployNode(ctx context.Context, params Params) error {
	return d.run(ctx, d.Profile.Node, KindNode, params)
}

func (d *ExecDriver) run(ctx context.Context, target Target, kind Kind, params Params) error {
	if target.Command == "" {
		return fmt.Errorf("%s: no %s command configured", d.Cloud, kind)
	}
	payload, err := json.Marshal(Request{Cloud: d.Cloud, Kind: kind, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", kind, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	// a started driver is never killed; it runs to completion or failure
	// #nosec G204 -- command comes from the operator's driver profile
	cmd := exec.Command(target.Command, target.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s driver %s: %w: %s", d.Cloud, kind, target.Command, err, strings.TrimSpace(stderr.String()))
	}
	if d.Logger != nil && stdout.Len() > 0 {
		d.Logger.Debug("driver output", lg.String("cloud", string(d.Cloud)), lg.String("kind", string(kind)),
			lg.String("output", strings.TrimSpace(stdout.String())))
	}
	return nil
}

// RegisterProfiles builds an ExecDriver for every profile and registers it.
func RegisterProfiles(r *Registry, profiles map[Cloud]Profile, logger lg.Logger) error {
	for cloud, p := range profiles {
		if err := r.Register(cloud, &ExecDriver{Cloud: cloud, Profile: p, Logger: logger}); err != nil {
			return err
		}
	}
	return nil
}
