package config

import (
	"fmt"
	"path/filepath"

	"github.com/andrej220/formation/pkg/deploy"
	"github.com/andrej220/formation/pkg/events"
	"github.com/andrej220/formation/pkg/netprobe"
	"github.com/andrej220/formation/pkg/provision"
	dm "github.com/andrej220/formation/pkg/shared-models"
	"github.com/andrej220/formation/pkg/workerpool"
)

const CONFIGFILENAME = "formation.yaml"

// SnapshotFile receives the validated inventory in the working directory
// when no snapshot source is configured.
const SnapshotFile = "inventory.snapshot.yaml"

type Workers struct {
	Deploy    int `yaml:"deploy" json:"deploy"`
	Provision int `yaml:"provision" json:"provision"`
}

// FormationConfig is the tool configuration. It points at the inventory,
// the provisioning plan and the deployment project, and carries tuning for
// the pools, the readiness probe and event publishing.
type FormationConfig struct {
	Inventory     Source                          `yaml:"inventory" json:"inventory"`
	Plan          Source                          `yaml:"plan" json:"plan"`
	Project       Source                          `yaml:"project" json:"project"`
	Snapshot      *Source                         `yaml:"snapshot" json:"snapshot"`
	Profiles      map[deploy.Cloud]deploy.Profile `yaml:"profiles" json:"profiles"`
	Workers       Workers                         `yaml:"workers" json:"workers"`
	Probe         netprobe.Config                 `yaml:"probe" json:"probe"`
	Vars          map[string]string               `yaml:"vars" json:"vars"`
	Events        events.Config                   `yaml:"events" json:"events"`
	ReportHistory int                             `yaml:"report_history" json:"report_history"`
}

func NewFormationConfig() *FormationConfig {
	return &FormationConfig{
		Workers: Workers{Deploy: workerpool.TotalMaxWorkers, Provision: workerpool.TotalMaxWorkers},
		Probe: netprobe.Config{
			Port:        netprobe.DefaultPort,
			MaxAttempts: netprobe.DefaultMaxAttempts,
			BaseDelay:   netprobe.DefaultBaseDelay,
			DialTimeout: netprobe.DefaultDialTimeout,
		},
	}
}

// Load reads the tool configuration from a YAML file. Relative file sources
// are resolved against the directory of path.
func Load(path string) (*FormationConfig, error) {
	cfg := NewFormationConfig()
	if err := LoadFrom(Source{File: path}, cfg); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	sources := []*Source{&cfg.Inventory, &cfg.Plan, &cfg.Project}
	if cfg.Snapshot != nil {
		sources = append(sources, cfg.Snapshot)
	}
	for _, s := range sources {
		if s.File != "" && !filepath.IsAbs(s.File) {
			s.File = filepath.Join(dir, s.File)
		}
	}
	return cfg, nil
}

// LoadInventory reads and validates the node inventory.
func (c *FormationConfig) LoadInventory() (*dm.NodeList, error) {
	nodes := &dm.NodeList{}
	if err := LoadFrom(c.Inventory, nodes); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	if err := nodes.Validate(); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return nodes, nil
}

// SnapshotInventory records the inventory a run was started with, either to
// the configured snapshot source or to SnapshotFile in the working
// directory. It does nothing when neither is available.
func (c *FormationConfig) SnapshotInventory(nodes *dm.NodeList) error {
	target := c.Snapshot
	if target == nil {
		if nodes.WorkingDir == "" {
			return nil
		}
		target = &Source{File: filepath.Join(nodes.WorkingDir, SnapshotFile)}
	}
	if err := SaveTo(*target, nodes); err != nil {
		return fmt.Errorf("inventory snapshot: %w", err)
	}
	return nil
}

func (c *FormationConfig) LoadPlan() (*provision.Plan, error) {
	plan := provision.NewPlan()
	if err := LoadFrom(c.Plan, plan); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return plan, nil
}

func (c *FormationConfig) LoadProject() (*deploy.Project, error) {
	project := &deploy.Project{}
	if err := LoadFrom(c.Project, project); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	return project, nil
}

// ProvisionConfig returns the provisioning settings.
func (c *FormationConfig) ProvisionConfig() provision.Config {
	return provision.Config{
		MaxWorkers:    c.Workers.Provision,
		Vars:          c.Vars,
		Events:        c.Events,
		ReportHistory: c.ReportHistory,
	}
}
