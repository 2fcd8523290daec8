package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/formation/pkg/deploy"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

const formationYAML = `
inventory:
  file: inventory.yaml
plan:
  file: plan.yaml
project:
  file: project.yaml
profiles:
  aws:
    network:
      command: /usr/local/bin/aws-driver
      args: [network]
    node:
      command: /usr/local/bin/aws-driver
      args: [node]
workers:
  provision: 4
probe:
  max_attempts: 10
  base_delay: 250ms
vars:
  CLUSTER_NAME: demo
events:
  brokers: [localhost:9092]
  topic: formation.phases
`

const inventoryYAML = `
username: admin
ssh_key: /keys/id_ed25519
working_dir: /tmp/run
nodes:
  - name: n1
    public_ip: 192.0.2.1
    private_ip: 10.0.0.1
    zone: us-east-1a
  - name: n2
    public_ip: 192.0.2.2
    private_ip: 10.0.0.2
    zone: us-east-1b
`

const planYAML = `
pre_install:
  - sudo apt-get update
install:
  - echo {{ PRIVATE_IP_LIST }}
`

const projectYAML = `
name: demo
networks:
  - cloud: aws
    name: vpc-a
services:
  - name: db
    groups:
      - cloud: aws
        group: 1
        quantity: 3
        params:
          machine_type: 8x32
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0600))
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		CONFIGFILENAME:   formationYAML,
		"inventory.yaml": inventoryYAML,
		"plan.yaml":      planYAML,
		"project.yaml":   projectYAML,
	})

	cfg, err := Load(filepath.Join(dir, CONFIGFILENAME))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "inventory.yaml"), cfg.Inventory.File)
	assert.Equal(t, 4, cfg.Workers.Provision)
	assert.Equal(t, 10, cfg.Workers.Deploy, "unset values keep their defaults")
	assert.Equal(t, 10, cfg.Probe.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Probe.BaseDelay)
	assert.Equal(t, 22, cfg.Probe.Port)
	assert.Equal(t, []string{"node"}, cfg.Profiles[deploy.CloudAWS].Node.Args)

	pc := cfg.ProvisionConfig()
	assert.Equal(t, 4, pc.MaxWorkers)
	assert.Equal(t, "demo", pc.Vars["CLUSTER_NAME"])
	assert.Equal(t, "formation.phases", pc.Events.Topic)

	nodes, err := cfg.LoadInventory()
	require.NoError(t, err)
	require.Len(t, nodes.Nodes, 2)
	assert.Equal(t, "10.0.0.1,10.0.0.2", nodes.PrivateIPCSV())
	assert.Equal(t, dm.Credentials{Username: "admin", KeyFile: "/keys/id_ed25519"}, nodes.Credentials())

	plan, err := cfg.LoadPlan()
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo apt-get update"}, plan.PreInstall)
	assert.Empty(t, plan.PostInstall)

	project, err := cfg.LoadProject()
	require.NoError(t, err)
	assert.Len(t, project.NodeOperations(), 3)
	assert.Len(t, project.NetworkOperations(), 1)
}

func TestLoad_InvalidDocuments(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		CONFIGFILENAME:   formationYAML,
		"inventory.yaml": "username: admin\nnodes: []\n",
		"plan.yaml":      planYAML,
		"project.yaml":   "name: demo\nnetworks:\n  - cloud: oracle\n",
	})
	cfg, err := Load(filepath.Join(dir, CONFIGFILENAME))
	require.NoError(t, err)

	_, err = cfg.LoadInventory()
	assert.ErrorContains(t, err, "inventory")

	_, err = cfg.LoadProject()
	assert.ErrorContains(t, err, "project")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), CONFIGFILENAME))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(StoreType(42), nil)
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	_, err = NewStore(FileStore, &MongoConfig{})
	assert.Error(t, err)

	_, err = NewStore(MongoStore, &FileConfig{})
	assert.Error(t, err)

	store, err := NewStore(FileStore, &FileConfig{Path: filepath.Join(t.TempDir(), "x.yaml")})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestSource_Open(t *testing.T) {
	_, err := Source{}.Open()
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	err = LoadFrom(Source{}, &dm.NodeList{})
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestSnapshotInventory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		CONFIGFILENAME:   formationYAML + "report_history: 3\n",
		"inventory.yaml": inventoryYAML,
		"plan.yaml":      planYAML,
		"project.yaml":   projectYAML,
	})
	cfg, err := Load(filepath.Join(dir, CONFIGFILENAME))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ProvisionConfig().ReportHistory)

	nodes, err := cfg.LoadInventory()
	require.NoError(t, err)
	workDir := t.TempDir()
	nodes.WorkingDir = workDir
	require.NoError(t, cfg.SnapshotInventory(nodes))

	// the snapshot reads back as the same inventory
	back := &dm.NodeList{}
	require.NoError(t, LoadFrom(Source{File: filepath.Join(workDir, SnapshotFile)}, back))
	assert.Equal(t, nodes, back)

	nodes.WorkingDir = ""
	require.NoError(t, cfg.SnapshotInventory(nodes))
}

func TestSnapshotInventory_ConfiguredSource(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		CONFIGFILENAME: "inventory:\n  file: inventory.yaml\nsnapshot:\n  file: snapshots/last.yaml\n",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "snapshots"), 0700))
	cfg, err := Load(filepath.Join(dir, CONFIGFILENAME))
	require.NoError(t, err)
	require.NotNil(t, cfg.Snapshot)
	assert.Equal(t, filepath.Join(dir, "snapshots", "last.yaml"), cfg.Snapshot.File)

	nodes := &dm.NodeList{Username: "admin", SSHKey: "/k", Nodes: []dm.NodeEntry{{Name: "n1", PublicIP: "192.0.2.1"}}}
	require.NoError(t, cfg.SnapshotInventory(nodes))
	assert.FileExists(t, cfg.Snapshot.File)

	cfg.Snapshot = &Source{}
	assert.ErrorIs(t, cfg.SnapshotInventory(nodes), ErrInvalidStoreType)
}
