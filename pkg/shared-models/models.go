package datamodels

import (
	"strings"
)

// PhaseName tags a provisioning command phase.
type PhaseName string

const (
	PhasePreInstall  PhaseName = "pre-install"
	PhaseInstall     PhaseName = "install"
	PhasePostInstall PhaseName = "post-install"
)

// NodeEntry is one provisioned machine as seen by the remote provisioner.
type NodeEntry struct {
	Name         string `yaml:"name" json:"name" bson:"name" validate:"required"`
	PublicIP     string `yaml:"public_ip" json:"public_ip" bson:"public_ip" validate:"omitempty,ip"`
	PrivateIP    string `yaml:"private_ip" json:"private_ip" bson:"private_ip" validate:"omitempty,ip"`
	Zone         string `yaml:"zone" json:"zone" bson:"zone"`
	UsePrivateIP bool   `yaml:"use_private_ip" json:"use_private_ip" bson:"use_private_ip"`
}

// Address returns the address used to reach the node.
func (n NodeEntry) Address() string {
	if n.UsePrivateIP && n.PrivateIP != "" {
		return n.PrivateIP
	}
	if n.PublicIP == "" {
		return n.PrivateIP
	}
	return n.PublicIP
}

// NodeList is the inventory of one provisioning run.
// Workers only read it.
type NodeList struct {
	Nodes      []NodeEntry `yaml:"nodes" json:"nodes" bson:"nodes" validate:"required,min=1,dive"`
	Username   string      `yaml:"username" json:"username" bson:"username" validate:"required"`
	SSHKey     string      `yaml:"ssh_key" json:"ssh_key" bson:"ssh_key" validate:"required"`
	WorkingDir string      `yaml:"working_dir" json:"working_dir" bson:"working_dir"`
}

func (l *NodeList) PrivateIPs() []string {
	ips := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		if n.PrivateIP != "" {
			ips = append(ips, n.PrivateIP)
		}
	}
	return ips
}

func (l *NodeList) PublicIPs() []string {
	ips := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		if n.PublicIP != "" {
			ips = append(ips, n.PublicIP)
		}
	}
	return ips
}

// PrivateIPCSV joins the private addresses of all nodes with commas.
func (l *NodeList) PrivateIPCSV() string {
	return strings.Join(l.PrivateIPs(), ",")
}

// Credentials returns the shell credentials shared by every node.
func (l *NodeList) Credentials() Credentials {
	return Credentials{Username: l.Username, KeyFile: l.SSHKey}
}

// Credentials is the login material for the remote shell.
type Credentials struct {
	Username string
	KeyFile  string
}

// CommandPhase is an ordered list of command templates.
type CommandPhase struct {
	Name     PhaseName `yaml:"name" json:"name"`
	Commands []string  `yaml:"commands" json:"commands"`
}

// ExecutionResult is what a worker reports for one host and one phase.
type ExecutionResult struct {
	TaskID     string    `json:"task_id"`
	Phase      PhaseName `json:"phase"`
	Node       string    `json:"node"`
	Host       string    `json:"host"`
	Output     string    `json:"output"`
	ExitStatus int       `json:"exit_status"`
}

func (r ExecutionResult) Failed() bool {
	return r.ExitStatus != 0
}
