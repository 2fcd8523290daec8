// Package render substitutes node and cluster variables into command templates.
//
// Placeholders use the form {{ NAME }}. A placeholder with no value is left
// in the command untouched so partially parameterized commands stay visible
// in the transcript instead of failing the batch.
package render

import (
	"regexp"
	"strings"

	dm "github.com/andrej220/formation/pkg/shared-models"
)

const (
	PrivateIPList = "PRIVATE_IP_LIST"
	PublicIPList  = "PUBLIC_IP_LIST"
	NodeName      = "NODE_NAME"
	NodeZone      = "NODE_ZONE"
	NodePrivateIP = "NODE_PRIVATE_IP"
	NodePublicIP  = "NODE_PUBLIC_IP"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Vars maps placeholder names to values.
type Vars map[string]string

// ClusterVars builds the cluster-wide variable set for a run.
// Entries in extra override the derived values.
func ClusterVars(nodes *dm.NodeList, extra map[string]string) Vars {
	vars := Vars{
		PrivateIPList: nodes.PrivateIPCSV(),
		PublicIPList:  strings.Join(nodes.PublicIPs(), ","),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// NodeVars returns the variables local to one node. Attributes the node
// does not have are left out so their placeholders stay unresolved.
func NodeVars(node dm.NodeEntry) Vars {
	vars := Vars{}
	for name, value := range map[string]string{
		NodeName:      node.Name,
		NodeZone:      node.Zone,
		NodePrivateIP: node.PrivateIP,
		NodePublicIP:  node.PublicIP,
	} {
		if value != "" {
			vars[name] = value
		}
	}
	return vars
}

// Render resolves the placeholders of template for node.
// Node-local values win over cluster values of the same name.
func Render(template string, node dm.NodeEntry, cluster Vars) string {
	local := NodeVars(node)
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := local[name]; ok {
			return v
		}
		if v, ok := cluster[name]; ok {
			return v
		}
		return match
	})
}
