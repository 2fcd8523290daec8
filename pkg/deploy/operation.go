// Package deploy creates cloud networks and nodes through per-cloud drivers.
// Networks are deployed first as a full barrier, then every node replica of
// every service.
package deploy

import (
	"fmt"

	"github.com/google/uuid"
)

type Cloud string

const (
	CloudAWS     Cloud = "aws"
	CloudGCP     Cloud = "gcp"
	CloudAzure   Cloud = "azure"
	CloudCapella Cloud = "capella"
)

// Clouds lists every supported cloud.
var Clouds = []Cloud{CloudAWS, CloudGCP, CloudAzure, CloudCapella}

type Kind string

const (
	KindNetwork Kind = "network"
	KindNode    Kind = "node"
)

// Params are the driver arguments of one operation.
type Params map[string]any

// Operation is one deployment task. It is immutable once built: the
// parameters, including nested maps and slices, are copied in and copied out.
type Operation struct {
	ID     string
	Cloud  Cloud
	Kind   Kind
	params Params
}

func NewOperation(cloud Cloud, kind Kind, params Params) Operation {
	return Operation{
		ID:     uuid.NewString(),
		Cloud:  cloud,
		Kind:   kind,
		params: params.clone(),
	}
}

// Params returns a copy of the operation parameters.
func (o Operation) Params() Params {
	p := o.params.clone()
	if p == nil {
		p = Params{}
	}
	return p
}

func (p Params) clone() Params {
	if p == nil {
		return nil
	}
	return copyValue(map[string]any(p)).(map[string]any)
}

// copyValue copies the containers YAML, JSON and BSON decoding produce.
// Other values are returned as is.
func copyValue(v any) any {
	switch t := v.(type) {
	case Params:
		return Params(copyValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case map[any]any:
		if t == nil {
			return t
		}
		out := make(map[any]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func (o Operation) String() string {
	return fmt.Sprintf("%s/%s %s", o.Cloud, o.Kind, o.ID)
}
