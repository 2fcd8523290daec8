package deploy

import (
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Project declares the networks and node groups of one deployment.
type Project struct {
	Name     string    `yaml:"name" json:"name" bson:"name" validate:"required"`
	Networks []Network `yaml:"networks" json:"networks" bson:"networks" validate:"dive"`
	Services []Service `yaml:"services" json:"services" bson:"services" validate:"dive"`
}

type Network struct {
	Cloud  Cloud          `yaml:"cloud" json:"cloud" bson:"cloud" validate:"required,oneof=aws gcp azure capella"`
	Name   string         `yaml:"name" json:"name" bson:"name"`
	Params map[string]any `yaml:"params" json:"params" bson:"params"`
}

type Service struct {
	Name   string      `yaml:"name" json:"name" bson:"name" validate:"required"`
	Groups []NodeGroup `yaml:"groups" json:"groups" bson:"groups" validate:"required,min=1,dive"`
}

// NodeGroup is a set of identical replicas of a service on one cloud.
type NodeGroup struct {
	Cloud    Cloud          `yaml:"cloud" json:"cloud" bson:"cloud" validate:"required,oneof=aws gcp azure capella"`
	Group    int            `yaml:"group" json:"group" bson:"group" validate:"gte=0"`
	Quantity int            `yaml:"quantity" json:"quantity" bson:"quantity" validate:"gte=0"`
	Params   map[string]any `yaml:"params" json:"params" bson:"params"`
}

func (p *Project) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid project %q: %w", p.Name, err)
	}
	return nil
}

// NetworkOperations returns one operation per declared network.
func (p *Project) NetworkOperations() []Operation {
	ops := make([]Operation, 0, len(p.Networks))
	for _, n := range p.Networks {
		params := Params(maps.Clone(n.Params))
		if params == nil {
			params = Params{}
		}
		params["cloud"] = string(n.Cloud)
		if n.Name != "" {
			params["name"] = n.Name
		}
		ops = append(ops, NewOperation(n.Cloud, KindNetwork, params))
	}
	return ops
}

// NodeOperations returns one operation per replica. Replicas are numbered
// from 1 within a service, continuing across its groups.
func (p *Project) NodeOperations() []Operation {
	var ops []Operation
	for _, svc := range p.Services {
		number := 0
		for _, g := range svc.Groups {
			for j := 0; j < g.Quantity; j++ {
				number++
				params := Params(maps.Clone(g.Params))
				if params == nil {
					params = Params{}
				}
				params["name"] = svc.Name
				params["cloud"] = string(g.Cloud)
				params["group"] = g.Group
				params["quantity"] = g.Quantity
				params["number"] = number
				ops = append(ops, NewOperation(g.Cloud, KindNode, params))
			}
		}
	}
	return ops
}
