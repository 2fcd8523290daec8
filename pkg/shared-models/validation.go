package datamodels

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("phase", validatePhaseName)
}

func validatePhaseName(fl validator.FieldLevel) bool {
	switch PhaseName(fl.Field().String()) {
	case PhasePreInstall, PhaseInstall, PhasePostInstall:
		return true
	}
	return false
}

// Validate checks the inventory before a run starts.
func (l *NodeList) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid node list: %w", err)
	}
	seen := make(map[string]struct{}, len(l.Nodes))
	for _, n := range l.Nodes {
		if n.Address() == "" {
			return fmt.Errorf("invalid node list: node %q has no address", n.Name)
		}
		if _, dup := seen[n.Name]; dup {
			return fmt.Errorf("invalid node list: duplicate node %q", n.Name)
		}
		seen[n.Name] = struct{}{}
	}
	return nil
}

// ValidatePhase checks that name is a known provisioning phase.
func ValidatePhase(name PhaseName) error {
	if err := validate.Var(string(name), "required,phase"); err != nil {
		return fmt.Errorf("invalid phase %q: %w", name, err)
	}
	return nil
}
