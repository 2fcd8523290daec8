package deploy

import (
	"context"
	"fmt"

	"github.com/andrej220/formation/internal/lg"
)

// Dispatcher is the non-blocking submit and blocking join pair the
// orchestrator drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, op Operation)
	Join() error
}

type Orchestrator struct {
	dispatch Dispatcher
	logger   lg.Logger
}

func NewOrchestrator(dispatch Dispatcher, logger lg.Logger) *Orchestrator {
	if logger == nil {
		logger = lg.Discard
	}
	return &Orchestrator{dispatch: dispatch, logger: logger}
}

// Deploy creates every network of project, waits for all of them, then
// creates every node replica and waits again. The first failing operation
// stops the deployment.
func (o *Orchestrator) Deploy(ctx context.Context, project *Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	logger := o.logger.With(lg.String("project", project.Name))

	for _, op := range project.NetworkOperations() {
		logger.Info("deploying network", lg.String("cloud", string(op.Cloud)), lg.String("op", op.ID))
		o.dispatch.Dispatch(ctx, op)
	}
	if err := o.dispatch.Join(); err != nil {
		return fmt.Errorf("deploying networks: %w", err)
	}

	for _, op := range project.NodeOperations() {
		params := op.Params()
		logger.Info("deploying node",
			lg.String("service", fmt.Sprint(params["name"])),
			lg.Any("group", params["group"]),
			lg.Any("number", params["number"]),
			lg.String("cloud", string(op.Cloud)))
		o.dispatch.Dispatch(ctx, op)
	}
	if err := o.dispatch.Join(); err != nil {
		return fmt.Errorf("deploying nodes: %w", err)
	}

	logger.Info("deployment complete")
	return nil
}
