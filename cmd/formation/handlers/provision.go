package handlers

import (
	"context"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/executor"
	"github.com/andrej220/formation/pkg/provision"
)

// Provision runs the configured plan on the configured inventory.
func Provision(ctx context.Context, configPath string) (err error) {
	logger := lg.FromContext(ctx)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	nodes, err := cfg.LoadInventory()
	if err != nil {
		return err
	}
	if err := cfg.SnapshotInventory(nodes); err != nil {
		logger.Warn("failed to save inventory snapshot", lg.Err(err))
	}
	plan, err := cfg.LoadPlan()
	if err != nil {
		return err
	}

	runner := executor.NewRunner(newProber(cfg.Probe, logger), newConnector(cfg.Probe.Port), logger)
	orchestrator, closer, err := provision.New(nodes, runner, logger, cfg.ProvisionConfig())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}()

	outcomes, err := orchestrator.Run(ctx, plan)
	logger.Info("provisioning finished",
		lg.String("run", orchestrator.RunID()),
		lg.String("state", orchestrator.State().String()),
		lg.Int("phases", len(outcomes)))
	return err
}
