package handlers

import (
	"context"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/deploy"
)

// Deploy creates the networks and nodes of the configured project.
func Deploy(ctx context.Context, configPath string) error {
	logger := lg.FromContext(ctx)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	project, err := cfg.LoadProject()
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg.Profiles, logger)
	if err != nil {
		return err
	}

	dispatch := deploy.NewJobDispatch(registry, cfg.Workers.Deploy, logger)
	return deploy.NewOrchestrator(dispatch, logger).Deploy(ctx, project)
}
