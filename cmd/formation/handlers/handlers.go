// Package handlers implements the CLI commands. Handlers are independent of
// cobra and take their collaborators from the factory variables below, which
// tests replace.
package handlers

import (
	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/config"
	"github.com/andrej220/formation/pkg/deploy"
	"github.com/andrej220/formation/pkg/executor"
	"github.com/andrej220/formation/pkg/netprobe"
)

var (
	// loadConfig loads the tool configuration.
	loadConfig = config.Load

	// newProber builds the readiness prober used before every session.
	newProber = func(cfg netprobe.Config, logger lg.Logger) executor.Prober {
		return netprobe.New(cfg, netprobe.WithLogger(logger))
	}

	// newConnector builds the SSH connector.
	newConnector = func(port int) executor.Connector {
		return executor.NewSSHConnector(port)
	}

	// newRegistry builds the driver registry from the configured profiles.
	newRegistry = func(profiles map[deploy.Cloud]deploy.Profile, logger lg.Logger) (*deploy.Registry, error) {
		r := deploy.NewRegistry()
		if err := deploy.RegisterProfiles(r, profiles, logger); err != nil {
			return nil, err
		}
		return r, nil
	}
)
