package executor

import (
	"bytes"
	"context"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/render"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

// Runner executes an ordered command list on one host.
type Runner struct {
	prober    Prober
	connector Connector
	logger    lg.Logger
}

func NewRunner(prober Prober, connector Connector, logger lg.Logger) *Runner {
	if logger == nil {
		logger = lg.Discard
	}
	return &Runner{prober: prober, connector: connector, logger: logger}
}

// RunCommands waits for the node to become reachable, opens one connection
// and runs commands in order. The first non-zero exit stops the list; its
// status is the result's ExitStatus. Reachability, dial, auth and transport
// failures are returned as *ConnectivityError.
func (r *Runner) RunCommands(ctx context.Context, node dm.NodeEntry, commands []string, cluster render.Vars, creds dm.Credentials) (dm.ExecutionResult, error) {
	host := node.Address()
	result := dm.ExecutionResult{Node: node.Name, Host: host}
	if len(commands) == 0 {
		return result, nil
	}
	logger := r.logger.With(lg.String("host", host), lg.String("node", node.Name))

	if !r.prober.WaitReady(ctx, host) {
		return result, &ConnectivityError{Host: host, Err: ErrUnreachable}
	}
	logger.Info("connection to host successful")

	logger.Info("connecting", lg.String("user", creds.Username))
	logger.Debug("using ssh key", lg.String("key", creds.KeyFile))
	sess, err := r.connector.Connect(ctx, host, creds)
	if err != nil {
		return result, &ConnectivityError{Host: host, Err: err}
	}
	defer sess.Close()

	var output bytes.Buffer
	for _, command := range commands {
		line := render.Render(command, node, cluster)
		logger.Debug("running command", lg.String("command", line))

		out, status, err := sess.Run(line)
		output.Write(out)
		result.ExitStatus = status
		if err != nil {
			result.Output = output.String()
			return result, &ConnectivityError{Host: host, Err: err}
		}
		if status != 0 {
			logger.Debug("command returned non-zero status", lg.Int("status", status))
			break
		}
	}

	result.Output = output.String()
	return result, nil
}
