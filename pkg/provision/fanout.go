package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/internal/processor"
	"github.com/andrej220/formation/pkg/render"
	dm "github.com/andrej220/formation/pkg/shared-models"
	"github.com/andrej220/formation/pkg/workerpool"
)

// CommandRunner runs an ordered command list on one node.
type CommandRunner interface {
	RunCommands(ctx context.Context, node dm.NodeEntry, commands []string, cluster render.Vars, creds dm.Credentials) (dm.ExecutionResult, error)
}

// Outcome is what one phase produced across all hosts.
type Outcome struct {
	Phase   dm.PhaseName         `json:"phase"`
	Results []dm.ExecutionResult `json:"results"`
	Failed  bool                 `json:"failed"`
}

// Sinks are the two log targets of a provisioning run. Transcript receives
// every "host: line" pair; leave it nil to disable it.
type Sinks struct {
	Logger     lg.Logger
	Transcript lg.Logger
}

type hostTask struct {
	Phase    dm.PhaseName
	Node     dm.NodeEntry
	Commands []string
}

// FanOut runs one phase over every host of a NodeList.
type FanOut struct {
	pool       *workerpool.Pool[hostTask, dm.ExecutionResult]
	runner     CommandRunner
	nodes      *dm.NodeList
	cluster    render.Vars
	creds      dm.Credentials
	logger     lg.Logger
	transcript lg.Logger
	lines      *processor.ProcessorChain
	phase      dm.PhaseName
}

func NewFanOut(nodes *dm.NodeList, runner CommandRunner, cluster render.Vars, maxWorkers int, sinks Sinks) *FanOut {
	if sinks.Logger == nil {
		sinks.Logger = lg.Discard
	}
	if sinks.Transcript == nil {
		sinks.Transcript = lg.Discard
	}
	return &FanOut{
		pool:       workerpool.NewPool[hostTask, dm.ExecutionResult](maxWorkers, sinks.Logger),
		runner:     runner,
		nodes:      nodes,
		cluster:    cluster,
		creds:      nodes.Credentials(),
		logger:     sinks.Logger,
		transcript: sinks.Transcript,
		lines:      processor.NewProcessorChain(),
	}
}

// Exec submits one task per host and returns without waiting.
func (f *FanOut) Exec(ctx context.Context, phase dm.PhaseName, commands []string) error {
	if f.pool.Pending() > 0 {
		return ErrPhaseInFlight
	}
	if err := dm.ValidatePhase(phase); err != nil {
		return err
	}
	f.phase = phase
	cmds := append([]string(nil), commands...)
	for _, node := range f.nodes.Nodes {
		f.pool.Submit(workerpool.Job[hostTask, dm.ExecutionResult]{
			ID:      uuid.NewString(),
			Payload: hostTask{Phase: phase, Node: node, Commands: cmds},
			Fn:      f.run,
			Ctx:     ctx,
		})
	}
	f.logger.Info("phase submitted", lg.String("phase", string(phase)), lg.Int("hosts", len(f.nodes.Nodes)))
	return nil
}

func (f *FanOut) run(ctx context.Context, t hostTask) (dm.ExecutionResult, error) {
	return f.runner.RunCommands(ctx, t.Node, t.Commands, f.cluster, f.creds)
}

// Join waits for every host of the current phase. A worker fault returns
// *HostError at once. Non-zero exits are logged and collected; once all hosts
// are drained they are returned together as an error matching ErrHostsFailed.
func (f *FanOut) Join() (Outcome, error) {
	outcome := Outcome{Phase: f.phase}
	var failures *multierror.Error

	err := f.pool.Join(func(c workerpool.Completion[hostTask, dm.ExecutionResult]) error {
		res := c.Result
		res.TaskID = c.ID
		res.Phase = c.Payload.Phase
		if res.Host == "" {
			res.Host = c.Payload.Node.Address()
		}
		if res.Node == "" {
			res.Node = c.Payload.Node.Name
		}
		f.logOutput(res)

		if c.Err != nil {
			f.logger.Error("host provisioning failed",
				lg.String("phase", string(res.Phase)), lg.String("host", res.Host), lg.String("node", res.Node), lg.Err(c.Err))
			f.transcript.Error(fmt.Sprintf("%s: %v", res.Host, c.Err))
			return &HostError{Phase: res.Phase, Node: res.Node, Host: res.Host, Err: c.Err}
		}

		outcome.Results = append(outcome.Results, res)
		if res.Failed() {
			outcome.Failed = true
			f.logger.Error("command returned non-zero result, see log for details",
				lg.String("phase", string(res.Phase)), lg.String("host", res.Host), lg.String("node", res.Node),
				lg.Int("exit_status", res.ExitStatus))
			f.transcript.Error(fmt.Sprintf("%s: exit status %d", res.Host, res.ExitStatus))
			failures = multierror.Append(failures, &CommandError{
				Phase: res.Phase, Node: res.Node, Host: res.Host, ExitStatus: res.ExitStatus,
			})
		}
		return nil
	})
	if err != nil {
		outcome.Failed = true
		return outcome, err
	}
	if failures != nil {
		failures.ErrorFormat = joinErrors
		return outcome, fmt.Errorf("%w: %w", ErrHostsFailed, failures)
	}
	return outcome, nil
}

func (f *FanOut) logOutput(res dm.ExecutionResult) {
	for _, line := range f.lines.Lines(res.Output) {
		f.logger.Info("output", lg.String("host", res.Host), lg.String("line", line))
		f.transcript.Info(fmt.Sprintf("%s: %s", res.Host, line))
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
