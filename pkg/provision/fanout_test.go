package provision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/executor"
	"github.com/andrej220/formation/pkg/executor/fakes"
	"github.com/andrej220/formation/pkg/render"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

func twoNodes() *dm.NodeList {
	return &dm.NodeList{
		Nodes: []dm.NodeEntry{
			{Name: "n1", PublicIP: "192.0.2.1", PrivateIP: "10.0.0.1", Zone: "a"},
			{Name: "n2", PublicIP: "192.0.2.2", PrivateIP: "10.0.0.2", Zone: "b"},
		},
		Username: "admin",
		SSHKey:   "/dev/null",
	}
}

func observed() (lg.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return lg.NewFromZap(zap.New(core)), logs
}

func newFanOut(nodes *dm.NodeList, prober *fakes.Prober, connector *fakes.Connector, logger lg.Logger) *FanOut {
	runner := executor.NewRunner(prober, connector, lg.Discard)
	return NewFanOut(nodes, runner, render.ClusterVars(nodes, nil), 4, Sinks{Logger: logger})
}

func TestFanOut_AllSucceed(t *testing.T) {
	nodes := twoNodes()
	connector := fakes.NewConnector()
	f := newFanOut(nodes, &fakes.Prober{}, connector, lg.Discard)

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"echo {{ NODE_ZONE }}"}))
	outcome, err := f.Join()
	require.NoError(t, err)
	assert.False(t, outcome.Failed)
	assert.Equal(t, dm.PhaseInstall, outcome.Phase)
	require.Len(t, outcome.Results, 2)

	byHost := map[string]dm.ExecutionResult{}
	for _, r := range outcome.Results {
		byHost[r.Host] = r
		assert.NotEmpty(t, r.TaskID)
		assert.Equal(t, dm.PhaseInstall, r.Phase)
	}
	assert.Equal(t, "a\n", byHost["192.0.2.1"].Output)
	assert.Equal(t, "b\n", byHost["192.0.2.2"].Output)
}

// one unreachable host, one reachable host
func TestFanOut_UnreachableHost(t *testing.T) {
	nodes := twoNodes()
	prober := &fakes.Prober{Unreachable: map[string]bool{"192.0.2.1": true}}
	connector := fakes.NewConnector()
	logger, logs := observed()
	f := newFanOut(nodes, prober, connector, logger)

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"echo hi"}))
	_, err := f.Join()

	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "192.0.2.1", hostErr.Host)
	assert.True(t, executor.IsConnectivity(err))
	assert.ErrorIs(t, err, executor.ErrUnreachable)
	assert.Empty(t, connector.Ran("192.0.2.1"))

	failures := logs.FilterMessage("host provisioning failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "192.0.2.1", failures[0].ContextMap()["host"])
	assert.Zero(t, f.pool.Pending())

	// the reachable host still ran and produced its output
	require.Eventually(t, func() bool {
		return len(connector.Ran("192.0.2.2")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFanOut_ReachableHostOutput(t *testing.T) {
	nodes := &dm.NodeList{
		Nodes:    []dm.NodeEntry{{Name: "n2", PublicIP: "192.0.2.2"}},
		Username: "admin",
		SSHKey:   "/dev/null",
	}
	f := newFanOut(nodes, &fakes.Prober{}, fakes.NewConnector(), lg.Discard)

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"echo hi"}))
	outcome, err := f.Join()
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, 0, outcome.Results[0].ExitStatus)
	assert.Equal(t, "hi\n", outcome.Results[0].Output)
}

// one host fails with a non-zero exit, the other succeeds
func TestFanOut_AggregateFailureAfterDrain(t *testing.T) {
	nodes := twoNodes()
	logger, logs := observed()
	runner := runnerFunc(func(ctx context.Context, node dm.NodeEntry, _ []string) (dm.ExecutionResult, error) {
		if node.Name == "n1" {
			return dm.ExecutionResult{Node: node.Name, Host: node.Address(), Output: "boom\n", ExitStatus: 2}, nil
		}
		time.Sleep(50 * time.Millisecond)
		return dm.ExecutionResult{Node: node.Name, Host: node.Address(), Output: "ok\n"}, nil
	})
	f := NewFanOut(nodes, runner, nil, 4, Sinks{Logger: logger})

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"run"}))
	outcome, err := f.Join()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostsFailed)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "192.0.2.1", cmdErr.Host)
	assert.Equal(t, 2, cmdErr.ExitStatus)

	assert.True(t, outcome.Failed)
	assert.Len(t, outcome.Results, 2)

	// both hosts were logged before the aggregate error was returned
	var hosts []string
	for _, e := range logs.FilterMessage("output").All() {
		hosts = append(hosts, e.ContextMap()["host"].(string))
	}
	assert.ElementsMatch(t, []string{"192.0.2.1", "192.0.2.2"}, hosts)
	assert.Equal(t, 1, logs.FilterMessage("command returned non-zero result, see log for details").Len())
}

func TestFanOut_WorkerPanic(t *testing.T) {
	nodes := twoNodes()
	connector := fakes.NewConnector()
	connector.Panic["192.0.2.2"] = true
	f := newFanOut(nodes, &fakes.Prober{}, connector, lg.Discard)

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"true"}))
	_, err := f.Join()

	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "n2", hostErr.Node)
	assert.Contains(t, err.Error(), "panicked")
}

func TestFanOut_ExecBeforeJoin(t *testing.T) {
	f := newFanOut(twoNodes(), &fakes.Prober{}, fakes.NewConnector(), lg.Discard)

	require.NoError(t, f.Exec(context.Background(), dm.PhasePreInstall, []string{"true"}))
	err := f.Exec(context.Background(), dm.PhaseInstall, []string{"true"})
	assert.ErrorIs(t, err, ErrPhaseInFlight)

	_, err = f.Join()
	require.NoError(t, err)
	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"true"}))
	_, err = f.Join()
	require.NoError(t, err)
}

func TestFanOut_UnknownPhase(t *testing.T) {
	connector := fakes.NewConnector()
	f := newFanOut(twoNodes(), &fakes.Prober{}, connector, lg.Discard)

	assert.Error(t, f.Exec(context.Background(), "teardown", []string{"true"}))
	assert.Zero(t, f.pool.Pending())
	assert.Zero(t, connector.Sessions())
}

func TestFanOut_Transcript(t *testing.T) {
	nodes := &dm.NodeList{
		Nodes:    []dm.NodeEntry{{Name: "n1", PublicIP: "192.0.2.1"}},
		Username: "admin",
		SSHKey:   "/dev/null",
	}
	transcript, lines := observed()
	runner := executor.NewRunner(&fakes.Prober{}, fakes.NewConnector(), lg.Discard)
	f := NewFanOut(nodes, runner, nil, 1, Sinks{Transcript: transcript})

	require.NoError(t, f.Exec(context.Background(), dm.PhaseInstall, []string{"echo first", "echo second"}))
	_, err := f.Join()
	require.NoError(t, err)

	var got []string
	for _, e := range lines.All() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"192.0.2.1: first", "192.0.2.1: second"}, got)
}

type runnerFunc func(ctx context.Context, node dm.NodeEntry, commands []string) (dm.ExecutionResult, error)

func (f runnerFunc) RunCommands(ctx context.Context, node dm.NodeEntry, commands []string, _ render.Vars, _ dm.Credentials) (dm.ExecutionResult, error) {
	return f(ctx, node, commands)
}

// countingRunner records every node it was asked to run.
type countingRunner struct {
	mu    sync.Mutex
	calls map[dm.PhaseName][]string
	fail  map[string]int
	err   map[string]error
}

func newCountingRunner() *countingRunner {
	return &countingRunner{
		calls: map[dm.PhaseName][]string{},
		fail:  map[string]int{},
		err:   map[string]error{},
	}
}

func (r *countingRunner) RunCommands(_ context.Context, node dm.NodeEntry, commands []string, _ render.Vars, _ dm.Credentials) (dm.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dm.PhaseName(commands[0])
	r.calls[key] = append(r.calls[key], node.Name)
	res := dm.ExecutionResult{Node: node.Name, Host: node.Address(), ExitStatus: r.fail[node.Name+"/"+commands[0]]}
	return res, r.err[node.Name+"/"+commands[0]]
}

func (r *countingRunner) ran(phase string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls[dm.PhaseName(phase)]...)
}

var errBoom = errors.New("boom")
