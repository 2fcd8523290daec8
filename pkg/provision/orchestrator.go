package provision

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/events"
	"github.com/andrej220/formation/pkg/persistence"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

// State is the position of a provisioning run.
type State int

const (
	StateIdle State = iota
	StatePreInstall
	StateInstall
	StatePostInstall
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreInstall:
		return "pre-install"
	case StateInstall:
		return "install"
	case StatePostInstall:
		return "post-install"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown provisioning state %q", text)
}

// Plan holds the command templates of the three phases.
type Plan struct {
	PreInstall  []string `yaml:"pre_install" json:"pre_install" bson:"pre_install"`
	Install     []string `yaml:"install" json:"install" bson:"install"`
	PostInstall []string `yaml:"post_install" json:"post_install" bson:"post_install"`
}

func NewPlan() *Plan {
	return &Plan{
		PreInstall:  []string{},
		Install:     []string{},
		PostInstall: []string{},
	}
}

func (p *Plan) AddPreInstall(commands ...string) *Plan {
	p.PreInstall = append(p.PreInstall, commands...)
	return p
}

func (p *Plan) AddInstall(commands ...string) *Plan {
	p.Install = append(p.Install, commands...)
	return p
}

func (p *Plan) AddPostInstall(commands ...string) *Plan {
	p.PostInstall = append(p.PostInstall, commands...)
	return p
}

// Phases returns the phases in execution order.
func (p *Plan) Phases() []dm.CommandPhase {
	return []dm.CommandPhase{
		{Name: dm.PhasePreInstall, Commands: p.PreInstall},
		{Name: dm.PhaseInstall, Commands: p.Install},
		{Name: dm.PhasePostInstall, Commands: p.PostInstall},
	}
}

func stateFor(phase dm.PhaseName) State {
	switch phase {
	case dm.PhasePreInstall:
		return StatePreInstall
	case dm.PhaseInstall:
		return StateInstall
	default:
		return StatePostInstall
	}
}

// PhaseEvent is published after every joined phase.
type PhaseEvent struct {
	RunID       string       `json:"run_id"`
	Phase       dm.PhaseName `json:"phase"`
	Hosts       int          `json:"hosts"`
	FailedHosts []string     `json:"failed_hosts,omitempty"`
	Failed      bool         `json:"failed"`
	Error       string       `json:"error,omitempty"`
}

// Report is the record written to the working directory after a run.
type Report struct {
	RunID    string    `json:"run_id"`
	State    State     `json:"state"`
	Outcomes []Outcome `json:"outcomes"`
	Error    string    `json:"error,omitempty"`
}

type Option func(*Orchestrator)

func WithPublisher(p events.Publisher[PhaseEvent]) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithReport saves the run report to store when the run ends.
func WithReport(store *persistence.ReportStore) Option {
	return func(o *Orchestrator) { o.reports = store }
}

// Orchestrator runs the pre-install, install and post-install phases as
// full barriers. Phases without commands are skipped. Nothing is retried.
type Orchestrator struct {
	fanout    *FanOut
	state     State
	runID     string
	logger    lg.Logger
	publisher events.Publisher[PhaseEvent]
	reports   *persistence.ReportStore
}

func NewOrchestrator(fanout *FanOut, logger lg.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = lg.Discard
	}
	o := &Orchestrator{
		fanout:    fanout,
		logger:    logger,
		publisher: events.New[PhaseEvent](events.Config{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes plan and returns the outcome of every phase that ran.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) (outcomes []Outcome, err error) {
	o.runID = uuid.NewString()
	o.state = StateIdle
	logger := o.logger.With(lg.String("run", o.runID))
	defer func() { o.writeReport(logger, outcomes, err) }()

	for _, phase := range plan.Phases() {
		if len(phase.Commands) == 0 {
			logger.Debug("skipping empty phase", lg.String("phase", string(phase.Name)))
			continue
		}
		o.state = stateFor(phase.Name)
		logger.Info("starting phase", lg.String("phase", string(phase.Name)), lg.Int("commands", len(phase.Commands)))

		if err := o.fanout.Exec(ctx, phase.Name, phase.Commands); err != nil {
			o.state = StateFailed
			return outcomes, fmt.Errorf("provisioning phase %s: %w", phase.Name, err)
		}
		outcome, err := o.fanout.Join()
		outcomes = append(outcomes, outcome)
		o.publish(ctx, logger, outcome, err)
		if err != nil {
			o.state = StateFailed
			return outcomes, fmt.Errorf("provisioning phase %s: %w", phase.Name, err)
		}
	}

	o.state = StateDone
	logger.Info("provisioning complete")
	return outcomes, nil
}

func (o *Orchestrator) publish(ctx context.Context, logger lg.Logger, outcome Outcome, phaseErr error) {
	ev := PhaseEvent{
		RunID:  o.runID,
		Phase:  outcome.Phase,
		Hosts:  len(outcome.Results),
		Failed: outcome.Failed,
	}
	for _, r := range outcome.Results {
		if r.Failed() {
			ev.FailedHosts = append(ev.FailedHosts, r.Host)
		}
	}
	if phaseErr != nil {
		ev.Error = phaseErr.Error()
	}
	if err := o.publisher.Publish(ctx, o.runID, ev); err != nil {
		logger.Warn("failed to publish phase event", lg.Err(err))
	}
}

func (o *Orchestrator) writeReport(logger lg.Logger, outcomes []Outcome, runErr error) {
	if o.reports == nil {
		return
	}
	report := Report{RunID: o.runID, State: o.state, Outcomes: outcomes}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if err := o.reports.Save(o.runID, report); err != nil {
		logger.Warn("failed to write provisioning report", lg.String("path", o.reports.Path()), lg.Err(err))
	}
}
