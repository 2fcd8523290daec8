package provision

import (
	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/events"
	"github.com/andrej220/formation/pkg/persistence"
	"github.com/andrej220/formation/pkg/render"
	dm "github.com/andrej220/formation/pkg/shared-models"
)

// ReportFile is written to the working directory after each run.
const ReportFile = "provision-report.json"

type Config struct {
	MaxWorkers int               `yaml:"max_workers"`
	Vars       map[string]string `yaml:"vars"`
	Events     events.Config     `yaml:"events"`

	// ReportHistory bounds the kept run reports; zero keeps the default.
	ReportHistory int `yaml:"report_history"`
}

// New wires an Orchestrator for nodes: cluster variables, the transcript in
// the working directory (if any), the event publisher and the run report.
// The returned closer releases the transcript and the publisher.
func New(nodes *dm.NodeList, runner CommandRunner, logger lg.Logger, cfg Config) (*Orchestrator, func() error, error) {
	if err := nodes.Validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = lg.Discard
	}

	transcript, closeTranscript, err := lg.NewTranscript(nodes.WorkingDir)
	if err != nil {
		return nil, nil, err
	}
	publisher := events.New[PhaseEvent](cfg.Events)

	fanout := NewFanOut(nodes, runner, render.ClusterVars(nodes, cfg.Vars), cfg.MaxWorkers, Sinks{
		Logger:     logger,
		Transcript: transcript,
	})

	opts := []Option{WithPublisher(publisher)}
	if nodes.WorkingDir != "" {
		opts = append(opts, WithReport(persistence.NewReportStore(nodes.WorkingDir, ReportFile, cfg.ReportHistory)))
	}

	closer := func() error {
		perr := publisher.Close()
		if err := closeTranscript(); err != nil {
			return err
		}
		return perr
	}
	return NewOrchestrator(fanout, logger, opts...), closer, nil
}
