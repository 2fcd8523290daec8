// Package processor normalizes captured host output into log lines with
// configurable processor chains.
package processor

import (
	"fmt"
	"strings"
)

const (
	ProcessorTypeSplitLines string = "split_lines"
	ProcessorTypeTrim       string = "trim"
	ProcessorTypeTrimRight  string = "trim_right"
	ProcessorTypeDropEmpty  string = "drop_empty"
	ProcessorTypeStripCR    string = "strip_cr"
)

// Processor defines the interface for processing string slices.
type Processor interface {
	// Process applies the processor's logic to the input lines.
	Process([]string) ([]string, error)
	Name() string
}

// ProcessorChain manages a collection of processors and applies them in sequence.
type ProcessorChain struct {
	processors map[string]Processor
}

func NewProcessorChain() *ProcessorChain {
	pc := &ProcessorChain{
		processors: make(map[string]Processor),
	}
	pc.registerDefaults()
	return pc
}

func (pc *ProcessorChain) registerDefaults() {
	pc.Register(&SplitLinesProcessor{})
	pc.Register(&TrimProcessor{})
	pc.Register(&TrimRightProcessor{})
	pc.Register(&DropEmptyProcessor{})
	pc.Register(&StripCRProcessor{})
}

// Register adds a processor to the chain.
func (pc *ProcessorChain) Register(p Processor) {
	pc.processors[p.Name()] = p
}

// Process applies the named processors to lines in order.
func (pc *ProcessorChain) Process(lines []string, processorNames ...string) ([]string, error) {
	for _, name := range processorNames {
		if _, exists := pc.processors[name]; !exists {
			return nil, fmt.Errorf("processor %q not registered", name)
		}
	}
	if len(lines) == 0 {
		return lines, nil
	}
	result := lines
	for _, name := range processorNames {
		var err error
		result, err = pc.processors[name].Process(result)
		if err != nil {
			return nil, fmt.Errorf("%s processor failed: %w", name, err)
		}
		if len(result) == 0 {
			break
		}
	}
	return result, nil
}

// Lines is the chain applied to command output before it is logged.
func (pc *ProcessorChain) Lines(output string) []string {
	lines, err := pc.Process([]string{output},
		ProcessorTypeSplitLines, ProcessorTypeStripCR, ProcessorTypeTrimRight, ProcessorTypeDropEmpty)
	if err != nil {
		return []string{output}
	}
	return lines
}

// SplitLinesProcessor splits entries with embedded newlines.
type SplitLinesProcessor struct{}

func (p *SplitLinesProcessor) Name() string { return ProcessorTypeSplitLines }

func (p *SplitLinesProcessor) Process(lines []string) ([]string, error) {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		result = append(result, strings.Split(line, "\n")...)
	}
	return result, nil
}

// TrimProcessor trims whitespace from each line in the input.
type TrimProcessor struct{}

func (p *TrimProcessor) Name() string { return ProcessorTypeTrim }

func (p *TrimProcessor) Process(lines []string) ([]string, error) {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}
	return trimmed, nil
}

// TrimRightProcessor keeps indentation but drops trailing whitespace.
type TrimRightProcessor struct{}

func (p *TrimRightProcessor) Name() string { return ProcessorTypeTrimRight }

func (p *TrimRightProcessor) Process(lines []string) ([]string, error) {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimRight(line, " \t")
	}
	return trimmed, nil
}

// StripCRProcessor keeps only the text after the last carriage return,
// which is what a terminal would have shown for progress-bar style output.
type StripCRProcessor struct{}

func (p *StripCRProcessor) Name() string { return ProcessorTypeStripCR }

func (p *StripCRProcessor) Process(lines []string) ([]string, error) {
	result := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			line = line[idx+1:]
		}
		result[i] = line
	}
	return result, nil
}

type DropEmptyProcessor struct{}

func (p *DropEmptyProcessor) Name() string { return ProcessorTypeDropEmpty }

func (p *DropEmptyProcessor) Process(lines []string) ([]string, error) {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result, nil
}
