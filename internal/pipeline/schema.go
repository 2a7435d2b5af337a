// Package pipeline runs batches of report jobs defined in a YAML file.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/klytics/xlreport/internal/colrange"
)

// Pipeline represents a batch of report jobs.
type Pipeline struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Jobs    []Job  `yaml:"jobs" json:"jobs"`
}

// Job is one report request. Empty fields fall back to the runner's
// configured defaults.
type Job struct {
	ID        string `yaml:"id" json:"id"`
	Input     string `yaml:"input" json:"input"`
	Sheet     string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	StartRow  *int   `yaml:"start_row,omitempty" json:"startRow,omitempty"`
	Columns   string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`
	Charts    string `yaml:"charts,omitempty" json:"charts,omitempty"`
	NoCharts  bool   `yaml:"no_charts,omitempty" json:"noCharts,omitempty"`
	OnFailure string `yaml:"on_failure,omitempty" json:"onFailure,omitempty"`
}

// LoadPipeline reads and parses a pipeline YAML file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read pipeline file %s: %w", path, err)
	}

	return ParsePipeline(data)
}

// ParsePipeline parses a pipeline from YAML bytes.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid pipeline YAML: %w", err)
	}

	if err := validatePipeline(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

func validatePipeline(p *Pipeline) error {
	if p.Name == "" {
		return fmt.Errorf("pipeline is missing a 'name' field")
	}

	if len(p.Jobs) == 0 {
		return fmt.Errorf("pipeline %q has no jobs defined", p.Name)
	}

	seen := make(map[string]bool)
	for i, job := range p.Jobs {
		if job.ID == "" {
			return fmt.Errorf("job %d is missing an 'id' field", i+1)
		}
		if seen[job.ID] {
			return fmt.Errorf("duplicate job ID %q — each job must have a unique ID", job.ID)
		}
		seen[job.ID] = true

		if job.Input == "" {
			return fmt.Errorf("job %q is missing an 'input' field", job.ID)
		}
		if job.StartRow != nil && *job.StartRow < 0 {
			return fmt.Errorf("job %q: start_row must not be negative", job.ID)
		}
		// Ranges with interpolation are checked when the job runs.
		if job.Columns != "" && !interpolationPattern.MatchString(job.Columns) {
			if _, err := colrange.Parse(job.Columns); err != nil {
				return fmt.Errorf("job %q: %w", job.ID, err)
			}
		}
		switch job.OnFailure {
		case "", "stop", "skip":
		default:
			return fmt.Errorf("job %q: on_failure must be 'stop' or 'skip', got %q", job.ID, job.OnFailure)
		}
	}

	return nil
}
