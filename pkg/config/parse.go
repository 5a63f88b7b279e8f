package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseExperimentYAML parses and validates an experiment definition
func ParseExperimentYAML(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&exp)

	if err := validateExperiment(&exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// applyDefaults fills in optional fields before validation
func applyDefaults(exp *Experiment) {
	if exp.LogLevel == "" {
		exp.LogLevel = "info"
	}
	if exp.StimuliPerTrial == 0 {
		exp.StimuliPerTrial = 1
	}
	if len(exp.OutcomeTypes) == 0 {
		exp.OutcomeTypes = []string{"binary"}
	}
	for i := range exp.Strategies {
		s := &exp.Strategies[i]
		if s.Seed == 0 {
			s.Seed = exp.Seed
		}
		if s.Model != nil && s.Model.Name == "" {
			s.Model.Name = "gp"
		}
		if s.Acquisition != nil && s.Acquisition.Name == "" {
			s.Acquisition.Name = "ucb"
		}
	}
}
