package config

import (
	"fmt"
	"os"
)

// LoadExperiment loads and parses an experiment definition file
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file %s: %w", path, err)
	}
	exp, err := ParseExperimentYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	return exp, nil
}

// validateExperiment performs validation on the experiment definition
func validateExperiment(exp *Experiment) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[exp.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", exp.LogLevel)
	}

	if len(exp.Parameters) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	paramNames := make(map[string]bool)
	for _, p := range exp.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if paramNames[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		paramNames[p.Name] = true
		if p.Lower >= p.Upper {
			return fmt.Errorf("parameter %s: lower bound %f must be below upper bound %f", p.Name, p.Lower, p.Upper)
		}
	}

	if exp.StimuliPerTrial < 1 {
		return fmt.Errorf("stimuli_per_trial must be at least 1, got %d", exp.StimuliPerTrial)
	}

	validOutcomes := map[string]bool{
		"binary":     true,
		"continuous": true,
	}
	for _, ot := range exp.OutcomeTypes {
		if !validOutcomes[ot] {
			return fmt.Errorf("invalid outcome type: %s (must be binary or continuous)", ot)
		}
	}

	if len(exp.Strategies) == 0 {
		return fmt.Errorf("at least one strategy must be defined")
	}
	strategyNames := make(map[string]bool)
	for i := range exp.Strategies {
		if err := validateStrategy(&exp.Strategies[i], strategyNames); err != nil {
			return fmt.Errorf("strategy %d: %w", i, err)
		}
	}

	return nil
}

// validateStrategy validates one strategy block
func validateStrategy(s *StrategyConfig, seen map[string]bool) error {
	if s.Name == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	if seen[s.Name] {
		return fmt.Errorf("duplicate strategy name: %s", s.Name)
	}
	seen[s.Name] = true

	if s.MinAsks < 0 {
		return fmt.Errorf("min_asks cannot be negative, got %d", s.MinAsks)
	}
	if s.MinTotalOutcomeOccurrences < 0 {
		return fmt.Errorf("min_total_outcome_occurrences cannot be negative, got %d", s.MinTotalOutcomeOccurrences)
	}
	if s.NPoints < 0 {
		return fmt.Errorf("n_points cannot be negative, got %d", s.NPoints)
	}
	if s.Restarts < 0 {
		return fmt.Errorf("restarts cannot be negative, got %d", s.Restarts)
	}
	if s.Samps < 0 {
		return fmt.Errorf("samps cannot be negative, got %d", s.Samps)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms cannot be negative, got %d", s.TimeoutMs)
	}

	switch s.Generator {
	case "sobol":
	case "optimize_acqf":
		if s.Model == nil {
			return fmt.Errorf("generator optimize_acqf requires a model block")
		}
		if s.Acquisition == nil {
			return fmt.Errorf("generator optimize_acqf requires an acquisition block")
		}
		if s.StimulusSampling != "" && s.StimulusSampling != "independent" && s.StimulusSampling != "joint" {
			return fmt.Errorf("invalid stimulus_sampling: %s (must be independent or joint)", s.StimulusSampling)
		}
	case "":
		return fmt.Errorf("generator cannot be empty")
	default:
		return fmt.Errorf("unknown generator: %s (must be sobol or optimize_acqf)", s.Generator)
	}

	return nil
}
