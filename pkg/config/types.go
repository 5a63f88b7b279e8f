package config

import "time"

// Experiment is the top-level experiment definition
type Experiment struct {
	Name            string            `yaml:"name"`
	Seed            int64             `yaml:"seed"`
	LogLevel        string            `yaml:"log_level"`
	Parameters      []ParameterConfig `yaml:"parameters"`
	StimuliPerTrial int               `yaml:"stimuli_per_trial"`
	OutcomeTypes    []string          `yaml:"outcome_types"`
	Strategies      []StrategyConfig  `yaml:"strategies"`
}

// ParameterConfig defines one continuous parameter and its bounds
type ParameterConfig struct {
	Name  string  `yaml:"name"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// StrategyConfig defines one phase of the experiment sequence
type StrategyConfig struct {
	Name                       string `yaml:"name"`
	Generator                  string `yaml:"generator"`
	MinAsks                    int    `yaml:"min_asks"`
	MinTotalOutcomeOccurrences int    `yaml:"min_total_outcome_occurrences"`
	Seed                       int64  `yaml:"seed"`

	// Sobol settings
	NPoints int `yaml:"n_points"`

	// Model-based settings
	Restarts         int          `yaml:"restarts"`
	Samps            int          `yaml:"samps"`
	StimulusSampling string       `yaml:"stimulus_sampling"`
	TimeoutMs        int          `yaml:"timeout_ms"`
	Model            *ModelConfig `yaml:"model"`
	Acquisition      *AcqfConfig  `yaml:"acquisition"`
}

// ModelConfig configures the surrogate model of a model-based strategy
type ModelConfig struct {
	Name         string  `yaml:"name"`
	Mean         string  `yaml:"mean"`
	Covariance   string  `yaml:"covariance"`
	Lengthscale  float64 `yaml:"lengthscale"`
	OutputScale  float64 `yaml:"output_scale"`
	Noise        float64 `yaml:"noise"`
	InducingSize int     `yaml:"inducing_size"`
	MinData      int     `yaml:"min_data"`
}

// AcqfConfig configures the acquisition function of a model-based strategy
type AcqfConfig struct {
	Name string  `yaml:"name"`
	Beta float64 `yaml:"beta"`
	Xi   float64 `yaml:"xi"`
}

// Timeout converts the per-ask generation budget; zero means unlimited
func (s *StrategyConfig) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
