package config

import (
	"strings"
	"testing"
)

const validExperimentYAML = `
name: detection-threshold
seed: 42
parameters:
  - name: intensity
    lower: 0.0
    upper: 1.0
  - name: frequency
    lower: 100.0
    upper: 8000.0
stimuli_per_trial: 1
outcome_types: [binary]
strategies:
  - name: explore
    generator: sobol
    min_asks: 5
    min_total_outcome_occurrences: 5
    n_points: 5
  - name: optimize
    generator: optimize_acqf
    min_asks: 10
    restarts: 4
    samps: 200
    timeout_ms: 500
    model:
      covariance: rbf
      lengthscale: 0.25
      min_data: 3
    acquisition:
      name: ucb
      beta: 1.96
`

func TestParseExperimentYAML(t *testing.T) {
	exp, err := ParseExperimentYAML([]byte(validExperimentYAML))
	if err != nil {
		t.Fatalf("failed to parse valid experiment: %v", err)
	}

	if exp.Name != "detection-threshold" {
		t.Errorf("expected name detection-threshold, got %s", exp.Name)
	}
	if len(exp.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(exp.Parameters))
	}
	if exp.Parameters[1].Upper != 8000.0 {
		t.Errorf("expected frequency upper 8000, got %f", exp.Parameters[1].Upper)
	}
	if len(exp.Strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(exp.Strategies))
	}
	if exp.Strategies[1].Model == nil || exp.Strategies[1].Acquisition == nil {
		t.Fatal("expected model and acquisition blocks on the second strategy")
	}
}

func TestParseExperimentDefaults(t *testing.T) {
	yml := `
name: minimal
seed: 7
parameters:
  - name: x
    lower: 0
    upper: 1
strategies:
  - name: explore
    generator: sobol
    min_asks: 1
`
	exp, err := ParseExperimentYAML([]byte(yml))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if exp.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", exp.LogLevel)
	}
	if exp.StimuliPerTrial != 1 {
		t.Errorf("expected default stimuli_per_trial 1, got %d", exp.StimuliPerTrial)
	}
	if len(exp.OutcomeTypes) != 1 || exp.OutcomeTypes[0] != "binary" {
		t.Errorf("expected default outcome_types [binary], got %v", exp.OutcomeTypes)
	}
	// Strategy seed inherits the experiment seed when unset
	if exp.Strategies[0].Seed != 7 {
		t.Errorf("expected inherited seed 7, got %d", exp.Strategies[0].Seed)
	}
}

func TestParseExperimentValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{
			name: "no parameters",
			yml: `
name: bad
strategies:
  - {name: s, generator: sobol}
`,
			want: "at least one parameter",
		},
		{
			name: "inverted bounds",
			yml: `
name: bad
parameters:
  - {name: x, lower: 1.0, upper: 0.0}
strategies:
  - {name: s, generator: sobol}
`,
			want: "lower bound",
		},
		{
			name: "duplicate parameter",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
  - {name: x, lower: 0, upper: 1}
strategies:
  - {name: s, generator: sobol}
`,
			want: "duplicate parameter name",
		},
		{
			name: "no strategies",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
`,
			want: "at least one strategy",
		},
		{
			name: "unknown generator",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
strategies:
  - {name: s, generator: random_walk}
`,
			want: "unknown generator",
		},
		{
			name: "model-based without model",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
strategies:
  - name: s
    generator: optimize_acqf
    acquisition: {name: ucb}
`,
			want: "requires a model block",
		},
		{
			name: "bad outcome type",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
outcome_types: [ordinal]
strategies:
  - {name: s, generator: sobol}
`,
			want: "invalid outcome type",
		},
		{
			name: "bad sampling mode",
			yml: `
name: bad
parameters:
  - {name: x, lower: 0, upper: 1}
strategies:
  - name: s
    generator: optimize_acqf
    stimulus_sampling: diagonal
    model: {name: gp}
    acquisition: {name: ucb}
`,
			want: "invalid stimulus_sampling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExperimentYAML([]byte(tt.yml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseExperimentMalformedYAML(t *testing.T) {
	if _, err := ParseExperimentYAML([]byte("{not yaml")); err == nil {
		t.Fatal("expected parse error for malformed input")
	}
}
