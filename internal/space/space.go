package space

import (
	"fmt"
)

// Parameter is a single named dimension with inclusive bounds
type Parameter struct {
	Name  string
	Lower float64
	Upper float64
}

// OutcomeType tags one expected outcome channel
type OutcomeType string

const (
	// OutcomeBinary is a binary (0/1) outcome channel
	OutcomeBinary OutcomeType = "binary"
	// OutcomeContinuous is a real-valued outcome channel
	OutcomeContinuous OutcomeType = "continuous"
)

// ParameterSpace defines the search box for an experiment: the ordered
// parameter dimensions, how many stimuli are bundled into one trial, and the
// expected outcome channels. Dimensionality is fixed for the lifetime of an
// experiment.
type ParameterSpace struct {
	params          []Parameter
	stimuliPerTrial int
	outcomeTypes    []OutcomeType
}

// NewParameterSpace creates a parameter space. Every parameter must have
// lower < upper and stimuliPerTrial must be at least 1.
func NewParameterSpace(params []Parameter, stimuliPerTrial int, outcomeTypes []OutcomeType) (*ParameterSpace, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("at least one parameter must be defined")
	}
	if stimuliPerTrial < 1 {
		return nil, fmt.Errorf("stimuli_per_trial must be at least 1, got %d", stimuliPerTrial)
	}
	if len(outcomeTypes) == 0 {
		return nil, fmt.Errorf("at least one outcome type must be defined")
	}

	names := make(map[string]bool)
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if names[p.Name] {
			return nil, fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		names[p.Name] = true
		if p.Lower >= p.Upper {
			return nil, fmt.Errorf("parameter %s: lower bound %f must be below upper bound %f", p.Name, p.Lower, p.Upper)
		}
	}

	cloned := make([]Parameter, len(params))
	copy(cloned, params)
	types := make([]OutcomeType, len(outcomeTypes))
	copy(types, outcomeTypes)

	return &ParameterSpace{
		params:          cloned,
		stimuliPerTrial: stimuliPerTrial,
		outcomeTypes:    types,
	}, nil
}

// Dim returns the number of parameters
func (s *ParameterSpace) Dim() int {
	return len(s.params)
}

// StimuliPerTrial returns how many parameter vectors form one trial
func (s *ParameterSpace) StimuliPerTrial() int {
	return s.stimuliPerTrial
}

// OutcomeTypes returns a copy of the outcome channel tags
func (s *ParameterSpace) OutcomeTypes() []OutcomeType {
	types := make([]OutcomeType, len(s.outcomeTypes))
	copy(types, s.outcomeTypes)
	return types
}

// NumOutcomes returns the number of expected outcome channels
func (s *ParameterSpace) NumOutcomes() int {
	return len(s.outcomeTypes)
}

// Parameters returns a copy of the parameter definitions
func (s *ParameterSpace) Parameters() []Parameter {
	params := make([]Parameter, len(s.params))
	copy(params, s.params)
	return params
}

// Bounds returns the lower and upper bound vectors
func (s *ParameterSpace) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(s.params))
	upper = make([]float64, len(s.params))
	for i, p := range s.params {
		lower[i] = p.Lower
		upper[i] = p.Upper
	}
	return lower, upper
}

// Center returns the midpoint of the search box
func (s *ParameterSpace) Center() []float64 {
	c := make([]float64, len(s.params))
	for i, p := range s.params {
		c[i] = (p.Lower + p.Upper) / 2
	}
	return c
}

// FromUnit maps a point on the unit cube onto the bounded box
func (s *ParameterSpace) FromUnit(u []float64) ([]float64, error) {
	if len(u) != len(s.params) {
		return nil, fmt.Errorf("expected %d components, got %d", len(s.params), len(u))
	}
	v := make([]float64, len(u))
	for i, p := range s.params {
		v[i] = p.Lower + u[i]*(p.Upper-p.Lower)
	}
	return v, nil
}

// ValidatePoint checks that a single parameter vector lies inside the box,
// inclusive of bounds. Returns a *BoundsError on violation.
func (s *ParameterSpace) ValidatePoint(point []float64) error {
	if len(point) != len(s.params) {
		return fmt.Errorf("expected %d parameters, got %d", len(s.params), len(point))
	}
	for i, p := range s.params {
		if point[i] < p.Lower || point[i] > p.Upper {
			return &BoundsError{
				Param: p.Name,
				Value: point[i],
				Lower: p.Lower,
				Upper: p.Upper,
			}
		}
	}
	return nil
}

// ValidateTrial checks every stimulus vector of a trial against the box
func (s *ParameterSpace) ValidateTrial(t *Trial) error {
	if t == nil {
		return fmt.Errorf("trial is nil")
	}
	if len(t.Stimuli) != s.stimuliPerTrial {
		return fmt.Errorf("expected %d stimuli, got %d", s.stimuliPerTrial, len(t.Stimuli))
	}
	for _, stim := range t.Stimuli {
		if err := s.ValidatePoint(stim); err != nil {
			return err
		}
	}
	return nil
}

// BoundsError indicates a parameter value outside its configured bounds
type BoundsError struct {
	Param string
	Value float64
	Lower float64
	Upper float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("parameter %s: value %f outside bounds [%f, %f]", e.Param, e.Value, e.Lower, e.Upper)
}
