package strategy

import (
	"fmt"
	"time"

	"github.com/adaptivelab/experiment-core/internal/acquisition"
	"github.com/adaptivelab/experiment-core/internal/generator"
	"github.com/adaptivelab/experiment-core/internal/metrics"
	"github.com/adaptivelab/experiment-core/internal/model"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
	"github.com/adaptivelab/experiment-core/pkg/config"
)

// BuildSequencer assembles a ready-to-run sequencer from an experiment
// definition. All generator, model and acquisition names are resolved here,
// so an unknown name fails at startup rather than mid-experiment.
func BuildSequencer(exp *config.Experiment, collector *metrics.Collector) (*Sequencer, error) {
	sp, err := buildSpace(exp)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	strategies := make([]*Strategy, 0, len(exp.Strategies))
	for i := range exp.Strategies {
		s, err := buildStrategy(&exp.Strategies[i], sp, collector)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", exp.Strategies[i].Name, err)
		}
		strategies = append(strategies, s)
	}
	return NewSequencer(sp, strategies, collector)
}

func buildSpace(exp *config.Experiment) (*space.ParameterSpace, error) {
	params := make([]space.Parameter, 0, len(exp.Parameters))
	for _, p := range exp.Parameters {
		params = append(params, space.Parameter{Name: p.Name, Lower: p.Lower, Upper: p.Upper})
	}
	outcomes := make([]space.OutcomeType, 0, len(exp.OutcomeTypes))
	for _, ot := range exp.OutcomeTypes {
		outcomes = append(outcomes, space.OutcomeType(ot))
	}
	return space.NewParameterSpace(params, exp.StimuliPerTrial, outcomes)
}

func buildStrategy(sc *config.StrategyConfig, sp *space.ParameterSpace, collector *metrics.Collector) (*Strategy, error) {
	switch sc.Generator {
	case "sobol":
		gen, err := generator.NewSobol(sp.Dim(), sc.NPoints, sc.Seed)
		if err != nil {
			return nil, err
		}
		return NewStrategy(sc.Name, gen, nil, 0, sc.MinAsks, sc.MinTotalOutcomeOccurrences), nil

	case "optimize_acqf":
		surrogate, err := buildModel(sc)
		if err != nil {
			return nil, err
		}
		surrogate = &timedModel{
			inner:     surrogate,
			strategy:  sc.Name,
			collector: collector,
		}
		acqf, err := buildAcquisition(sc)
		if err != nil {
			return nil, err
		}
		gen, err := generator.NewModelBased(surrogate, acqf, sc.Restarts, sc.Samps, sc.Seed,
			generator.StimulusSampling(sc.StimulusSampling), sc.Timeout())
		if err != nil {
			return nil, err
		}
		// Warm-up draws reuse the strategy seed so the whole phase stays
		// reproducible from one number
		fallback, err := generator.NewSobol(sp.Dim(), 0, sc.Seed)
		if err != nil {
			return nil, err
		}
		return NewStrategy(sc.Name, gen, fallback, surrogate.MinObservations(), sc.MinAsks, sc.MinTotalOutcomeOccurrences), nil

	default:
		return nil, fmt.Errorf("unknown generator: %s", sc.Generator)
	}
}

func buildModel(sc *config.StrategyConfig) (model.SurrogateModel, error) {
	if sc.Model == nil {
		return nil, fmt.Errorf("generator optimize_acqf requires a model block")
	}
	return model.New(model.Config{
		Name:         sc.Model.Name,
		Mean:         sc.Model.Mean,
		Covariance:   sc.Model.Covariance,
		Lengthscale:  sc.Model.Lengthscale,
		OutputScale:  sc.Model.OutputScale,
		Noise:        sc.Model.Noise,
		InducingSize: sc.Model.InducingSize,
		MinData:      sc.Model.MinData,
		Seed:         sc.Seed,
	})
}

func buildAcquisition(sc *config.StrategyConfig) (acquisition.Acquisition, error) {
	if sc.Acquisition == nil {
		return nil, fmt.Errorf("generator optimize_acqf requires an acquisition block")
	}
	cfg := acquisition.Config{Name: sc.Acquisition.Name, Beta: sc.Acquisition.Beta, Xi: sc.Acquisition.Xi}
	if sc.Acquisition.Xi == 0 {
		cfg.Xi = -1 // let the factory apply its default margin
	}
	return acquisition.New(cfg)
}

// timedModel reports fit durations to the collector
type timedModel struct {
	inner     model.SurrogateModel
	strategy  string
	collector *metrics.Collector
}

func (m *timedModel) Fit(snap *record.Snapshot) (model.Posterior, error) {
	start := time.Now()
	post, err := m.inner.Fit(snap)
	if err == nil {
		m.collector.ObserveFitDuration(m.strategy, time.Since(start))
	}
	return post, err
}

func (m *timedModel) MinObservations() int { return m.inner.MinObservations() }

func (m *timedModel) Name() string { return m.inner.Name() }
