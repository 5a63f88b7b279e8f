package expd

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adaptivelab/experiment-core/internal/strategy"
)

// ExperimentRecord is one live experiment and its sequencer
type ExperimentRecord struct {
	ID              string
	Name            string
	ConfigYAML      []byte
	Sequencer       *strategy.Sequencer
	CreatedAtUnixMs int64
}

// ExperimentStore holds all live experiments, keyed by ID
type ExperimentStore struct {
	mu          sync.RWMutex
	experiments map[string]*ExperimentRecord
}

func NewExperimentStore() *ExperimentStore {
	return &ExperimentStore{
		experiments: make(map[string]*ExperimentRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a new experiment. An empty ID gets a generated UUID.
func (s *ExperimentStore) Create(id, name string, cfg []byte, seq *strategy.Sequencer) (*ExperimentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.experiments[id]; exists {
		return nil, fmt.Errorf("experiment already exists: %s", id)
	}

	rec := &ExperimentRecord{
		ID:              id,
		Name:            name,
		ConfigYAML:      cfg,
		Sequencer:       seq,
		CreatedAtUnixMs: nowUnixMs(),
	}
	s.experiments[id] = rec
	return rec, nil
}

func (s *ExperimentStore) Get(id string) (*ExperimentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.experiments[id]
	return rec, ok
}

func (s *ExperimentStore) List(limit int) []*ExperimentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*ExperimentRecord, 0, min(limit, len(s.experiments)))
	for _, rec := range s.experiments {
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}
