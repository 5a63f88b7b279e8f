package space

// Trial is one or more parameter vectors presented together for a single
// outcome observation. Trials are immutable once issued; the sequencer hands
// out deep copies.
type Trial struct {
	ID      int64
	Stimuli [][]float64
}

// Clone returns a deep copy of the trial
func (t *Trial) Clone() *Trial {
	if t == nil {
		return nil
	}
	stimuli := make([][]float64, len(t.Stimuli))
	for i, s := range t.Stimuli {
		stimuli[i] = make([]float64, len(s))
		copy(stimuli[i], s)
	}
	return &Trial{ID: t.ID, Stimuli: stimuli}
}
