package domain

import "sort"

// Sequencer tracks the current stage of a session and which stages have
// been completed. It holds state only; deciding when a stage is complete
// belongs to the caller.
type Sequencer struct {
	current   Stage
	completed map[Stage]bool
}

func NewSequencer() *Sequencer {
	return &Sequencer{
		current:   FirstStage,
		completed: make(map[Stage]bool),
	}
}

// RestoreSequencer rebuilds a sequencer from persisted stage records.
// The furthest stage with a record becomes current.
func RestoreSequencer(records []StageRecord) *Sequencer {
	seq := NewSequencer()
	if len(records) == 0 {
		return seq
	}

	sorted := make([]StageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stage.Index() < sorted[j].Stage.Index()
	})

	for _, r := range sorted {
		if !r.Stage.Valid() {
			continue
		}
		seq.current = r.Stage
		if !r.Open() {
			seq.completed[r.Stage] = true
		}
	}
	return seq
}

func (s *Sequencer) Current() Stage {
	return s.current
}

func (s *Sequencer) IsComplete(stage Stage) bool {
	return s.completed[stage]
}

// Completed returns the completed stages in progression order.
func (s *Sequencer) Completed() []Stage {
	out := make([]Stage, 0, len(s.completed))
	for _, info := range stageInfos {
		if s.completed[info.Stage] {
			out = append(out, info.Stage)
		}
	}
	return out
}

// MarkComplete marks the current stage as complete.
func (s *Sequencer) MarkComplete() {
	s.completed[s.current] = true
}

// Advance moves to the next stage if the current one is complete.
// From the terminal stage it does nothing and returns false.
func (s *Sequencer) Advance() bool {
	if !s.completed[s.current] {
		return false
	}
	next, ok := s.current.Next()
	if !ok {
		return false
	}
	s.current = next
	return true
}

// Terminal reports whether the current stage has no successor.
func (s *Sequencer) Terminal() bool {
	_, ok := s.current.Next()
	return !ok
}

// Progress is (index+1)/stage count of the current stage.
func (s *Sequencer) Progress() float64 {
	return float64(s.current.Index()+1) / float64(len(stageInfos))
}
