package domain

import (
	"strings"
	"time"
)

// Stage is one of the four fixed phases a work session moves through.
type Stage string

const (
	StageFraming  Stage = "framing"
	StageApproach Stage = "approach"
	StageBuild    Stage = "build"
	StageReview   Stage = "review"
)

// FirstStage is the stage every session starts in.
const FirstStage = StageFraming

// StageInfo is descriptive metadata for a stage. It is not persisted.
type StageInfo struct {
	Stage       Stage         `json:"stage"`
	Title       string        `json:"title"`
	MinDuration time.Duration `json:"-"`
	MaxDuration time.Duration `json:"-"`
}

var stageInfos = []StageInfo{
	{Stage: StageFraming, Title: "Frame the problem", MinDuration: 2 * time.Minute, MaxDuration: 5 * time.Minute},
	{Stage: StageApproach, Title: "Choose an approach", MinDuration: 3 * time.Minute, MaxDuration: 8 * time.Minute},
	{Stage: StageBuild, Title: "Build", MinDuration: 8 * time.Minute, MaxDuration: 30 * time.Minute},
	{Stage: StageReview, Title: "Review", MinDuration: 2 * time.Minute, MaxDuration: 6 * time.Minute},
}

// stageTransitions maps each stage to its successor. A stage absent from
// the table is terminal.
var stageTransitions = map[Stage]Stage{
	StageFraming:  StageApproach,
	StageApproach: StageBuild,
	StageBuild:    StageReview,
}

// Stages returns the stage metadata in progression order.
func Stages() []StageInfo {
	out := make([]StageInfo, len(stageInfos))
	copy(out, stageInfos)
	return out
}

func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		valid := make([]string, 0, len(stageInfos))
		for _, info := range stageInfos {
			valid = append(valid, string(info.Stage))
		}
		return "", invalidValueError("stage", s, valid)
	}
	return st, nil
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the progression, or -1 if s is unknown.
func (s Stage) Index() int {
	for i, info := range stageInfos {
		if info.Stage == s {
			return i
		}
	}
	return -1
}

// Next returns the stage following s, or false when s is terminal.
func (s Stage) Next() (Stage, bool) {
	next, ok := stageTransitions[s]
	return next, ok
}

// StageRecord is the persisted open/close time of one stage in one session.
type StageRecord struct {
	SessionID   SessionID
	Stage       Stage
	StartedAt   Timestamp
	CompletedAt *Timestamp
}

func (r StageRecord) Open() bool {
	return r.CompletedAt == nil
}
