package domain

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// DecisionLogEntry is one decision the candidate made and the stage it was made in.
type DecisionLogEntry struct {
	Stage     Stage  `json:"stage"`
	Decision  string `json:"decision"`
	Rationale string `json:"rationale,omitempty"`
}

// EvidencePackSummary is the structured assessment derived from a session's event log.
type EvidencePackSummary struct {
	RoleLevelEstimate   string             `json:"roleLevelEstimate"`
	Confidence          Confidence         `json:"confidence"`
	Strengths           []string           `json:"strengths"`
	Risks               []string           `json:"risks"`
	DecisionLog         []DecisionLogEntry `json:"decisionLog"`
	Observations        []string           `json:"observations"`
	RecommendedNextStep string             `json:"recommendedNextStep"`
	Highlights          []string           `json:"highlights"`
}

// EvidencePack is generated once per completed session and can be read by
// anyone holding its ShareID.
type EvidencePack struct {
	ID          EvidencePackID
	SessionID   SessionID
	ShareID     ShareID
	Summary     EvidencePackSummary
	GeneratedAt Timestamp
}

// Normalize replaces nil lists with empty ones so the JSON form is stable.
func (s *EvidencePackSummary) Normalize() {
	if s.Strengths == nil {
		s.Strengths = []string{}
	}
	if s.Risks == nil {
		s.Risks = []string{}
	}
	if s.DecisionLog == nil {
		s.DecisionLog = []DecisionLogEntry{}
	}
	if s.Observations == nil {
		s.Observations = []string{}
	}
	if s.Highlights == nil {
		s.Highlights = []string{}
	}
	if !s.Confidence.Valid() {
		s.Confidence = ConfidenceLow
	}
}
