package firestore

import (
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/worksession/internal/domain"
)

// Summaries are stored as a JSON string so the document shape does not
// depend on the summary schema.
func encodeSummary(sum domain.EvidencePackSummary) (string, error) {
	sum.Normalize()
	data, err := json.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return string(data), nil
}

func decodeSummary(raw string) (domain.EvidencePackSummary, error) {
	var sum domain.EvidencePackSummary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return sum, fmt.Errorf("decode summary: %w", err)
	}
	sum.Normalize()
	return sum, nil
}
