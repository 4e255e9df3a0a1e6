package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Generic is the payload of domains without a typed shape.
type Generic map[string]any

// Record is one normalized row of user history. Data holds a pointer to the
// domain's typed payload (see DecodePayload), or Generic.
type Record struct {
	ID         string    `json:"id"`
	Domain     DomainID  `json:"domain"`
	RecordedAt time.Time `json:"recorded_at"`
	Data       any       `json:"data"`
}

// DomainRecordSet is the outcome of fetching a single domain.
// OK=false marks a failed fetch; the error never aborts aggregation.
type DomainRecordSet struct {
	Domain    DomainID  `json:"domain"`
	Records   []Record  `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// Present reports whether the fetch succeeded and returned at least one record.
func (s DomainRecordSet) Present() bool {
	return s.OK && len(s.Records) > 0
}

func newPayload(id DomainID) any {
	switch id {
	case DomainProfile:
		return &Profile{}
	case DomainPhysicalData:
		return &PhysicalData{}
	case DomainWeightHistory:
		return &WeightMeasurement{}
	case DomainAnamnesis:
		return &Anamnesis{}
	case DomainGoals:
		return &Goal{}
	case DomainNutrition:
		return &NutritionLog{}
	case DomainDailyResponses:
		return &DailyResponse{}
	case DomainExercise:
		return &Exercise{}
	case DomainMedicalDocuments:
		return &MedicalDocument{}
	case DomainPoints:
		return &UserPoints{}
	case DomainChallengeParticipations:
		return &ChallengeParticipation{}
	case DomainKnowledgeBase:
		return &KnowledgeEntry{}
	default:
		return nil
	}
}

// DecodePayload converts a stored JSON payload into the typed value for the
// domain. Domains without a typed shape decode into Generic.
func DecodePayload(id DomainID, raw []byte) (any, error) {
	target := newPayload(id)
	if target == nil {
		var g Generic
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", id, err)
		}
		return g, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", id, err)
	}
	return target, nil
}
