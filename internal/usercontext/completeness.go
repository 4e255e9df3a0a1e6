package usercontext

import (
	"fmt"
	"math"
	"sort"

	"github.com/ashureev/vital-labs/internal/domain"
)

// TotalWeight is the sum every weight table must reach.
const TotalWeight = 100

// DefaultWeights favours the onboarding domains: profile and physical data
// alone account for 30%.
func DefaultWeights() map[domain.DomainID]int {
	return map[domain.DomainID]int{
		domain.DomainPhysicalData:            20,
		domain.DomainAnamnesis:               15,
		domain.DomainProfile:                 10,
		domain.DomainWeightHistory:           10,
		domain.DomainNutrition:               8,
		domain.DomainGoals:                   5,
		domain.DomainFoodAnalysis:            4,
		domain.DomainDailyResponses:          4,
		domain.DomainExercise:                4,
		domain.DomainMedicalDocuments:        3,
		domain.DomainGoalProgress:            2,
		domain.DomainDailyMissions:           2,
		domain.DomainAdvancedTracking:        2,
		domain.DomainDeviceFitness:           1,
		domain.DomainMood:                    1,
		domain.DomainWater:                   1,
		domain.DomainSleep:                   1,
		domain.DomainHealthDiary:             1,
		domain.DomainMedicalReports:          1,
		domain.DomainPrescriptions:           1,
		domain.DomainSupplements:             1,
		domain.DomainChallengeParticipations: 1,
		domain.DomainConversations:           1,
		domain.DomainHeartRate:               1,
	}
}

// Scorer grades a set of domain fetches.
type Scorer struct {
	weights   map[domain.DomainID]int
	threshold int
}

// NewScorer validates the weight table. Weights must be non-negative, name
// known domains and sum to TotalWeight.
func NewScorer(weights map[domain.DomainID]int, threshold int) (*Scorer, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("completeness threshold %d out of range", threshold)
	}
	sum := 0
	for id, w := range weights {
		if !id.IsValid() {
			return nil, fmt.Errorf("completeness weight for unknown domain %q", id)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative completeness weight for %s", id)
		}
		sum += w
	}
	if sum != TotalWeight {
		return nil, fmt.Errorf("completeness weights sum to %d, want %d", sum, TotalWeight)
	}

	copied := make(map[domain.DomainID]int, len(weights))
	for id, w := range weights {
		copied[id] = w
	}
	return &Scorer{weights: copied, threshold: threshold}, nil
}

// WeightsFromConfig converts configured overrides; nil or empty means defaults.
func WeightsFromConfig(raw map[string]int) map[domain.DomainID]int {
	if len(raw) == 0 {
		return DefaultWeights()
	}
	out := make(map[domain.DomainID]int, len(raw))
	for k, v := range raw {
		out[domain.DomainID(k)] = v
	}
	return out
}

// Score computes the completeness of sets. A domain counts as present when its
// fetch succeeded with at least one record. Missing domains are those with a
// positive weight that are not present, sorted by id.
func (s *Scorer) Score(sets map[domain.DomainID]domain.DomainRecordSet) domain.CompletenessScore {
	present := 0
	missing := []domain.DomainID{}
	for id, w := range s.weights {
		if w == 0 {
			continue
		}
		if set, ok := sets[id]; ok && set.Present() {
			present += w
			continue
		}
		missing = append(missing, id)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	pct := int(math.Round(100 * float64(present) / float64(TotalWeight)))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return domain.CompletenessScore{
		Percentage:                pct,
		MissingDomains:            missing,
		SufficientForFullAnalysis: pct >= s.threshold,
	}
}
