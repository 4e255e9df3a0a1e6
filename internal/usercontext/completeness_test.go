package usercontext

import (
	"testing"

	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presentSet(id domain.DomainID) domain.DomainRecordSet {
	return domain.DomainRecordSet{Domain: id, OK: true, Records: []domain.Record{{ID: "r", Domain: id}}}
}

func TestDefaultWeightsSumToTotal(t *testing.T) {
	t.Parallel()

	sum := 0
	for id, w := range DefaultWeights() {
		assert.True(t, id.IsValid(), id)
		assert.GreaterOrEqual(t, w, 0)
		sum += w
	}
	assert.Equal(t, TotalWeight, sum)

	_, err := NewScorer(DefaultWeights(), 60)
	require.NoError(t, err)
}

func TestNewScorerRejectsBadTables(t *testing.T) {
	t.Parallel()

	_, err := NewScorer(map[domain.DomainID]int{domain.DomainProfile: 50}, 60)
	assert.Error(t, err, "sum below total")

	_, err = NewScorer(map[domain.DomainID]int{domain.DomainProfile: 110, domain.DomainSleep: -10}, 60)
	assert.Error(t, err, "negative weight")

	_, err = NewScorer(map[domain.DomainID]int{"made_up": 100}, 60)
	assert.Error(t, err, "unknown domain")

	_, err = NewScorer(DefaultWeights(), 101)
	assert.Error(t, err, "threshold out of range")
}

func TestScoreProfileAndPhysicalIsThirtyPercent(t *testing.T) {
	t.Parallel()

	s, err := NewScorer(DefaultWeights(), 60)
	require.NoError(t, err)

	score := s.Score(map[domain.DomainID]domain.DomainRecordSet{
		domain.DomainProfile:      presentSet(domain.DomainProfile),
		domain.DomainPhysicalData: presentSet(domain.DomainPhysicalData),
	})
	assert.Equal(t, 30, score.Percentage)
	assert.False(t, score.SufficientForFullAnalysis)
	assert.NotContains(t, score.MissingDomains, domain.DomainProfile)
	assert.Contains(t, score.MissingDomains, domain.DomainAnamnesis)
}

func TestScoreBoundsAndEmptySets(t *testing.T) {
	t.Parallel()

	s, err := NewScorer(DefaultWeights(), 60)
	require.NoError(t, err)

	empty := s.Score(nil)
	assert.Equal(t, 0, empty.Percentage)

	all := map[domain.DomainID]domain.DomainRecordSet{}
	for _, id := range domain.AllDomains {
		all[id] = presentSet(id)
	}
	full := s.Score(all)
	assert.Equal(t, 100, full.Percentage)
	assert.Empty(t, full.MissingDomains)
	assert.True(t, full.SufficientForFullAnalysis)
}

func TestScoreFailedOrEmptyFetchDoesNotCount(t *testing.T) {
	t.Parallel()

	s, err := NewScorer(DefaultWeights(), 60)
	require.NoError(t, err)

	score := s.Score(map[domain.DomainID]domain.DomainRecordSet{
		domain.DomainProfile:      {Domain: domain.DomainProfile, OK: false, Error: "timeout"},
		domain.DomainPhysicalData: {Domain: domain.DomainPhysicalData, OK: true},
	})
	assert.Equal(t, 0, score.Percentage)
}

func TestScoreIsMonotonic(t *testing.T) {
	t.Parallel()

	s, err := NewScorer(DefaultWeights(), 60)
	require.NoError(t, err)

	sets := map[domain.DomainID]domain.DomainRecordSet{}
	prev := s.Score(sets).Percentage
	for _, id := range domain.AllDomains {
		sets[id] = presentSet(id)
		got := s.Score(sets).Percentage
		assert.GreaterOrEqual(t, got, prev, "adding %s lowered completeness", id)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
		prev = got
	}
}

func TestWeightsFromConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultWeights(), WeightsFromConfig(nil))
	got := WeightsFromConfig(map[string]int{"profile": 100})
	assert.Equal(t, map[domain.DomainID]int{domain.DomainProfile: 100}, got)
}
