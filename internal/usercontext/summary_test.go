package usercontext

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/stretchr/testify/assert"
)

func set(id domain.DomainID, records ...domain.Record) domain.DomainRecordSet {
	for i := range records {
		records[i].Domain = id
	}
	return domain.DomainRecordSet{Domain: id, OK: true, Records: records}
}

func sampleContext() *domain.UserContext {
	day1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day0 := day1.AddDate(0, 0, -1)
	return &domain.UserContext{
		UserID: "u1",
		Domains: map[domain.DomainID]domain.DomainRecordSet{
			domain.DomainProfile: set(domain.DomainProfile, domain.Record{Data: &domain.Profile{FullName: "Ana Souza", City: "Recife"}}),
			domain.DomainWeightHistory: set(domain.DomainWeightHistory,
				domain.Record{Data: &domain.WeightMeasurement{WeightKG: 70.2, BMI: 25.1}},
				domain.Record{Data: &domain.WeightMeasurement{WeightKG: 71.0}},
			),
			domain.DomainNutrition: set(domain.DomainNutrition,
				domain.Record{RecordedAt: day1, Data: &domain.NutritionLog{Calories: 1000}},
				domain.Record{RecordedAt: day1, Data: &domain.NutritionLog{Calories: 800}},
				domain.Record{RecordedAt: day0, Data: &domain.NutritionLog{Calories: 1600}},
			),
			domain.DomainDailyResponses: set(domain.DomainDailyResponses,
				domain.Record{Data: &domain.DailyResponse{StressLevel: 6, EnergyLevel: 4}},
				domain.Record{Data: &domain.DailyResponse{StressLevel: 8}},
			),
			domain.DomainGoals: set(domain.DomainGoals,
				domain.Record{Data: &domain.Goal{Title: "Perder 5 kg", Status: "in_progress", TargetValue: 5, CurrentValue: 2, Unit: "kg"}},
				domain.Record{Data: &domain.Goal{Title: "Correr 5 km", Status: "completed"}},
			),
			domain.DomainConversations: set(domain.DomainConversations,
				domain.Record{Data: &domain.ConversationRecord{Role: domain.RoleAssistant, Content: "Resposta mais recente"}},
				domain.Record{Data: &domain.ConversationRecord{Role: domain.RoleUser, Content: "Pergunta anterior"}},
			),
			domain.DomainSleep: {Domain: domain.DomainSleep, OK: false, Error: "timeout"},
		},
		Completeness:    domain.CompletenessScore{Percentage: 33, MissingDomains: []domain.DomainID{domain.DomainAnamnesis}},
		TotalDataPoints: 10,
	}
}

func TestSummarizeDerivedSignals(t *testing.T) {
	t.Parallel()

	got := Summarize(sampleContext(), 0)

	assert.Contains(t, got, "Nome: Ana Souza")
	assert.Contains(t, got, "Atual 70.2 kg")
	assert.Contains(t, got, "variação -0.8 kg")
	assert.Contains(t, got, "IMC 25.1")
	assert.Contains(t, got, "média diária de 1700 kcal (últimos 2 dias com registro)")
	assert.Contains(t, got, "estresse médio 7.0/10")
	assert.Contains(t, got, "energia média 4.0/10")
	assert.Contains(t, got, "METAS ATIVAS: Perder 5 kg (2/5 kg)")
	assert.NotContains(t, got, "Correr 5 km")
	assert.Contains(t, got, "COMPLETUDE DOS DADOS: 33%")
	assert.Contains(t, got, "faltando: anamnesis")

	older := strings.Index(got, "Pergunta anterior")
	newer := strings.Index(got, "Resposta mais recente")
	assert.True(t, older >= 0 && newer > older, "conversation lines should be oldest first")
}

func TestSummarizeIsDeterministic(t *testing.T) {
	t.Parallel()

	first := Summarize(sampleContext(), 0)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Summarize(sampleContext(), 0))
	}
}

func TestSummarizeIsBounded(t *testing.T) {
	t.Parallel()

	uc := sampleContext()
	long := strings.Repeat("á", 500)
	uc.Domains[domain.DomainConversations] = set(domain.DomainConversations,
		domain.Record{Data: &domain.ConversationRecord{Role: domain.RoleUser, Content: long}},
	)

	got := Summarize(uc, 0)
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "- usuário:") {
			assert.LessOrEqual(t, utf8.RuneCountInString(line), len("- usuário: ")+conversationRunes)
		}
	}

	short := Summarize(uc, 80)
	assert.LessOrEqual(t, utf8.RuneCountInString(short), 80)
	assert.True(t, utf8.ValidString(short))
}

func TestSummarizeEmptyContext(t *testing.T) {
	t.Parallel()

	got := Summarize(&domain.UserContext{UserID: "u1"}, 0)
	assert.Equal(t, "COMPLETUDE DOS DADOS: 0% (0 registros)", got)
	assert.Empty(t, Summarize(nil, 0))
}
