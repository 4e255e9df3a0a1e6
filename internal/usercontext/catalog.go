// Package usercontext aggregates a user's history across data domains,
// scores its completeness and condenses it for prompting.
package usercontext

import (
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
)

// Source says where a domain's records live.
type Source int

const (
	SourceRecords Source = iota
	SourceConversations
	SourceKnowledge
)

// DomainSpec bounds one domain fetch. Every fetch is capped by Limit, Window
// or both, newest first.
type DomainSpec struct {
	ID     domain.DomainID
	Source Source
	Limit  int
	Window time.Duration
}

const day = 24 * time.Hour

// DefaultCatalog returns the fetch bounds for every known domain.
func DefaultCatalog() []DomainSpec {
	return []DomainSpec{
		{ID: domain.DomainProfile, Limit: 1},
		{ID: domain.DomainPhysicalData, Limit: 1},
		{ID: domain.DomainWeightHistory, Limit: 200},
		{ID: domain.DomainAnamnesis, Limit: 1},
		{ID: domain.DomainGoals, Limit: 100},
		{ID: domain.DomainGoalProgress, Limit: 100},
		{ID: domain.DomainNutrition, Window: 90 * day, Limit: 500},
		{ID: domain.DomainFoodAnalysis, Limit: 100},
		{ID: domain.DomainDailyResponses, Window: 90 * day, Limit: 500},
		{ID: domain.DomainDailyMissions, Limit: 90},
		{ID: domain.DomainAdvancedTracking, Limit: 90},
		{ID: domain.DomainExercise, Limit: 100},
		{ID: domain.DomainDeviceFitness, Window: 30 * day, Limit: 200},
		{ID: domain.DomainMood, Limit: 90},
		{ID: domain.DomainWater, Limit: 90},
		{ID: domain.DomainSleep, Limit: 90},
		{ID: domain.DomainHealthDiary, Limit: 90},
		{ID: domain.DomainMedicalDocuments, Limit: 50},
		{ID: domain.DomainMedicalReports, Limit: 50},
		{ID: domain.DomainPrescriptions, Limit: 50},
		{ID: domain.DomainSupplements, Limit: 50},
		{ID: domain.DomainChallengeParticipations, Limit: 50},
		{ID: domain.DomainChallengeLogs, Limit: 200},
		{ID: domain.DomainAchievements, Limit: 100},
		{ID: domain.DomainPoints, Limit: 1},
		{ID: domain.DomainConversations, Source: SourceConversations, Limit: 50},
		{ID: domain.DomainChatMessages, Limit: 100},
		{ID: domain.DomainAssistantMemory, Limit: 50},
		{ID: domain.DomainHeartRate, Limit: 100},
		{ID: domain.DomainWeeklyAnalyses, Limit: 20},
		{ID: domain.DomainCourseProgress, Limit: 50},
		{ID: domain.DomainKnowledgeBase, Source: SourceKnowledge, Limit: 20},
	}
}

// Lookup returns the spec for id from catalog.
func Lookup(catalog []DomainSpec, id domain.DomainID) (DomainSpec, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return DomainSpec{}, false
}
