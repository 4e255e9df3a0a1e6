// Package domain contains core domain types for the vital-labs assistant.
package domain

// DomainID identifies one source of user history.
type DomainID string

// Known domains. The set is closed; unknown values are rejected by the catalog.
const (
	DomainProfile                 DomainID = "profile"
	DomainPhysicalData            DomainID = "physical_data"
	DomainWeightHistory           DomainID = "weight_history"
	DomainAnamnesis               DomainID = "anamnesis"
	DomainGoals                   DomainID = "goals"
	DomainGoalProgress            DomainID = "goal_progress"
	DomainNutrition               DomainID = "nutrition"
	DomainFoodAnalysis            DomainID = "food_analysis"
	DomainDailyResponses          DomainID = "daily_responses"
	DomainDailyMissions           DomainID = "daily_missions"
	DomainAdvancedTracking        DomainID = "advanced_tracking"
	DomainExercise                DomainID = "exercise"
	DomainDeviceFitness           DomainID = "device_fitness"
	DomainMood                    DomainID = "mood"
	DomainWater                   DomainID = "water"
	DomainSleep                   DomainID = "sleep"
	DomainHealthDiary             DomainID = "health_diary"
	DomainMedicalDocuments        DomainID = "medical_documents"
	DomainMedicalReports          DomainID = "medical_reports"
	DomainPrescriptions           DomainID = "prescriptions"
	DomainSupplements             DomainID = "supplements"
	DomainChallengeParticipations DomainID = "challenge_participations"
	DomainChallengeLogs           DomainID = "challenge_logs"
	DomainAchievements            DomainID = "achievements"
	DomainPoints                  DomainID = "points"
	DomainConversations           DomainID = "conversations"
	DomainChatMessages            DomainID = "chat_messages"
	DomainAssistantMemory         DomainID = "assistant_memory"
	DomainHeartRate               DomainID = "heart_rate"
	DomainWeeklyAnalyses          DomainID = "weekly_analyses"
	DomainCourseProgress          DomainID = "course_progress"
	DomainKnowledgeBase           DomainID = "knowledge_base"
)

// AllDomains lists every domain in a stable order.
var AllDomains = []DomainID{
	DomainProfile,
	DomainPhysicalData,
	DomainWeightHistory,
	DomainAnamnesis,
	DomainGoals,
	DomainGoalProgress,
	DomainNutrition,
	DomainFoodAnalysis,
	DomainDailyResponses,
	DomainDailyMissions,
	DomainAdvancedTracking,
	DomainExercise,
	DomainDeviceFitness,
	DomainMood,
	DomainWater,
	DomainSleep,
	DomainHealthDiary,
	DomainMedicalDocuments,
	DomainMedicalReports,
	DomainPrescriptions,
	DomainSupplements,
	DomainChallengeParticipations,
	DomainChallengeLogs,
	DomainAchievements,
	DomainPoints,
	DomainConversations,
	DomainChatMessages,
	DomainAssistantMemory,
	DomainHeartRate,
	DomainWeeklyAnalyses,
	DomainCourseProgress,
	DomainKnowledgeBase,
}

// IsValid reports whether d is one of the known domains.
func (d DomainID) IsValid() bool {
	for _, known := range AllDomains {
		if d == known {
			return true
		}
	}
	return false
}
