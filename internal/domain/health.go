package domain

// WeightMeasurement is one scale reading, optionally with body composition.
type WeightMeasurement struct {
	WeightKG      float64 `json:"weight_kg"`
	BMI           float64 `json:"bmi,omitempty"`
	BodyFatPct    float64 `json:"body_fat_pct,omitempty"`
	MuscleMassKG  float64 `json:"muscle_mass_kg,omitempty"`
	VisceralFat   float64 `json:"visceral_fat,omitempty"`
	MetabolicRisk string  `json:"metabolic_risk,omitempty"`
}

// Anamnesis is the medical questionnaire answered at onboarding.
type Anamnesis struct {
	ChronicDiseases []string `json:"chronic_diseases,omitempty"`
	Medications     []string `json:"medications,omitempty"`
	Allergies       []string `json:"allergies,omitempty"`
	SleepQuality    int      `json:"sleep_quality,omitempty"`
	StressLevel     int      `json:"stress_level,omitempty"`
	MainGoal        string   `json:"main_goal,omitempty"`
}

// Goal is a user-defined objective.
type Goal struct {
	Title        string  `json:"title"`
	Category     string  `json:"category,omitempty"`
	Status       string  `json:"status"`
	TargetValue  float64 `json:"target_value,omitempty"`
	CurrentValue float64 `json:"current_value,omitempty"`
	Unit         string  `json:"unit,omitempty"`
}

// IsActive returns true for goals that are neither completed nor cancelled.
func (g *Goal) IsActive() bool {
	switch g.Status {
	case "completed", "cancelled", "rejected":
		return false
	default:
		return true
	}
}

// NutritionLog is one tracked meal.
type NutritionLog struct {
	MealType  string   `json:"meal_type,omitempty"`
	FoodItems []string `json:"food_items,omitempty"`
	Calories  float64  `json:"calories"`
	ProteinG  float64  `json:"protein_g,omitempty"`
	CarbsG    float64  `json:"carbs_g,omitempty"`
	FatG      float64  `json:"fat_g,omitempty"`
}

// DailyResponse is one answer from the daily check-in. Levels use a 1-10
// scale; zero means the question was not answered.
type DailyResponse struct {
	Section     string `json:"section,omitempty"`
	QuestionID  string `json:"question_id,omitempty"`
	Answer      string `json:"answer,omitempty"`
	StressLevel int    `json:"stress_level,omitempty"`
	EnergyLevel int    `json:"energy_level,omitempty"`
}

// Exercise is one logged workout.
type Exercise struct {
	Activity    string  `json:"activity"`
	DurationMin int     `json:"duration_min,omitempty"`
	Calories    float64 `json:"calories,omitempty"`
	Intensity   string  `json:"intensity,omitempty"`
}

// MedicalDocument is an uploaded exam or report.
type MedicalDocument struct {
	Title   string `json:"title"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// KnowledgeEntry is a shared reference fact, not owned by any user.
type KnowledgeEntry struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Content  string `json:"content"`
	Priority int    `json:"priority,omitempty"`
}
