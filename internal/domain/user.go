package domain

import (
	"strings"
	"time"
)

// Profile is the user's basic identity record.
type Profile struct {
	FullName  string     `json:"full_name"`
	Email     string     `json:"email,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	City      string     `json:"city,omitempty"`
}

// FirstName returns the first word of the full name, or "" when unknown.
func (p *Profile) FirstName() string {
	if p == nil {
		return ""
	}
	fields := strings.Fields(p.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// PhysicalData holds body measurements captured at onboarding.
type PhysicalData struct {
	HeightCM      float64 `json:"height_cm"`
	Sex           string  `json:"sex,omitempty"`
	Age           int     `json:"age,omitempty"`
	ActivityLevel string  `json:"activity_level,omitempty"`
}

// UserPoints tracks gamification progress.
type UserPoints struct {
	TotalPoints   int `json:"total_points"`
	Level         int `json:"level"`
	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`
}
