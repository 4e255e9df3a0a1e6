package domain

// ChallengeParticipation is a user's enrollment in a health challenge.
type ChallengeParticipation struct {
	ChallengeID string  `json:"challenge_id"`
	Title       string  `json:"title"`
	Progress    float64 `json:"progress"`
	Completed   bool    `json:"completed"`
}

// IsActive returns true if the challenge is still in progress.
func (c *ChallengeParticipation) IsActive() bool {
	return c != nil && !c.Completed
}
