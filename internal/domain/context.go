package domain

import "time"

// CompletenessScore grades how much of the user's history is available.
type CompletenessScore struct {
	Percentage                int        `json:"percentage"`
	MissingDomains            []DomainID `json:"missing_domains"`
	SufficientForFullAnalysis bool       `json:"sufficient_for_full_analysis"`
}

// UserContext is the aggregated history for one message. It is built per
// request and never shared.
type UserContext struct {
	UserID          string                       `json:"user_id"`
	Domains         map[DomainID]DomainRecordSet `json:"domains"`
	Completeness    CompletenessScore            `json:"completeness"`
	TotalDataPoints int                          `json:"total_data_points"`
	AggregatedAt    time.Time                    `json:"aggregated_at"`
}

// Records returns the records of a domain, or nil if the fetch failed.
func (c *UserContext) Records(id DomainID) []Record {
	if c == nil {
		return nil
	}
	set, ok := c.Domains[id]
	if !ok || !set.OK {
		return nil
	}
	return set.Records
}

// Latest returns the most recent record of a domain.
func (c *UserContext) Latest(id DomainID) (Record, bool) {
	records := c.Records(id)
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}

// Profile returns the user's profile payload when present.
func (c *UserContext) Profile() *Profile {
	rec, ok := c.Latest(DomainProfile)
	if !ok {
		return nil
	}
	p, _ := rec.Data.(*Profile)
	return p
}
