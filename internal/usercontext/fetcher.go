package usercontext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/ashureev/vital-labs/internal/store"
)

// Fetcher loads the records of one domain for a user.
type Fetcher interface {
	Fetch(ctx context.Context, userID string, spec DomainSpec) ([]domain.Record, error)
}

// StoreFetcher reads domains from the repository and normalizes payloads
// into typed records. Rows whose payload cannot be decoded are skipped.
type StoreFetcher struct {
	repo store.Repository
	now  func() time.Time
}

// NewStoreFetcher creates a fetcher backed by repo.
func NewStoreFetcher(repo store.Repository) *StoreFetcher {
	return &StoreFetcher{repo: repo, now: time.Now}
}

// Fetch implements Fetcher.
func (f *StoreFetcher) Fetch(ctx context.Context, userID string, spec DomainSpec) ([]domain.Record, error) {
	switch spec.Source {
	case SourceConversations:
		return f.fetchConversations(ctx, userID, spec)
	case SourceKnowledge:
		return f.fetchKnowledge(ctx, spec)
	default:
		return f.fetchRecords(ctx, userID, spec)
	}
}

func (f *StoreFetcher) fetchRecords(ctx context.Context, userID string, spec DomainSpec) ([]domain.Record, error) {
	q := store.RecordQuery{UserID: userID, Domain: spec.ID, Limit: spec.Limit}
	if spec.Window > 0 {
		q.Since = f.now().Add(-spec.Window)
	}
	rows, err := f.repo.ListRecords(ctx, q)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		data, err := domain.DecodePayload(spec.ID, row.Payload)
		if err != nil {
			slog.Warn("Skipping undecodable record",
				"user_id", userID,
				"domain", spec.ID,
				"record_id", row.ID,
				"error", err,
			)
			continue
		}
		records = append(records, domain.Record{
			ID:         row.ID,
			Domain:     spec.ID,
			RecordedAt: row.RecordedAt,
			Data:       data,
		})
	}
	return records, nil
}

func (f *StoreFetcher) fetchConversations(ctx context.Context, userID string, spec DomainSpec) ([]domain.Record, error) {
	rows, err := f.repo.ListConversations(ctx, userID, spec.Limit)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(rows))
	for i := range rows {
		row := rows[i]
		records = append(records, domain.Record{
			ID:         row.ID,
			Domain:     spec.ID,
			RecordedAt: row.Timestamp,
			Data:       &row,
		})
	}
	return records, nil
}

func (f *StoreFetcher) fetchKnowledge(ctx context.Context, spec DomainSpec) ([]domain.Record, error) {
	entries, err := f.repo.ListKnowledge(ctx, spec.Limit)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		records = append(records, domain.Record{
			ID:     fmt.Sprintf("kb-%d", i),
			Domain: spec.ID,
			Data:   &entry,
		})
	}
	return records, nil
}
