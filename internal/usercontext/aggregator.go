package usercontext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/ashureev/vital-labs/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Aggregator fans out one fetch per catalog domain and assembles a UserContext.
type Aggregator struct {
	fetcher      Fetcher
	catalog      []DomainSpec
	scorer       *Scorer
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewAggregator creates an aggregator. A nil catalog means DefaultCatalog.
func NewAggregator(fetcher Fetcher, catalog []DomainSpec, scorer *Scorer, fetchTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 3 * time.Second
	}
	return &Aggregator{
		fetcher:      fetcher,
		catalog:      catalog,
		scorer:       scorer,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// Aggregate fetches every domain concurrently. A failing or slow domain is
// recorded as a failed set and never aborts the others, so a context is
// always produced. The only error is cancellation of ctx itself, in which
// case the partial context must be discarded.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) (*domain.UserContext, error) {
	var (
		mu   sync.Mutex
		sets = make(map[domain.DomainID]domain.DomainRecordSet, len(a.catalog))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range a.catalog {
		g.Go(func() error {
			set := a.fetchOne(gctx, userID, spec)
			mu.Lock()
			sets[spec.ID] = set
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uc := &domain.UserContext{
		UserID:       userID,
		Domains:      sets,
		AggregatedAt: a.now(),
	}
	for _, set := range sets {
		if set.OK {
			uc.TotalDataPoints += len(set.Records)
		}
	}
	uc.Completeness = a.scorer.Score(sets)
	a.metrics.ObserveCompleteness(uc.Completeness.Percentage)

	a.logger.Info("User context aggregated",
		"user_id", userID,
		"completeness", uc.Completeness.Percentage,
		"total_data_points", uc.TotalDataPoints,
		"missing_domains", len(uc.Completeness.MissingDomains),
	)
	return uc, nil
}

// FetchDomain fetches a single domain under the same timeout and failure
// rules as Aggregate.
func (a *Aggregator) FetchDomain(ctx context.Context, userID string, id domain.DomainID) domain.DomainRecordSet {
	spec, ok := Lookup(a.catalog, id)
	if !ok {
		return domain.DomainRecordSet{Domain: id, FetchedAt: a.now(), Error: "domain not in catalog"}
	}
	return a.fetchOne(ctx, userID, spec)
}

func (a *Aggregator) fetchOne(ctx context.Context, userID string, spec DomainSpec) domain.DomainRecordSet {
	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	records, err := a.fetcher.Fetch(fctx, userID, spec)
	set := domain.DomainRecordSet{Domain: spec.ID, FetchedAt: a.now()}
	if err != nil {
		set.Error = err.Error()
		a.metrics.IncDomainFetchFailure(string(spec.ID))
		a.logger.Warn("Domain fetch failed", "user_id", userID, "domain", spec.ID, "error", err)
		return set
	}
	if spec.Limit > 0 && len(records) > spec.Limit {
		records = records[:spec.Limit]
	}
	set.OK = true
	set.Records = records
	return set
}
