package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/vital-labs/internal/conversation"
	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/ashureev/vital-labs/internal/metrics"
	"github.com/ashureev/vital-labs/internal/orchestrator"
	"github.com/ashureev/vital-labs/internal/persona"
	"github.com/ashureev/vital-labs/internal/usercontext"
)

var (
	// ErrMissingUserID is returned before any data is read.
	ErrMissingUserID = errors.New("userId is required")
	// ErrEmptyMessage is returned for blank messages.
	ErrEmptyMessage = errors.New("message is required")
)

const recordTimeout = 10 * time.Second

// ContextSource gathers user history.
type ContextSource interface {
	Aggregate(ctx context.Context, userID string) (*domain.UserContext, error)
	FetchDomain(ctx context.Context, userID string, id domain.DomainID) domain.DomainRecordSet
}

// Runner resolves and runs provider chains.
type Runner interface {
	Resolve(ids []string, ov orchestrator.Override) []orchestrator.Entry
	Run(ctx context.Context, plan orchestrator.Plan) (*orchestrator.Result, error)
}

// Recorder persists answered turns.
type Recorder interface {
	NewConversationID() string
	Record(ctx context.Context, t conversation.Turn) error
}

// Options are the per-service settings taken from configuration.
type Options struct {
	Chain           []string
	FastPathEnabled bool
	FastProvider    string
	FastTimeout     time.Duration
	FastMaxRunes    int
	Locale          string
	MaxSummaryRunes int
	TurnTimeout     time.Duration
}

// Service runs chat turns.
type Service struct {
	classifier *persona.Classifier
	context    ContextSource
	runner     Runner
	recorder   Recorder
	opts       Options
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService wires a turn pipeline.
func NewService(cs ContextSource, runner Runner, recorder Recorder, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Locale == "" {
		opts.Locale = "pt-BR"
	}
	return &Service{
		classifier: persona.NewClassifier(opts.FastMaxRunes),
		context:    cs,
		runner:     runner,
		recorder:   recorder,
		opts:       opts,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Handle answers one message. Provider failures never surface as errors:
// an exhausted chain, or a turn that runs out of TurnTimeout, yields the
// fallback greeting with Success true. Errors are returned for invalid input,
// an empty provider chain, aggregation failures and caller cancellation.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	start := s.now()
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	tctx := ctx
	if s.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.opts.TurnTimeout)
		defer cancel()
	}

	locale := s.opts.Locale
	source := ""
	if req.Context != nil {
		if req.Context.Locale != "" {
			locale = req.Context.Locale
		}
		source = req.Context.Source
	}

	override, _ := persona.Parse(req.ForcePersona)
	cls := s.classifier.Classify(message, override)
	ov := orchestrator.Override{Provider: req.ForceProvider, Model: req.ForceModel}

	t := turn{persona: cls.Persona, path: "full"}
	if cls.FastPathEligible && s.opts.FastPathEnabled && ov == (orchestrator.Override{}) {
		s.fastPath(tctx, userID, message, locale, &t)
	}
	if t.result == nil {
		if err := s.fullPath(tctx, userID, message, locale, ov, &t); err != nil {
			if !budgetExpired(ctx, tctx, err) {
				return nil, err
			}
			// The caller is still waiting: an expired turn budget counts as an
			// exhausted chain.
			s.logger.Warn("Turn budget exhausted, serving fallback",
				"user_id", userID,
				"budget", s.opts.TurnTimeout,
				"error", err,
			)
			t.result = &orchestrator.Result{
				Text:         orchestrator.FallbackMessage(locale, t.persona, t.firstName),
				ProviderUsed: orchestrator.FallbackProvider,
				Exhausted:    true,
			}
		}
	}

	info := t.persona.Describe()
	convID := s.recorder.NewConversationID()
	s.record(ctx, conversation.Turn{
		ConversationID: convID,
		SessionID:      req.SessionID,
		UserID:         userID,
		Channel:        req.Channel,
		Source:         source,
		UserMessage:    message,
		Reply:          t.result.Text,
		Persona:        t.persona,
		ProviderUsed:   t.result.ProviderUsed,
		Model:          t.result.Model,
		Completeness:   t.completeness,
		FastPath:       t.path == "fast",
		ReceivedAt:     start,
	})

	path := t.path
	if t.result.Exhausted {
		path = "fallback"
	}
	s.metrics.ObserveTurn(string(t.persona), path, start)
	s.logger.Info("Assistant turn completed",
		"user_id", userID,
		"conversation_id", convID,
		"persona", t.persona,
		"path", path,
		"provider_used", t.result.ProviderUsed,
		"attempts", len(t.result.Attempts),
		"completeness", t.completeness,
		"duration", s.now().Sub(start),
	)

	return &Response{
		Message:         t.result.Text,
		Persona:         string(t.persona),
		PersonaName:     info.DisplayName,
		Completeness:    t.completeness,
		TotalDataPoints: t.dataPoints,
		ProviderUsed:    t.result.ProviderUsed,
		ConversationID:  convID,
		Success:         true,
	}, nil
}

type turn struct {
	persona      persona.Persona
	path         string
	firstName    string
	result       *orchestrator.Result
	completeness int
	dataPoints   int
}

// fastPath answers small talk from the profile alone through a single
// provider. On any failure t.result stays nil and the caller falls through
// to the full path.
func (s *Service) fastPath(ctx context.Context, userID, message, locale string, t *turn) {
	entries := s.runner.Resolve([]string{s.opts.FastProvider}, orchestrator.Override{})
	if len(entries) == 0 {
		s.logger.Debug("Fast path provider unavailable", "provider", s.opts.FastProvider)
		return
	}
	entry := entries[0]
	if s.opts.FastTimeout > 0 {
		entry.Timeout = s.opts.FastTimeout
	}

	var firstName string
	if set := s.context.FetchDomain(ctx, userID, domain.DomainProfile); set.Present() {
		if p, ok := set.Records[0].Data.(*domain.Profile); ok {
			firstName = p.FirstName()
		}
	}
	t.firstName = firstName

	res, err := s.runner.Run(ctx, orchestrator.Plan{
		System:  persona.FastPrompt(t.persona, firstName, orchestrator.BaseLanguage(locale)),
		Message: message,
		Entries: []orchestrator.Entry{entry},
		Locale:  locale,
	})
	if err != nil || res.Exhausted {
		s.logger.Info("Fast path failed, using full path", "user_id", userID, "error", err)
		return
	}
	t.result = res
	t.path = "fast"
}

func (s *Service) fullPath(ctx context.Context, userID, message, locale string, ov orchestrator.Override, t *turn) error {
	uc, err := s.context.Aggregate(ctx, userID)
	if err != nil {
		return fmt.Errorf("aggregate user context: %w", err)
	}
	firstName := uc.Profile().FirstName()
	t.firstName = firstName
	t.completeness = uc.Completeness.Percentage
	t.dataPoints = uc.TotalDataPoints

	system := persona.SystemPrompt(t.persona, persona.PromptInput{
		FirstName:    firstName,
		Digest:       usercontext.Summarize(uc, s.opts.MaxSummaryRunes),
		Completeness: uc.Completeness.Percentage,
		Sufficient:   uc.Completeness.SufficientForFullAnalysis,
		Language:     orchestrator.BaseLanguage(locale),
	})

	res, err := s.runner.Run(ctx, orchestrator.Plan{
		System:   system,
		Message:  message,
		Entries:  s.runner.Resolve(s.opts.Chain, ov),
		Fallback: orchestrator.FallbackMessage(locale, t.persona, firstName),
		Locale:   locale,
	})
	if err != nil {
		return fmt.Errorf("run provider chain: %w", err)
	}

	t.result = res
	return nil
}

// budgetExpired reports whether err comes from the turn deadline running out
// while the caller's own context is still live.
func budgetExpired(caller, turnCtx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) &&
		errors.Is(turnCtx.Err(), context.DeadlineExceeded) &&
		caller.Err() == nil
}

// record persists the turn detached from request cancellation. Failures are
// logged and counted; the reply is still returned.
func (s *Service) record(ctx context.Context, t conversation.Turn) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.recorder.Record(rctx, t); err != nil {
		s.metrics.IncPersistenceFailure()
		s.logger.Error("Failed to record conversation",
			"user_id", t.UserID,
			"conversation_id", t.ConversationID,
			"error", err,
		)
	}
}
