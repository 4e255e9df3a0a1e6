package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/vital-labs/internal/conversation"
	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/ashureev/vital-labs/internal/orchestrator"
	"github.com/ashureev/vital-labs/internal/provider"
	"github.com/ashureev/vital-labs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	mu         sync.Mutex
	uc         *domain.UserContext
	err        error
	aggregates int
	fetches    []domain.DomainID
}

func (f *fakeContext) Aggregate(_ context.Context, _ string) (*domain.UserContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregates++
	if f.err != nil {
		return nil, f.err
	}
	return f.uc, nil
}

func (f *fakeContext) FetchDomain(_ context.Context, _ string, id domain.DomainID) domain.DomainRecordSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, id)
	if f.uc == nil {
		return domain.DomainRecordSet{Domain: id, OK: true}
	}
	return f.uc.Domains[id]
}

type fakeProvider struct {
	id    string
	mu    sync.Mutex
	calls []provider.Request
	reply string
	err   error
	hang  bool // block until the attempt context ends
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Attempt(ctx context.Context, req provider.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	reply, err, hang := p.reply, p.err, p.hang
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeRecorder struct {
	mu    sync.Mutex
	turns []conversation.Turn
	err   error
}

func (r *fakeRecorder) NewConversationID() string { return "unified_test" }

func (r *fakeRecorder) Record(_ context.Context, t conversation.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
	return r.err
}

type fixture struct {
	ctx      *fakeContext
	gateway  *fakeProvider
	openai   *fakeProvider
	ollama   *fakeProvider
	recorder *fakeRecorder
	svc      *Service
}

func userContext() *domain.UserContext {
	return &domain.UserContext{
		UserID: "u1",
		Domains: map[domain.DomainID]domain.DomainRecordSet{
			domain.DomainProfile: {
				Domain: domain.DomainProfile,
				OK:     true,
				Records: []domain.Record{{
					ID:     "p1",
					Domain: domain.DomainProfile,
					Data:   &domain.Profile{FullName: "Ana Souza"},
				}},
			},
		},
		Completeness:    domain.CompletenessScore{Percentage: 72, SufficientForFullAnalysis: true},
		TotalDataPoints: 9,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      &fakeContext{uc: userContext()},
		gateway:  &fakeProvider{id: "gateway", reply: "Ótima pergunta, Ana!"},
		openai:   &fakeProvider{id: "openai", reply: "Resposta do backup."},
		ollama:   &fakeProvider{id: "ollama", reply: "Oi Ana! 💚"},
		recorder: &fakeRecorder{},
	}
	reg := provider.NewRegistry()
	reg.Register(f.gateway, provider.Settings{Model: "gemini", Timeout: time.Second})
	reg.Register(f.openai, provider.Settings{Model: "gpt-4o", Timeout: time.Second})
	reg.Register(f.ollama, provider.Settings{Model: "llama3.2:3b", Timeout: time.Second})

	f.svc = NewService(f.ctx, orchestrator.New(reg, nil, nil), f.recorder, Options{
		Chain:           []string{"gateway", "openai"},
		FastPathEnabled: true,
		FastProvider:    "ollama",
		FastTimeout:     time.Second,
		FastMaxRunes:    20,
		Locale:          "pt-BR",
		MaxSummaryRunes: 4000,
	}, nil, nil)
	return f
}

func TestHandleGreetingUsesFastPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := f.svc.Handle(context.Background(), Request{Message: "oi", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "Oi Ana! 💚", resp.Message)
	assert.Equal(t, "nutrition", resp.Persona)
	assert.Equal(t, "Sofia 🥗", resp.PersonaName)
	assert.Equal(t, "ollama", resp.ProviderUsed)
	assert.Equal(t, 0, resp.Completeness)
	assert.Equal(t, 0, resp.TotalDataPoints)
	assert.Equal(t, "unified_test", resp.ConversationID)
	assert.True(t, resp.Success)

	assert.Equal(t, 0, f.ctx.aggregates)
	assert.Equal(t, []domain.DomainID{domain.DomainProfile}, f.ctx.fetches)
	assert.Equal(t, 0, f.gateway.callCount())
	require.Equal(t, 1, f.ollama.callCount())
	assert.Contains(t, f.ollama.calls[0].System, "Ana")

	require.Len(t, f.recorder.turns, 1)
	assert.True(t, f.recorder.turns[0].FastPath)
	assert.Equal(t, "oi", f.recorder.turns[0].UserMessage)
}

func TestHandleFastPathFailureFallsThrough(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ollama.err = provider.NewError("ollama", provider.KindTransportError, errors.New("connection refused"))

	resp, err := f.svc.Handle(context.Background(), Request{Message: "oi", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "gateway", resp.ProviderUsed)
	assert.Equal(t, 72, resp.Completeness)
	assert.Equal(t, 9, resp.TotalDataPoints)
	assert.Equal(t, 1, f.ctx.aggregates)
	assert.False(t, f.recorder.turns[0].FastPath)
}

func TestHandleMedicalUsesFullChain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := f.svc.Handle(context.Background(), Request{Message: "estou com dor no peito", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "medical", resp.Persona)
	assert.Equal(t, "Dr. Vital 🩺", resp.PersonaName)
	assert.Equal(t, "gateway", resp.ProviderUsed)
	assert.Equal(t, 0, f.ollama.callCount())
	require.Equal(t, 1, f.gateway.callCount())
	assert.Contains(t, f.gateway.calls[0].System, "Nome do usuário: Ana")
	assert.Equal(t, "estou com dor no peito", f.gateway.calls[0].Message)
}

func TestHandleExhaustedChainReturnsFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gateway.err = provider.NewError("gateway", provider.KindRateLimited, errors.New("429"))
	f.openai.err = provider.NewError("openai", provider.KindQuotaExceeded, errors.New("402"))

	resp, err := f.svc.Handle(context.Background(), Request{Message: "me ajuda com o cardápio da semana", UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, orchestrator.FallbackProvider, resp.ProviderUsed)
	assert.Equal(t, "🥗 Olá Ana! Sou a Sofia. Como posso ajudar você hoje? 💚", resp.Message)
	assert.Equal(t, 1, f.gateway.callCount())
	assert.Equal(t, 1, f.openai.callCount())
	require.Len(t, f.recorder.turns, 1)
	assert.Equal(t, orchestrator.FallbackProvider, f.recorder.turns[0].ProviderUsed)
}

func TestHandleValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Handle(context.Background(), Request{Message: "oi", UserID: "  "})
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = f.svc.Handle(context.Background(), Request{Message: " ", UserID: "u1"})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Equal(t, 0, f.ctx.aggregates)
	assert.Empty(t, f.ctx.fetches)
	assert.Empty(t, f.recorder.turns)
}

func TestHandleNoProvidersConfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.opts.Chain = []string{"missing"}

	_, err := f.svc.Handle(context.Background(), Request{Message: "qual meu progresso esse mês?", UserID: "u1"})
	assert.ErrorIs(t, err, orchestrator.ErrNoProviders)
	assert.Empty(t, f.recorder.turns)
}

func TestHandleAggregationFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ctx.err = context.DeadlineExceeded

	_, err := f.svc.Handle(context.Background(), Request{Message: "qual meu progresso esse mês?", UserID: "u1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlePersistenceFailureStillResponds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.recorder.err = errors.New("database is locked")

	resp, err := f.svc.Handle(context.Background(), Request{Message: "qual meu progresso esse mês?", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Ótima pergunta, Ana!", resp.Message)
}

func TestHandleOverrides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := f.svc.Handle(context.Background(), Request{
		Message:       "oi",
		UserID:        "u1",
		ForcePersona:  "drvital",
		ForceProvider: "openai",
		Context:       &RequestContext{Source: "mobile_app"},
	})
	require.NoError(t, err)

	assert.Equal(t, "medical", resp.Persona)
	assert.Equal(t, "openai", resp.ProviderUsed)
	assert.Equal(t, 0, f.ollama.callCount())
	assert.Equal(t, 0, f.gateway.callCount())
	assert.Equal(t, "mobile_app", f.recorder.turns[0].Source)
}

func TestHandleForceProviderSkipsFastPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := f.svc.Handle(context.Background(), Request{Message: "obrigada", UserID: "u1", ForceProvider: "gateway", ForceModel: "gemini-pro"})
	require.NoError(t, err)

	assert.Equal(t, "gateway", resp.ProviderUsed)
	assert.Equal(t, 0, f.ollama.callCount())
	require.Equal(t, 1, f.gateway.callCount())
	assert.Equal(t, "gemini-pro", f.gateway.calls[0].Model)
}

func TestHandleTurnBudgetServesFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gateway.hang = true
	f.openai.hang = true

	reg := provider.NewRegistry()
	reg.Register(f.gateway, provider.Settings{Model: "gemini", Timeout: 150 * time.Millisecond})
	reg.Register(f.openai, provider.Settings{Model: "gpt-4o", Timeout: 150 * time.Millisecond})
	f.svc.runner = orchestrator.New(reg, nil, nil)
	f.svc.opts.TurnTimeout = 200 * time.Millisecond

	resp, err := f.svc.Handle(context.Background(), Request{Message: "estou com dor no peito", UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "medical", resp.Persona)
	assert.Equal(t, orchestrator.FallbackProvider, resp.ProviderUsed)
	assert.Contains(t, resp.Message, "Ana")
	assert.Equal(t, 72, resp.Completeness)
	assert.Equal(t, 1, f.gateway.callCount())
	assert.Equal(t, 1, f.openai.callCount())

	require.Len(t, f.recorder.turns, 1)
	assert.Equal(t, orchestrator.FallbackProvider, f.recorder.turns[0].ProviderUsed)
	assert.Equal(t, "estou com dor no peito", f.recorder.turns[0].UserMessage)
}

func TestHandleCallerDeadlineIsReturned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gateway.hang = true
	f.svc.opts.TurnTimeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.svc.Handle(ctx, Request{Message: "estou com dor no peito", UserID: "u1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.recorder.turns)
}

func TestHandleRecordsConcurrentTurnsSeparately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "vital.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	f.svc.recorder = conversation.NewRecorder(repo, nil, nil)

	messages := []string{"qual meu progresso esse mês?", "o que comer no jantar?"}
	ids := make([]string, len(messages))
	var wg sync.WaitGroup
	for i, msg := range messages {
		wg.Add(1)
		go func(i int, msg string) {
			defer wg.Done()
			resp, err := f.svc.Handle(context.Background(), Request{Message: msg, UserID: "u1"})
			if assert.NoError(t, err) {
				ids[i] = resp.ConversationID
			}
		}(i, msg)
	}
	wg.Wait()

	require.NotEmpty(t, ids[0])
	require.NotEmpty(t, ids[1])
	assert.NotEqual(t, ids[0], ids[1])

	records, err := repo.ListConversations(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, records, 4)

	byConversation := map[string][]domain.ConversationRecord{}
	for _, rec := range records {
		byConversation[rec.ConversationID] = append(byConversation[rec.ConversationID], rec)
	}
	for i, id := range ids {
		recs := byConversation[id]
		require.Len(t, recs, 2, id)
		// Newest first: the assistant reply precedes the user message.
		assert.Equal(t, domain.RoleAssistant, recs[0].Role)
		assert.Equal(t, domain.RoleUser, recs[1].Role)
		assert.Equal(t, messages[i], recs[1].Content)
	}
}
