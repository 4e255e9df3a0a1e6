package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
	"github.com/ashureev/vital-labs/internal/persona"
	"github.com/ashureev/vital-labs/internal/shared"
	"github.com/ashureev/vital-labs/internal/store"
	"github.com/google/uuid"
)

const (
	// Source tags every record written by the unified assistant.
	Source = "unified_assistant"
	// AnalysisType is stored alongside Source for downstream reporting.
	AnalysisType = "unified_chat"

	maxWriteAttempts = 3
	baseBackoff      = 100 * time.Millisecond
)

// Turn is one answered exchange.
type Turn struct {
	ConversationID string // empty means a fresh id is generated
	SessionID      string // client tab session; keys the NDJSON log file
	UserID         string
	Channel        string // "chat_http" or "chat_ws"
	Source         string // client-supplied origin tag; empty means Source
	UserMessage    string
	Reply          string
	Persona        persona.Persona
	ProviderUsed   string
	Model          string
	Completeness   int
	FastPath       bool
	ReceivedAt     time.Time
}

// Recorder appends turns to the store as a user record followed by an
// assistant record under one conversation id.
type Recorder struct {
	repo    store.Repository
	log     Logger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	backoff time.Duration
}

// NewRecorder creates a recorder. A nil log disables NDJSON mirroring.
func NewRecorder(repo store.Repository, log Logger, logger *slog.Logger) *Recorder {
	if log == nil {
		log = noopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:    repo,
		log:     log,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		backoff: baseBackoff,
	}
}

// NewConversationID returns a fresh conversation id.
func (r *Recorder) NewConversationID() string {
	return "unified_" + r.newID()
}

// Record persists the turn. Transient write conflicts are retried with
// exponential backoff. The NDJSON mirror is written whether or not the store
// accepted the records.
func (r *Recorder) Record(ctx context.Context, t Turn) error {
	conversationID := t.ConversationID
	if conversationID == "" {
		conversationID = r.NewConversationID()
	}
	source := t.Source
	if source == "" {
		source = Source
	}
	now := r.now().UTC()
	received := t.ReceivedAt.UTC()
	if received.IsZero() || received.After(now) {
		received = now
	}

	meta := map[string]any{
		"persona":           string(t.Persona),
		"provider_used":     t.ProviderUsed,
		"model":             t.Model,
		"data_completeness": t.Completeness,
		"fast_path":         t.FastPath,
		"source":            source,
		"analysis_type":     AnalysisType,
	}
	records := []domain.ConversationRecord{
		{
			ID:             r.newID(),
			UserID:         t.UserID,
			ConversationID: conversationID,
			Role:           domain.RoleUser,
			Content:        t.UserMessage,
			Timestamp:      received,
			Metadata:       meta,
		},
		{
			ID:             r.newID(),
			UserID:         t.UserID,
			ConversationID: conversationID,
			Role:           domain.RoleAssistant,
			Content:        t.Reply,
			Timestamp:      now,
			Metadata:       meta,
		},
	}

	r.mirror(conversationID, t, received, now, meta)

	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if attempt > 0 {
			wait := r.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("record conversation %s: %w", conversationID, ctx.Err())
			case <-time.After(wait):
			}
		}
		err = r.repo.AppendConversation(ctx, records)
		if err == nil {
			return nil
		}
		if !shared.IsRetryableWriteError(err) {
			break
		}
		r.logger.Warn("Conversation write conflict, retrying",
			"conversation_id", conversationID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return fmt.Errorf("record conversation %s: %w", conversationID, err)
}

func (r *Recorder) mirror(conversationID string, t Turn, received, answered time.Time, meta map[string]any) {
	channel := t.Channel
	if channel == "" {
		channel = "chat_http"
	}
	sessionID := t.SessionID
	if sessionID == "" {
		sessionID = conversationID
	}
	logMeta := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		logMeta[k] = v
	}
	logMeta["conversation_id"] = conversationID
	r.log.Log(LogEvent{
		Timestamp:  received.Format(time.RFC3339Nano),
		UserID:     t.UserID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: t.UserMessage,
		Content:    cleanForReadability(t.UserMessage),
		Meta:       logMeta,
	})
	r.log.Log(LogEvent{
		Timestamp:  answered.Format(time.RFC3339Nano),
		UserID:     t.UserID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: t.Reply,
		Content:    cleanForReadability(t.Reply),
		Meta:       logMeta,
	})
}
