package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Repository on database/sql for both SQLite and Postgres.
// Timestamps are stored as Unix milliseconds.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) initSchema(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ListRecords returns records newest first.
func (s *SQLStore) ListRecords(ctx context.Context, q RecordQuery) ([]StoredRecord, error) {
	query := `
		SELECT id, user_id, domain, recorded_at, payload
		FROM user_records WHERE user_id = ? AND domain = ?`
	args := []any{q.UserID, string(q.Domain)}
	if !q.Since.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, q.Since.UnixMilli())
	}
	query += ` ORDER BY recorded_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", q.Domain, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close record rows", "error", closeErr)
		}
	}()

	var records []StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var domainID, payload string
		var recordedAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &domainID, &recordedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		rec.Domain = domain.DomainID(domainID)
		rec.RecordedAt = time.UnixMilli(recordedAt)
		rec.Payload = json.RawMessage(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// AppendRecord inserts one user history record.
func (s *SQLStore) AppendRecord(ctx context.Context, rec StoredRecord) error {
	query := `INSERT INTO user_records (id, user_id, domain, recorded_at, payload) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		rec.ID, rec.UserID, string(rec.Domain), rec.RecordedAt.UnixMilli(), string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// ListConversations returns the user's conversation records newest first.
func (s *SQLStore) ListConversations(ctx context.Context, userID string, limit int) ([]domain.ConversationRecord, error) {
	query := `
		SELECT id, user_id, conversation_id, message_role, message_content, timestamp, metadata
		FROM user_conversations WHERE user_id = ?
		ORDER BY timestamp DESC, turn_index DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var records []domain.ConversationRecord
	for rows.Next() {
		var rec domain.ConversationRecord
		var role string
		var ts int64
		var metadata sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ConversationID, &role, &rec.Content, &ts, &metadata); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		rec.Role = domain.Role(role)
		rec.Timestamp = time.UnixMilli(ts)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode conversation metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return records, nil
}

// AppendConversation inserts all records in one transaction, preserving
// their order through turn_index.
func (s *SQLStore) AppendConversation(ctx context.Context, records []domain.ConversationRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversation tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("failed to rollback conversation tx", "error", rbErr)
			}
		}
	}()

	query := s.rebind(`
		INSERT INTO user_conversations
			(id, user_id, conversation_id, message_role, message_content, turn_index, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, rec := range records {
		var metadata any
		if len(rec.Metadata) > 0 {
			raw, marshalErr := json.Marshal(rec.Metadata)
			if marshalErr != nil {
				return fmt.Errorf("encode conversation metadata: %w", marshalErr)
			}
			metadata = string(raw)
		}
		if _, err = tx.ExecContext(ctx, query,
			rec.ID, rec.UserID, rec.ConversationID, string(rec.Role), rec.Content,
			i, rec.Timestamp.UnixMilli(), metadata,
		); err != nil {
			return fmt.Errorf("insert conversation record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation tx: %w", err)
	}
	return nil
}

// ListKnowledge returns shared knowledge entries by descending priority.
func (s *SQLStore) ListKnowledge(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	query := `SELECT category, topic, content, priority FROM knowledge_base ORDER BY priority DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge base: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close knowledge rows", "error", closeErr)
		}
	}()

	var entries []domain.KnowledgeEntry
	for rows.Next() {
		var e domain.KnowledgeEntry
		if err := rows.Scan(&e.Category, &e.Topic, &e.Content, &e.Priority); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge base: %w", err)
	}
	return entries, nil
}

// AppendKnowledge inserts a shared knowledge entry.
func (s *SQLStore) AppendKnowledge(ctx context.Context, entry domain.KnowledgeEntry) error {
	query := `INSERT INTO knowledge_base (category, topic, content, priority, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		entry.Category, entry.Topic, entry.Content, entry.Priority, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	return nil
}
