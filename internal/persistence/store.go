// Package persistence is the conversation-recording external collaborator:
// start/end timestamps, status transitions, per-turn transcript lines, and
// the call's ended_reason, keyed by call_id.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists Conversation rows to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL database at connStr and applies any
// outstanding migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("persistence open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartConversation inserts a new conversation row in "initiated" status.
func (s *Store) StartConversation(ctx context.Context, callID, agentID string, dynamicVariables map[string]string) error {
	vars, err := json.Marshal(dynamicVariables)
	if err != nil {
		vars = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (call_id, agent_id, status, started_at, dynamic_variables)
		 VALUES ($1, $2, 'initiated', $3, $4)
		 ON CONFLICT (call_id) DO NOTHING`,
		callID, agentID, time.Now().UTC(), vars,
	)
	return err
}

// MarkInProgress transitions a conversation from initiated to in-progress.
func (s *Store) MarkInProgress(ctx context.Context, callID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = 'in-progress' WHERE call_id = $1`, callID)
	return err
}

// AppendTurn appends one "User: …" / "Assistant: …" pair to the transcript.
func (s *Store) AppendTurn(ctx context.Context, callID, user, assistant string) error {
	line := fmt.Sprintf("User: %s\nAssistant: %s\n", user, assistant)
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET transcript = transcript || $1 WHERE call_id = $2`,
		line, callID,
	)
	return err
}

// EndConversation finalizes a conversation with its ended_reason, setting
// status to completed and recording the end timestamp and duration.
func (s *Store) EndConversation(ctx context.Context, callID, endedReason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations
		 SET status = 'completed', ended_at = $1, ended_reason = $2,
		     duration_secs = EXTRACT(EPOCH FROM ($1 - started_at))
		 WHERE call_id = $3`,
		time.Now().UTC(), endedReason, callID,
	)
	return err
}

// GetConversation returns one conversation by call_id.
func (s *Store) GetConversation(ctx context.Context, callID string) (*Conversation, error) {
	var c Conversation
	var endedAt sql.NullTime
	var durationSecs sql.NullFloat64
	var endedReason sql.NullString
	var varsRaw, metaRaw []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT call_id, agent_id, phone_number, status, transcript, started_at, ended_at,
		        duration_secs, ended_reason, dynamic_variables, recording_url, metadata
		 FROM conversations WHERE call_id = $1`, callID,
	).Scan(&c.CallID, &c.AgentID, &c.PhoneNumber, &c.Status, &c.Transcript, &c.StartedAt, &endedAt,
		&durationSecs, &endedReason, &varsRaw, &c.RecordingURL, &metaRaw)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	if durationSecs.Valid {
		c.DurationSecs = &durationSecs.Float64
	}
	c.EndedReason = endedReason.String
	json.Unmarshal(varsRaw, &c.DynamicVariables)
	json.Unmarshal(metaRaw, &c.Metadata)

	return &c, nil
}
