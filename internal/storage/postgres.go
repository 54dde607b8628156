package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/email-assistant/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStore is the durable write-through Store. Each actor's state is a
// single JSONB document keyed by the actor's own key, so one actor method
// maps to one logical write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	store := &PostgresStore{db: db}

	// Initialize database schema
	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStore) LoadMailbox(ctx context.Context, userID string) (*models.MailboxState, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM mailboxes WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading mailbox %q: %v", userID, err)
	}

	var state models.MailboxState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("error decoding mailbox state: %v", err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveMailbox(ctx context.Context, userID string, state *models.MailboxState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding mailbox state: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mailboxes (user_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET state = $2, updated_at = $3`,
		userID, raw, time.Now())
	if err != nil {
		return fmt.Errorf("error saving mailbox %q: %v", userID, err)
	}
	return nil
}

func (s *PostgresStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM chat_sessions WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session %q: %v", sessionID, err)
	}

	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("error decoding session state: %v", err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding session state: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET state = $2, updated_at = $3`,
		sessionID, raw, time.Now())
	if err != nil {
		return fmt.Errorf("error saving session %q: %v", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
