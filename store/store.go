// Package store keeps finished turns and their votes in a local SQLite
// database so models can be compared over time.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// previewLength bounds the stored answer preview, in runes
const previewLength = 280

var (
	ErrTurnNotFound = errors.New("turn not found")
	ErrInvalidVote  = errors.New("vote must be 'up' or 'down'")
)

// Vote is a user judgement on a turn
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote validates a vote given on the command line
func ParseVote(s string) (Vote, error) {
	switch Vote(s) {
	case VoteUp, VoteDown:
		return Vote(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidVote)
}

// Turn is one finished question/answer exchange
type Turn struct {
	ID            string
	Session       string
	Model         string
	Question      string
	AnswerPreview string
	Cost          float64
	InputTokens   int
	OutputTokens  int
	Searches      int
	CreatedAt     time.Time
}

// ModelStats summarizes the turns answered by one model
type ModelStats struct {
	Model       string
	Turns       int
	AverageCost float64
	TotalCost   float64
	Up          int
	Down        int
}

// UpRatio is the share of up votes among voted turns, or 0 without votes
func (s ModelStats) UpRatio() float64 {
	if s.Up+s.Down == 0 {
		return 0
	}
	return float64(s.Up) / float64(s.Up+s.Down)
}

// Store persists turns and votes
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database location under dataDir
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "jurisearch.db")
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; modernc serializes access per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		model TEXT NOT NULL,
		question TEXT NOT NULL,
		answer_preview TEXT NOT NULL,
		cost REAL NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		searches INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_model ON turns(model);
	CREATE TABLE IF NOT EXISTS votes (
		turn_id TEXT PRIMARY KEY REFERENCES turns(id) ON DELETE CASCADE,
		vote TEXT NOT NULL CHECK (vote IN ('up', 'down')),
		voted_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTurn stores a finished turn, assigning its ID when empty
func (s *Store) RecordTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	turn.AnswerPreview = preview(turn.AnswerPreview)

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO turns (id, session, model, question, answer_preview, cost, input_tokens, output_tokens, searches, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Session, turn.Model, turn.Question, turn.AnswerPreview,
		turn.Cost, turn.InputTokens, turn.OutputTokens, turn.Searches, turn.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	zap.S().Debugw("turn_recorded", "id", turn.ID, "model", turn.Model, "cost", turn.Cost)
	return nil
}

// GetTurn loads one turn by ID
func (s *Store) GetTurn(ctx context.Context, id string) (*Turn, error) {
	var t Turn
	err := s.db.QueryRowContext(ctx, `
	SELECT id, session, model, question, answer_preview, cost, input_tokens, output_tokens, searches, created_at
	FROM turns WHERE id = ?`, id).Scan(
		&t.ID, &t.Session, &t.Model, &t.Question, &t.AnswerPreview,
		&t.Cost, &t.InputTokens, &t.OutputTokens, &t.Searches, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrTurnNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RecentTurns returns the latest turns, newest first
func (s *Store) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, session, model, question, answer_preview, cost, input_tokens, output_tokens, searches, created_at
	FROM turns ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(
			&t.ID, &t.Session, &t.Model, &t.Question, &t.AnswerPreview,
			&t.Cost, &t.InputTokens, &t.OutputTokens, &t.Searches, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Vote records or replaces the vote on a turn
func (s *Store) Vote(ctx context.Context, turnID string, vote Vote) error {
	if _, err := ParseVote(string(vote)); err != nil {
		return err
	}
	if _, err := s.GetTurn(ctx, turnID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO votes (turn_id, vote, voted_at) VALUES (?, ?, ?)
	ON CONFLICT(turn_id) DO UPDATE SET vote = excluded.vote, voted_at = excluded.voted_at`,
		turnID, string(vote), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// Stats returns per-model statistics ordered by model name
func (s *Store) Stats(ctx context.Context) ([]ModelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT t.model,
		COUNT(*),
		AVG(t.cost),
		SUM(t.cost),
		COALESCE(SUM(CASE WHEN v.vote = 'up' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN v.vote = 'down' THEN 1 ELSE 0 END), 0)
	FROM turns t
	LEFT JOIN votes v ON v.turn_id = t.id
	GROUP BY t.model
	ORDER BY t.model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var m ModelStats
		if err := rows.Scan(&m.Model, &m.Turns, &m.AverageCost, &m.TotalCost, &m.Up, &m.Down); err != nil {
			return nil, err
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

func preview(answer string) string {
	runes := []rune(answer)
	if len(runes) <= previewLength {
		return answer
	}
	return string(runes[:previewLength]) + "…"
}
