package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGetTurn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	turn := &Turn{
		Session:       "dossier",
		Model:         "anthropic/claude-sonnet-4-20250514",
		Question:      "Quel est le délai de prescription ?",
		AnswerPreview: strings.Repeat("é", previewLength+10),
		Cost:          0.0123,
		InputTokens:   1000,
		OutputTokens:  200,
		Searches:      1,
	}
	if err := s.RecordTurn(ctx, turn); err != nil {
		t.Fatalf("RecordTurn failed: %v", err)
	}
	if turn.ID == "" {
		t.Fatal("Expected an ID to be assigned")
	}

	got, err := s.GetTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if got.Model != turn.Model {
		t.Errorf("Expected model %s, got %s", turn.Model, got.Model)
	}
	if got.InputTokens != 1000 || got.OutputTokens != 200 || got.Searches != 1 {
		t.Errorf("Expected 1000/200/1, got %d/%d/%d", got.InputTokens, got.OutputTokens, got.Searches)
	}
	if n := len([]rune(got.AnswerPreview)); n != previewLength+1 {
		t.Errorf("Expected preview of %d runes, got %d", previewLength+1, n)
	}

	if _, err := s.GetTurn(ctx, "missing"); !errors.Is(err, ErrTurnNotFound) {
		t.Errorf("Expected ErrTurnNotFound, got %v", err)
	}
}

func TestVoteAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, tc := range []struct {
		model string
		cost  float64
	}{
		{"anthropic/claude-sonnet-4-20250514", 0.02},
		{"anthropic/claude-sonnet-4-20250514", 0.04},
		{"gemini/gemini-2.5-flash", 0.001},
	} {
		turn := &Turn{Session: "s", Model: tc.model, Question: "q", Cost: tc.cost}
		if err := s.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
		ids = append(ids, turn.ID)
	}

	if err := s.Vote(ctx, ids[0], VoteDown); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	// a second vote replaces the first
	if err := s.Vote(ctx, ids[0], VoteUp); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if err := s.Vote(ctx, ids[1], VoteDown); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if err := s.Vote(ctx, "missing", VoteUp); !errors.Is(err, ErrTurnNotFound) {
		t.Errorf("Expected ErrTurnNotFound, got %v", err)
	}
	if err := s.Vote(ctx, ids[2], Vote("meh")); !errors.Is(err, ErrInvalidVote) {
		t.Errorf("Expected ErrInvalidVote, got %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(stats))
	}

	claude := stats[0]
	if claude.Turns != 2 {
		t.Errorf("Expected 2 turns, got %d", claude.Turns)
	}
	if diff := claude.AverageCost - 0.03; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected average cost 0.03, got %f", claude.AverageCost)
	}
	if claude.Up != 1 || claude.Down != 1 {
		t.Errorf("Expected 1 up and 1 down, got %d/%d", claude.Up, claude.Down)
	}
	if claude.UpRatio() != 0.5 {
		t.Errorf("Expected up ratio 0.5, got %f", claude.UpRatio())
	}

	gemini := stats[1]
	if gemini.Turns != 1 || gemini.UpRatio() != 0 {
		t.Errorf("Expected 1 unvoted turn, got %d turns ratio %f", gemini.Turns, gemini.UpRatio())
	}
}

func TestRecentTurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, q := range []string{"premier", "deuxième", "troisième"} {
		turn := &Turn{Session: "s", Model: "m", Question: q, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.RecordTurn(ctx, turn); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Question != "troisième" {
		t.Errorf("Expected newest first, got '%s'", turns[0].Question)
	}
}

func TestParseVote(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"up", false},
		{"down", false},
		{"UP", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseVote(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVote(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
		}
	}
}
