package app_test

import (
	"context"
	"strings"
	"testing"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
)

func TestLeaderboardEmpty(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	lb, err := h.svc.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if !lb.Empty() {
		t.Fatalf("expected empty leaderboard, got %+v", lb.Entries)
	}
	if !strings.Contains(app.FormatLeaderboard(lb), "No scores yet.") {
		t.Fatalf("expected empty placeholder text")
	}
}

func TestLeaderboardRanksByScore(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	ctx := context.Background()
	seed := []domain.UserProgress{
		{UserID: "1", Level: 1, Score: 3},
		{UserID: "2", Level: 2, Score: 7},
		{UserID: "3", Level: 1, Score: 3},
		{UserID: "4", Level: 1, Score: 1},
	}
	for _, p := range seed {
		if err := h.progress.Put(ctx, p.UserID, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = h.names.SaveName(ctx, "2", "bob")

	lb, err := h.svc.Leaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 3 {
		t.Fatalf("expected top 3, got %d", len(lb.Entries))
	}
	wantIDs := []string{"2", "1", "3"}
	for i, id := range wantIDs {
		e := lb.Entries[i]
		if e.UserID != id || e.Rank != i+1 {
			t.Fatalf("position %d: want user %s, got %+v", i, id, e)
		}
	}
	if lb.Entries[0].DisplayName != "bob" {
		t.Fatalf("expected resolved name, got %q", lb.Entries[0].DisplayName)
	}
	if lb.Entries[1].DisplayName != "User1" {
		t.Fatalf("expected placeholder name, got %q", lb.Entries[1].DisplayName)
	}

	text := app.FormatLeaderboard(lb)
	if !strings.Contains(text, "1. @bob: 7 points") || !strings.Contains(text, "2. @User1: 3 points") {
		t.Fatalf("unexpected leaderboard text:\n%s", text)
	}
}

func TestRequestLeaderboardNotifies(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	ctx := context.Background()
	_ = h.progress.Put(ctx, "1", domain.UserProgress{UserID: "1", Level: 1, Score: 2})

	if _, err := h.svc.RequestLeaderboard(ctx, "9"); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.notes.mu.Lock()
	boards := h.notes.boards["9"]
	h.notes.mu.Unlock()
	if len(boards) != 1 || len(boards[0].Entries) != 1 {
		t.Fatalf("expected one leaderboard delivered, got %+v", boards)
	}
}
