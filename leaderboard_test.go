package main

import (
	"context"
	"testing"
)

func TestLeaderboardKeepsBestScore(t *testing.T) {
	ctx := context.Background()
	leaderboard := newLeaderboard(newTestStore(t))

	rank, entry, total, err := leaderboard.Submit(ctx, "alice", 8, 8, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rank != 1 || total != 1 {
		t.Errorf("first submit rank=%d total=%d, want 1/1", rank, total)
	}
	if entry.BestScore != 8 || entry.Accuracy != 80 || entry.GamesPlayed != 1 {
		t.Errorf("first entry = %+v", entry)
	}

	// A worse replay leaves the best score and accuracy untouched but
	// still counts the game.
	firstPlayed := entry.LastPlayed
	_, entry, _, err = leaderboard.Submit(ctx, "alice", 5, 5, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.BestScore != 8 || entry.Accuracy != 80 {
		t.Errorf("worse replay changed best: %+v", entry)
	}
	if entry.GamesPlayed != 2 {
		t.Errorf("gamesPlayed = %d, want 2", entry.GamesPlayed)
	}
	if entry.LastPlayed < firstPlayed {
		t.Errorf("lastPlayed moved backwards: %d -> %d", firstPlayed, entry.LastPlayed)
	}

	// A better replay takes over both.
	_, entry, _, err = leaderboard.Submit(ctx, "alice", 9, 9, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.BestScore != 9 || entry.Accuracy != 90 || entry.GamesPlayed != 3 {
		t.Errorf("better replay entry = %+v", entry)
	}
}

func TestLeaderboardRankingAndStats(t *testing.T) {
	ctx := context.Background()
	leaderboard := newLeaderboard(newTestStore(t))

	submissions := []struct {
		username string
		score    int
		correct  int
	}{
		{"alice", 7, 7},
		{"bob", 9, 9},
		{"carol", 7, 6}, // same score as alice, lower accuracy
	}
	for _, sub := range submissions {
		if _, _, _, err := leaderboard.Submit(ctx, sub.username, sub.score, sub.correct, 10); err != nil {
			t.Fatalf("Submit(%s): %v", sub.username, err)
		}
	}

	entries, stats, err := leaderboard.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}

	wantOrder := []string{"bob", "alice", "carol"}
	for i, want := range wantOrder {
		if entries[i].Username != want {
			t.Fatalf("rank %d = %q, want %q", i+1, entries[i].Username, want)
		}
	}

	if stats.TotalPlayers != 3 || stats.TotalGames != 3 || stats.TopScore != 9 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AverageScore != 8 { // (7+9+7)/3 rounded
		t.Errorf("averageScore = %d, want 8", stats.AverageScore)
	}

	rank, _, _, err := leaderboard.Submit(ctx, "carol", 10, 10, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rank != 1 {
		t.Errorf("carol's rank after topping the board = %d, want 1", rank)
	}
}

func TestLeaderboardMigratesLegacyShape(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	leaderboard := newLeaderboard(store)

	// An earlier version stored the board as an object of per-user stats.
	legacy := `{"alice":{"score":4,"plays":2},"bob":{"score":6,"plays":3}}`
	if err := store.Set(ctx, leaderboardKey, legacy); err != nil {
		t.Fatalf("Set: %v", err)
	}

	entries, stats, err := leaderboard.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("migrated entries = %d, want 2", len(entries))
	}
	if entries[0].Username != "bob" || entries[0].BestScore != 6 || entries[0].GamesPlayed != 3 {
		t.Errorf("migrated bob = %+v", entries[0])
	}
	if entries[1].Username != "alice" || entries[1].Accuracy != 200 {
		t.Errorf("migrated alice = %+v (accuracy is score/plays*100 by the legacy formula)", entries[1])
	}
	if stats.TotalGames != 5 {
		t.Errorf("migrated totalGames = %d, want 5", stats.TotalGames)
	}

	// Submitting rewrites the key into the entry-array shape for good.
	if _, _, _, err := leaderboard.Submit(ctx, "alice", 9, 9, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	entries, _, err = leaderboard.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries after rewrite: %v", err)
	}
	if entries[0].Username != "alice" || entries[0].BestScore != 9 || entries[0].GamesPlayed != 3 {
		t.Errorf("alice after rewrite = %+v", entries[0])
	}
}

func TestLeaderboardReset(t *testing.T) {
	ctx := context.Background()
	leaderboard := newLeaderboard(newTestStore(t))

	if _, _, _, err := leaderboard.Submit(ctx, "alice", 8, 8, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := leaderboard.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	entries, stats, err := leaderboard.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 || stats.TotalPlayers != 0 {
		t.Errorf("board after reset = %v / %+v, want empty", entries, stats)
	}
}
