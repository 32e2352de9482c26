/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

const leaderboardKey = "leaderboard"

// LeaderboardEntry is one player's lifetime record. BestScore and Accuracy
// only ever improve together; GamesPlayed and LastPlayed move on every game.
type LeaderboardEntry struct {
	Username    string `json:"username"`
	BestScore   int    `json:"bestScore"`
	Accuracy    int    `json:"accuracy"`
	GamesPlayed int    `json:"gamesPlayed"`
	LastPlayed  int64  `json:"lastPlayed"`
}

// LeaderboardStats summarizes the whole board.
type LeaderboardStats struct {
	TotalPlayers int `json:"totalPlayers"`
	TotalGames   int `json:"totalGames"`
	AverageScore int `json:"averageScore"`
	TopScore     int `json:"topScore"`
}

// Leaderboard keeps every player's best result under a single shared key.
type Leaderboard struct {
	store *TrackingStore
	now   func() time.Time
}

func newLeaderboard(store *TrackingStore) *Leaderboard {
	return &Leaderboard{
		store: store,
		now:   time.Now,
	}
}

// legacyStats is the object-of-stats shape an earlier version stored the
// board in, keyed by username.
type legacyStats struct {
	Score int `json:"score"`
	Plays int `json:"plays"`
}

// load normalizes whatever shape is stored into the entry-array shape,
// executed on every read so the legacy ambiguity stays isolated here.
func (l *Leaderboard) load(ctx context.Context) ([]LeaderboardEntry, error) {
	raw, ok, err := l.store.Get(ctx, leaderboardKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []LeaderboardEntry{}, nil
	}

	var entries []LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		return sortEntries(entries), nil
	}

	var legacy map[string]legacyStats
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return []LeaderboardEntry{}, nil
	}

	now := l.now().UnixMilli()
	entries = make([]LeaderboardEntry, 0, len(legacy))
	for username, stats := range legacy {
		accuracy := 0
		if stats.Plays > 0 {
			accuracy = int(float64(stats.Score)/float64(stats.Plays)*100 + 0.5)
		}
		entries = append(entries, LeaderboardEntry{
			Username:    username,
			BestScore:   stats.Score,
			Accuracy:    accuracy,
			GamesPlayed: stats.Plays,
			LastPlayed:  now,
		})
	}

	return sortEntries(entries), nil
}

// sortEntries orders by score, ties broken by accuracy.
func sortEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		return entries[i].Accuracy > entries[j].Accuracy
	})
	return entries
}

func (l *Leaderboard) save(ctx context.Context, entries []LeaderboardEntry) error {
	encoded, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, leaderboardKey, string(encoded))
}

// Submit records a finished game. A returning player's entry keeps its best
// score: a lower replay leaves BestScore and Accuracy alone but still counts
// the game. Returns the player's rank (1-based), their entry, and the total
// player count.
func (l *Leaderboard) Submit(ctx context.Context, username string, gameScore, correctAnswers, totalQuestions int) (int, *LeaderboardEntry, int, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return -1, nil, 0, err
	}

	accuracy := 0
	if totalQuestions > 0 {
		accuracy = int(float64(correctAnswers)/float64(totalQuestions)*100 + 0.5)
	}

	now := l.now().UnixMilli()
	found := false
	for i := range entries {
		if entries[i].Username != username {
			continue
		}
		found = true
		if gameScore > entries[i].BestScore {
			entries[i].BestScore = gameScore
			entries[i].Accuracy = accuracy
		}
		entries[i].GamesPlayed++
		entries[i].LastPlayed = now
		break
	}
	if !found {
		entries = append(entries, LeaderboardEntry{
			Username:    username,
			BestScore:   gameScore,
			Accuracy:    accuracy,
			GamesPlayed: 1,
			LastPlayed:  now,
		})
	}

	entries = sortEntries(entries)
	if err := l.save(ctx, entries); err != nil {
		return -1, nil, 0, err
	}

	rank := -1
	var entry *LeaderboardEntry
	for i := range entries {
		if entries[i].Username == username {
			rank = i + 1
			entry = &entries[i]
			break
		}
	}

	return rank, entry, len(entries), nil
}

// Entries returns the sorted board and its aggregate stats.
func (l *Leaderboard) Entries(ctx context.Context) ([]LeaderboardEntry, LeaderboardStats, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return nil, LeaderboardStats{}, err
	}

	var stats LeaderboardStats
	stats.TotalPlayers = len(entries)
	if len(entries) == 0 {
		return entries, stats, nil
	}

	totalScore := 0
	for _, entry := range entries {
		stats.TotalGames += entry.GamesPlayed
		totalScore += entry.BestScore
		if entry.BestScore > stats.TopScore {
			stats.TopScore = entry.BestScore
		}
	}
	stats.AverageScore = int(float64(totalScore)/float64(len(entries)) + 0.5)

	return entries, stats, nil
}

// Reset clears the board.
func (l *Leaderboard) Reset(ctx context.Context) error {
	return l.save(ctx, []LeaderboardEntry{})
}
