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

const (
	fakePostsKey       = "global_used_fake_posts"
	truthPostsKeyPrefix = "session_used_truth_posts:"
)

// truthUse tags a served real post with when it was first shown.
type truthUse struct {
	Timestamp int64  `json:"timestamp"`
	Subreddit string `json:"subreddit"`
}

// Guard prevents content repeats at two scopes with two policies: fake
// posts are tracked in one set shared by every player, real posts only
// within the session that saw them (real-world volume is assumed large
// enough that cross-session repeats don't matter).
//
// The shared set is read-modify-write without locks; two concurrent
// writers can each miss the other's addition and one ID can silently drop
// from the persisted set. That lost update is an accepted weak-consistency
// tradeoff, traded for never blocking a round on coordination.
type Guard struct {
	store          *TrackingStore
	fakePostTTL    time.Duration
	truthPostTTL   time.Duration
	truthPostSweep time.Duration
	now            func() time.Time
}

func newGuard(cfg *Config, store *TrackingStore) *Guard {
	return &Guard{
		store:          store,
		fakePostTTL:    cfg.fakePostTTL,
		truthPostTTL:   cfg.truthPostTTL,
		truthPostSweep: cfg.truthPostSweep,
		now:            time.Now,
	}
}

// loadFakeSet decodes the shared set, accepting both the current shape
// (id -> first-seen unix milliseconds) and the legacy bare-array shape, so
// the ambiguity stays normalized at this one boundary.
func (g *Guard) loadFakeSet(ctx context.Context) (map[string]int64, error) {
	raw, ok, err := g.store.Get(ctx, fakePostsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]int64{}, nil
	}

	used := make(map[string]int64)
	if err := json.Unmarshal([]byte(raw), &used); err == nil {
		return used, nil
	}

	var legacy []string
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return map[string]int64{}, nil
	}
	now := g.now().UnixMilli()
	for _, id := range legacy {
		used[id] = now
	}
	return used, nil
}

// IsFakeUsed reports whether a synthetic post has already been shown to any
// player since the set last expired.
func (g *Guard) IsFakeUsed(ctx context.Context, postID string) (bool, error) {
	used, err := g.loadFakeSet(ctx)
	if err != nil {
		return false, err
	}
	_, found := used[postID]
	return found, nil
}

// RecordFakeUsed adds a synthetic post to the shared set and re-applies the
// rolling expiry to the whole key. Under continuous traffic the key never
// expires, so entries older than the configured horizon are also pruned on
// write to bound growth; membership reads are unaffected within the window.
// Returns the resulting set size.
func (g *Guard) RecordFakeUsed(ctx context.Context, postID string) (int, error) {
	used, err := g.loadFakeSet(ctx)
	if err != nil {
		return 0, err
	}

	now := g.now()
	used[postID] = now.UnixMilli()

	horizon := now.Add(-g.fakePostTTL).UnixMilli()
	for id, seen := range used {
		if seen < horizon {
			delete(used, id)
		}
	}

	encoded, err := json.Marshal(used)
	if err != nil {
		return 0, err
	}
	if err := g.store.Set(ctx, fakePostsKey, string(encoded)); err != nil {
		return 0, err
	}
	if err := g.store.Expire(ctx, fakePostsKey, g.fakePostTTL); err != nil {
		return 0, err
	}

	return len(used), nil
}

// fakeUsedCount returns the current size of the shared set.
func (g *Guard) fakeUsedCount(ctx context.Context) (int, error) {
	used, err := g.loadFakeSet(ctx)
	if err != nil {
		return 0, err
	}
	return len(used), nil
}

func (g *Guard) loadTruthMap(ctx context.Context, sessionID string) (map[string]truthUse, error) {
	raw, ok, err := g.store.Get(ctx, truthPostsKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	used := make(map[string]truthUse)
	if !ok {
		return used, nil
	}
	if err := json.Unmarshal([]byte(raw), &used); err != nil {
		return map[string]truthUse{}, nil
	}
	return used, nil
}

// IsTruthUsed reports whether a real post was already shown in this session.
func (g *Guard) IsTruthUsed(ctx context.Context, sessionID, postID string) (bool, error) {
	used, err := g.loadTruthMap(ctx, sessionID)
	if err != nil {
		return false, err
	}
	_, found := used[postID]
	return found, nil
}

// RecordTruthUsed remembers a real post for this session only. Entries older
// than the sweep horizon are pruned on every write, independent of the
// store-level expiry on the key itself. Returns the resulting map size.
func (g *Guard) RecordTruthUsed(ctx context.Context, sessionID, postID, subreddit string) (int, error) {
	used, err := g.loadTruthMap(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	now := g.now()
	used[postID] = truthUse{
		Timestamp: now.UnixMilli(),
		Subreddit: subreddit,
	}

	horizon := now.Add(-g.truthPostSweep).UnixMilli()
	for id, use := range used {
		if use.Timestamp < horizon {
			delete(used, id)
		}
	}

	encoded, err := json.Marshal(used)
	if err != nil {
		return 0, err
	}
	key := truthPostsKeyPrefix + sessionID
	if err := g.store.Set(ctx, key, string(encoded)); err != nil {
		return 0, err
	}
	if err := g.store.Expire(ctx, key, g.truthPostTTL); err != nil {
		return 0, err
	}

	return len(used), nil
}

// SessionTruthPosts lists the real-post IDs this session has already seen,
// sorted for stable output.
func (g *Guard) SessionTruthPosts(ctx context.Context, sessionID string) ([]string, error) {
	used, err := g.loadTruthMap(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}
