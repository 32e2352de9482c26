/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"
)

const usedQuestionsKeyPrefix = "used_questions:"

const (
	fallbackSubreddit = "AskReddit"
	fallbackKind      = KindTruth
)

// Selection is the outcome of one round's question selection.
type Selection struct {
	Subreddit      string
	Kind           Kind
	PoolRefreshed  bool
	UsedCount      int
	TotalAvailable int
	Balance        Balance
}

// Selector coordinates the question pool, the balance tracker, and the
// tracking store to hand each round one subreddit and a declared kind.
//
// Every tracking failure along the way degrades to a fixed default
// selection; a storage outage costs variety, never a round.
type Selector struct {
	store      *TrackingStore
	catalog    Catalog
	sessionTTL time.Duration
	rng        func() float64
}

func newSelector(cfg *Config, store *TrackingStore) *Selector {
	return &Selector{
		store:      store,
		catalog:    defaultCatalog(),
		sessionTTL: cfg.sessionTTL,
		rng:        rand.Float64,
	}
}

func (s *Selector) fallback() Selection {
	return Selection{
		Subreddit:      fallbackSubreddit,
		Kind:           fallbackKind,
		TotalAvailable: len(s.catalog),
	}
}

func (s *Selector) loadUsedSet(ctx context.Context, sessionID string) (map[string]bool, error) {
	raw, ok, err := s.store.Get(ctx, usedQuestionsKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	if !ok {
		return used, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return map[string]bool{}, nil
	}
	for _, name := range names {
		used[name] = true
	}
	return used, nil
}

func (s *Selector) saveUsedSet(ctx context.Context, sessionID string, used map[string]bool) error {
	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	encoded, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, usedQuestionsKeyPrefix+sessionID, string(encoded))
}

// SelectRound picks the next round's subreddit and kind for a session.
//
// The per-session used set is cleared whenever either kind's pool runs dry,
// so both catalogues cycle in lockstep; the balance tracker decides the
// kind; the entry itself is drawn uniformly from what remains.
func (s *Selector) SelectRound(ctx context.Context, sessionID string) Selection {
	used, err := s.loadUsedSet(ctx, sessionID)
	if err != nil {
		return s.fallback()
	}

	balance, err := loadBalance(ctx, s.store, sessionID)
	if err != nil {
		return s.fallback()
	}

	availableTruth := s.catalog.availableByKind(used, KindTruth)
	availableTroll := s.catalog.availableByKind(used, KindTroll)

	refreshed := false
	if len(availableTruth) == 0 || len(availableTroll) == 0 {
		if err := s.store.Delete(ctx, usedQuestionsKeyPrefix+sessionID); err != nil {
			return s.fallback()
		}
		used = make(map[string]bool)
		availableTruth = s.catalog.byKind(KindTruth)
		availableTroll = s.catalog.byKind(KindTroll)
		refreshed = true
	}

	kind := balance.nextKind(s.rng)

	pool := availableTruth
	if kind == KindTroll {
		pool = availableTroll
	}
	if len(pool) == 0 {
		// Only reachable with a misconfigured empty catalogue; leave all
		// tracking state untouched.
		return s.fallback()
	}

	chosen := pool[int(s.rng()*float64(len(pool)))%len(pool)]

	used[chosen.Name] = true
	balance.record(kind)

	if err := s.saveUsedSet(ctx, sessionID, used); err != nil {
		return s.fallback()
	}
	if err := saveBalance(ctx, s.store, sessionID, balance); err != nil {
		return s.fallback()
	}
	if err := s.store.Expire(ctx, usedQuestionsKeyPrefix+sessionID, s.sessionTTL); err != nil {
		return s.fallback()
	}
	if err := s.store.Expire(ctx, balanceKeyPrefix+sessionID, s.sessionTTL); err != nil {
		return s.fallback()
	}

	return Selection{
		Subreddit:      chosen.Subreddit(),
		Kind:           kind,
		PoolRefreshed:  refreshed,
		UsedCount:      len(used),
		TotalAvailable: len(s.catalog),
		Balance:        balance,
	}
}
