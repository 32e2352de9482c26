/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
)

const balanceKeyPrefix = "balance:"

// Balance counts how many rounds of each kind a session has been served.
// After any number of completed rounds the two counts never differ by more
// than one, so an even-length play-through ends an exact split.
type Balance struct {
	Truth int `json:"truth"`
	Troll int `json:"troll"`
}

func (b Balance) total() int {
	return b.Truth + b.Troll
}

// nextKind applies the catch-up rule: the lagging kind is owed the next
// round; on a tie the coin flip (rng < 0.5 means truth) is the only source
// of randomness in kind selection.
func (b Balance) nextKind(rng func() float64) Kind {
	switch {
	case b.Truth < b.Troll:
		return KindTruth
	case b.Troll < b.Truth:
		return KindTroll
	case rng() < 0.5:
		return KindTruth
	default:
		return KindTroll
	}
}

func (b *Balance) record(kind Kind) {
	if kind == KindTruth {
		b.Truth++
	} else {
		b.Troll++
	}
}

func loadBalance(ctx context.Context, store *TrackingStore, sessionID string) (Balance, error) {
	var balance Balance

	raw, ok, err := store.Get(ctx, balanceKeyPrefix+sessionID)
	if err != nil {
		return balance, err
	}
	if !ok {
		return balance, nil
	}
	if err := json.Unmarshal([]byte(raw), &balance); err != nil {
		// Unreadable state starts a fresh count rather than wedging the session.
		return Balance{}, nil
	}

	return balance, nil
}

func saveBalance(ctx context.Context, store *TrackingStore, sessionID string, balance Balance) error {
	encoded, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return store.Set(ctx, balanceKeyPrefix+sessionID, string(encoded))
}
