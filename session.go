/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const sessionStateKeyPrefix = "session_state:"

// SessionPhase is one stop in a play-through's lifecycle. Progression is
// driven entirely by explicit events from the client, never by timers.
type SessionPhase string

const (
	PhaseAwaitingSelection SessionPhase = "awaiting-selection"
	PhaseRoundActive       SessionPhase = "round-active"
	PhaseRoundResolved     SessionPhase = "round-resolved"
	PhaseSessionComplete   SessionPhase = "session-complete"
)

// SessionEvent requests a phase transition.
type SessionEvent string

const (
	// EventSelect fires when a round selection has been handed out.
	EventSelect SessionEvent = "select"
	// EventResolve fires when the player has voted and the round is scored.
	EventResolve SessionEvent = "resolve"
	// EventAdvance moves to the next round, or completes the session once
	// every round has been resolved.
	EventAdvance SessionEvent = "advance"
)

// SessionState tracks where one play-through is in its round loop.
type SessionState struct {
	Phase          SessionPhase `json:"phase"`
	RoundsComplete int          `json:"roundsComplete"`
}

func newSessionState() SessionState {
	return SessionState{Phase: PhaseAwaitingSelection}
}

// apply advances the state machine by one event. Invalid transitions are
// rejected, which is how a double-submit from a flaky client surfaces.
func (st SessionState) apply(event SessionEvent, totalRounds int) (SessionState, error) {
	switch {
	case event == EventSelect && st.Phase == PhaseAwaitingSelection:
		st.Phase = PhaseRoundActive
	case event == EventResolve && st.Phase == PhaseRoundActive:
		st.Phase = PhaseRoundResolved
		st.RoundsComplete++
	case event == EventAdvance && st.Phase == PhaseRoundResolved:
		if st.RoundsComplete >= totalRounds {
			st.Phase = PhaseSessionComplete
		} else {
			st.Phase = PhaseAwaitingSelection
		}
	default:
		return st, fmt.Errorf("event %q not valid in phase %q", event, st.Phase)
	}

	return st, nil
}

// Sessions persists each play-through's state machine in the tracking
// store, under the same expiry horizon as the rest of the session state.
type Sessions struct {
	store       *TrackingStore
	totalRounds int
	sessionTTL  time.Duration
}

func newSessions(cfg *Config, store *TrackingStore) *Sessions {
	return &Sessions{
		store:       store,
		totalRounds: cfg.rounds,
		sessionTTL:  cfg.sessionTTL,
	}
}

// State loads a session's current state, starting a fresh one for unknown
// session IDs. Session identifiers are untrusted free-form keys.
func (s *Sessions) State(ctx context.Context, sessionID string) (SessionState, error) {
	raw, ok, err := s.store.Get(ctx, sessionStateKeyPrefix+sessionID)
	if err != nil {
		return SessionState{}, err
	}
	if !ok {
		return newSessionState(), nil
	}

	var state SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return newSessionState(), nil
	}
	return state, nil
}

// Advance applies one event to a session's state machine and persists the
// result.
func (s *Sessions) Advance(ctx context.Context, sessionID string, event SessionEvent) (SessionState, error) {
	state, err := s.State(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}

	next, err := state.apply(event, s.totalRounds)
	if err != nil {
		return state, err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return state, err
	}
	key := sessionStateKeyPrefix + sessionID
	if err := s.store.Set(ctx, key, string(encoded)); err != nil {
		return state, err
	}
	if err := s.store.Expire(ctx, key, s.sessionTTL); err != nil {
		return state, err
	}

	return next, nil
}
