/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

func writeJSON(cfg *Config, w http.ResponseWriter, status int, payload any, errs chan<- error) int {
	body, err := json.Marshal(payload)
	if err != nil {
		errs <- err
		return 0
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, err := w.Write(body)
	if err != nil {
		errs <- err
	}

	return written
}

func writeClientError(cfg *Config, w http.ResponseWriter, message string, errs chan<- error) {
	writeJSON(cfg, w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   message,
	}, errs)
}

func serveBalancedQuestions(cfg *Config, selector *Selector, sessions *Sessions, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			writeClientError(cfg, w, "Session ID is required", errs)
			return
		}

		selection := selector.SelectRound(r.Context(), sessionID)

		// A selection that was handed out starts the round; a flaky
		// double-request shows up here as an invalid transition and is
		// logged, not failed.
		if _, err := sessions.Advance(r.Context(), sessionID, EventSelect); err != nil {
			logf(cfg, "GAMES: Session %s select transition: %v", sessionID, err)
		}

		written := writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":        true,
			"subreddit":      selection.Subreddit,
			"questionType":   selection.Kind,
			"usedCount":      selection.UsedCount,
			"totalAvailable": selection.TotalAvailable,
			"balance":        selection.Balance,
			"poolRefreshed":  selection.PoolRefreshed,
		}, errs)

		logf(cfg, "SERVE: Round selection %s/%s for session %s (%s) to %s in %s",
			selection.Subreddit,
			selection.Kind,
			sessionID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveTrackFakePost(cfg *Config, guard *Guard, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			PostID string `json:"postId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PostID == "" {
			writeClientError(cfg, w, "Post ID is required", errs)
			return
		}

		// A failed write costs duplicate avoidance, not the round.
		total, err := guard.RecordFakeUsed(r.Context(), body.PostID)
		if err != nil {
			logf(cfg, "STORE: Failed to track fake post %s: %v", body.PostID, err)
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":        true,
			"totalUsedPosts": total,
		}, errs)
	}
}

func serveTrackTruthPost(cfg *Config, guard *Guard, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			PostID    string `json:"postId"`
			Subreddit string `json:"subreddit"`
			SessionID string `json:"sessionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PostID == "" {
			writeClientError(cfg, w, "Post ID is required", errs)
			return
		}

		// Clients predating per-session tracking send only {postId,
		// subreddit}; those records land in a shared sessionless bucket.
		sessionID := body.SessionID
		if sessionID == "" {
			sessionID = r.URL.Query().Get("sessionId")
		}

		total, err := guard.RecordTruthUsed(r.Context(), sessionID, body.PostID, body.Subreddit)
		if err != nil {
			logf(cfg, "STORE: Failed to track truth post %s: %v", body.PostID, err)
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":        true,
			"totalUsedPosts": total,
		}, errs)
	}
}

func serveRecentTruthPosts(cfg *Config, guard *Guard, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			writeClientError(cfg, w, "Session ID is required", errs)
			return
		}

		recent, err := guard.SessionTruthPosts(r.Context(), sessionID)
		if err != nil {
			logf(cfg, "STORE: Failed to load truth posts for session %s: %v", sessionID, err)
			recent = []string{}
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":      true,
			"recentPosts":  recent,
			"totalTracked": len(recent),
		}, errs)
	}
}

func serveSubmitGameScore(cfg *Config, leaderboard *Leaderboard, hub *LiveHub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Username       string `json:"username"`
			GameScore      *int   `json:"gameScore"`
			CorrectAnswers *int   `json:"correctAnswers"`
			TotalQuestions *int   `json:"totalQuestions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
			body.Username == "" || body.GameScore == nil || body.CorrectAnswers == nil || body.TotalQuestions == nil {
			writeClientError(cfg, w, "Missing required fields: username, gameScore, correctAnswers, totalQuestions", errs)
			return
		}

		rank, entry, totalPlayers, err := leaderboard.Submit(r.Context(), body.Username, *body.GameScore, *body.CorrectAnswers, *body.TotalQuestions)
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to submit game score",
			}, errs)
			return
		}

		logf(cfg, "GAMES: Player %q submitted score %d (rank %d of %d)", body.Username, *body.GameScore, rank, totalPlayers)

		if entries, stats, err := leaderboard.Entries(r.Context()); err == nil {
			hub.Broadcast(LeaderboardUpdateMessage{
				Type:        "leaderboard_update",
				Leaderboard: entries,
				Stats:       stats,
			})
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":      true,
			"playerRank":   rank,
			"playerEntry":  entry,
			"totalPlayers": totalPlayers,
		}, errs)
	}
}

func serveLeaderboard(cfg *Config, leaderboard *Leaderboard, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		entries, stats, err := leaderboard.Entries(r.Context())
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success":     false,
				"error":       "Failed to fetch leaderboard",
				"leaderboard": []LeaderboardEntry{},
				"stats":       LeaderboardStats{},
			}, errs)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":     true,
			"leaderboard": entries,
			"stats":       stats,
		}, errs)
	}
}

func serveResetLeaderboard(cfg *Config, leaderboard *Leaderboard, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := leaderboard.Reset(r.Context()); err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to reset leaderboard",
			}, errs)
			return
		}

		logf(cfg, "GAMES: Leaderboard reset by %s", realIP(r))

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Leaderboard has been reset successfully!",
		}, errs)
	}
}

func serveFakePost(cfg *Config, fakes *FakePosts, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		topic := r.URL.Query().Get("topic")

		post, err := fakes.Select(r.Context(), topic)
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to generate fake post",
			}, errs)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success": true,
			"post":    post,
		}, errs)
	}
}

func serveFakePostStats(cfg *Config, guard *Guard, fakes *FakePosts, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		used, err := guard.fakeUsedCount(r.Context())
		if err != nil {
			logf(cfg, "STORE: Failed to count used fake posts: %v", err)
			used = 0
		}

		total := fakes.poolSize()
		percentage := 0
		if total > 0 {
			percentage = int(float64(used)/float64(total)*100 + 0.5)
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":         true,
			"usedPosts":       used,
			"totalPosts":      total,
			"availablePosts":  total - used,
			"usagePercentage": percentage,
		}, errs)
	}
}

func serveFreshTruthPost(cfg *Config, truths *TruthPosts, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		subreddit := r.URL.Query().Get("subreddit")
		sessionID := r.URL.Query().Get("sessionId")
		if subreddit == "" || sessionID == "" {
			writeClientError(cfg, w, "Subreddit and sessionId are required", errs)
			return
		}

		post, err := truths.Select(r.Context(), subreddit, sessionID)
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to fetch fresh truth posts",
			}, errs)
			return
		}

		written := writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success": true,
			"post":    post,
		}, errs)

		logf(cfg, "SERVE: Truth post %s from r/%s (%s) to %s in %s",
			post.ID,
			post.Subreddit,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveNewSession(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := uuid.NewString()

		logf(cfg, "GAMES: Created session %s for %s", sessionID, realIP(r))

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":   true,
			"sessionId": sessionID,
		}, errs)
	}
}

func serveSessionState(cfg *Config, sessions *Sessions, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			writeClientError(cfg, w, "Session ID is required", errs)
			return
		}

		state, err := sessions.State(r.Context(), sessionID)
		if err != nil {
			logf(cfg, "STORE: Failed to load state for session %s: %v", sessionID, err)
			state = newSessionState()
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":        true,
			"phase":          state.Phase,
			"roundsComplete": state.RoundsComplete,
		}, errs)
	}
}

func serveAdvanceSession(cfg *Config, sessions *Sessions, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			SessionID string `json:"sessionId"`
			Event     string `json:"event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" || body.Event == "" {
			writeClientError(cfg, w, "Session ID and event are required", errs)
			return
		}

		state, err := sessions.Advance(r.Context(), body.SessionID, SessionEvent(body.Event))
		if err != nil {
			writeJSON(cfg, w, http.StatusConflict, map[string]any{
				"success":        false,
				"error":          err.Error(),
				"phase":          state.Phase,
				"roundsComplete": state.RoundsComplete,
			}, errs)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":        true,
			"phase":          state.Phase,
			"roundsComplete": state.RoundsComplete,
		}, errs)
	}
}
