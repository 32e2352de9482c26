package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := testConfig()
	store := newTestStore(t)
	hub := newLiveHub()
	go hub.run()

	errs := make(chan error, 64)
	mux := httprouter.New()
	registerGameAPI(cfg, mux, store, hub, errs)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("GET %s decode: %v", url, err)
	}
	return payload
}

func postJSON(t *testing.T, url, body string, wantStatus int) map[string]any {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("POST %s decode: %v", url, err)
	}
	return payload
}

func TestBalancedQuestionsEndpoint(t *testing.T) {
	server := newTestServer(t)

	payload := getJSON(t, server.URL+"/api/balanced-questions?sessionId=s1", http.StatusOK)
	if payload["success"] != true {
		t.Fatalf("payload = %v", payload)
	}
	if payload["subreddit"] == "" {
		t.Error("empty subreddit")
	}
	kind, _ := payload["questionType"].(string)
	if kind != "truth" && kind != "troll" {
		t.Errorf("questionType = %q", kind)
	}
	if strings.HasSuffix(payload["subreddit"].(string), fakeSuffix) {
		t.Errorf("subreddit %q leaked the kind suffix", payload["subreddit"])
	}

	balance, ok := payload["balance"].(map[string]any)
	if !ok {
		t.Fatalf("balance = %v", payload["balance"])
	}
	if balance["truth"].(float64)+balance["troll"].(float64) != 1 {
		t.Errorf("balance after one round = %v", balance)
	}
}

func TestBalancedQuestionsRequiresSession(t *testing.T) {
	server := newTestServer(t)

	payload := getJSON(t, server.URL+"/api/balanced-questions", http.StatusBadRequest)
	if payload["success"] != false {
		t.Errorf("payload = %v", payload)
	}
}

func TestTrackEndpointsRoundTrip(t *testing.T) {
	server := newTestServer(t)

	payload := postJSON(t, server.URL+"/api/track-fake-post", `{"postId":"tech_001"}`, http.StatusOK)
	if payload["success"] != true || payload["totalUsedPosts"].(float64) != 1 {
		t.Errorf("track-fake-post payload = %v", payload)
	}

	postJSON(t, server.URL+"/api/track-fake-post", `{}`, http.StatusBadRequest)

	payload = postJSON(t, server.URL+"/api/track-truth-post",
		`{"postId":"abc123","subreddit":"science","sessionId":"s1"}`, http.StatusOK)
	if payload["success"] != true {
		t.Errorf("track-truth-post payload = %v", payload)
	}

	payload = getJSON(t, server.URL+"/api/recent-truth-posts?sessionId=s1", http.StatusOK)
	recent, _ := payload["recentPosts"].([]any)
	if len(recent) != 1 || recent[0] != "abc123" {
		t.Errorf("recentPosts = %v", recent)
	}

	// Another session sees nothing.
	payload = getJSON(t, server.URL+"/api/recent-truth-posts?sessionId=s2", http.StatusOK)
	if recent, _ := payload["recentPosts"].([]any); len(recent) != 0 {
		t.Errorf("recentPosts for fresh session = %v", recent)
	}
}

func TestTrackTruthPostWithoutSession(t *testing.T) {
	server := newTestServer(t)

	// Older clients send only the post and its subreddit.
	payload := postJSON(t, server.URL+"/api/track-truth-post",
		`{"postId":"def456","subreddit":"science"}`, http.StatusOK)
	if payload["success"] != true || payload["totalUsedPosts"].(float64) != 1 {
		t.Errorf("sessionless track payload = %v", payload)
	}

	// The sessionless record stays out of real sessions.
	payload = getJSON(t, server.URL+"/api/recent-truth-posts?sessionId=s1", http.StatusOK)
	if recent, _ := payload["recentPosts"].([]any); len(recent) != 0 {
		t.Errorf("sessionless record leaked into a session: %v", recent)
	}
}

func TestSubmitGameScoreEndpoint(t *testing.T) {
	server := newTestServer(t)

	payload := postJSON(t, server.URL+"/api/submit-game-score",
		`{"username":"alice","gameScore":8,"correctAnswers":8,"totalQuestions":10}`, http.StatusOK)
	if payload["success"] != true || payload["playerRank"].(float64) != 1 {
		t.Fatalf("submit payload = %v", payload)
	}

	postJSON(t, server.URL+"/api/submit-game-score", `{"username":"alice"}`, http.StatusBadRequest)

	payload = getJSON(t, server.URL+"/api/leaderboard", http.StatusOK)
	entries, _ := payload["leaderboard"].([]any)
	if len(entries) != 1 {
		t.Fatalf("leaderboard = %v", payload)
	}
	entry := entries[0].(map[string]any)
	if entry["username"] != "alice" || entry["bestScore"].(float64) != 8 {
		t.Errorf("entry = %v", entry)
	}

	postJSON(t, server.URL+"/api/reset-leaderboard", ``, http.StatusOK)
	payload = getJSON(t, server.URL+"/api/leaderboard", http.StatusOK)
	if entries, _ := payload["leaderboard"].([]any); len(entries) != 0 {
		t.Errorf("leaderboard after reset = %v", entries)
	}
}

func TestFakePostEndpoints(t *testing.T) {
	server := newTestServer(t)

	payload := getJSON(t, server.URL+"/api/fake-post?topic=technology", http.StatusOK)
	if payload["success"] != true {
		t.Fatalf("fake-post payload = %v", payload)
	}
	post, _ := payload["post"].(map[string]any)
	if post["id"] == "" || post["title"] == "" {
		t.Errorf("post = %v", post)
	}

	payload = getJSON(t, server.URL+"/api/fake-post-stats", http.StatusOK)
	if payload["success"] != true || payload["usedPosts"].(float64) != 0 {
		t.Errorf("stats payload = %v", payload)
	}
}

func TestSessionEndpoints(t *testing.T) {
	server := newTestServer(t)

	payload := postJSON(t, server.URL+"/api/new-session", ``, http.StatusOK)
	sessionID, _ := payload["sessionId"].(string)
	if sessionID == "" {
		t.Fatalf("new-session payload = %v", payload)
	}

	payload = getJSON(t, server.URL+"/api/session-state?sessionId="+sessionID, http.StatusOK)
	if payload["phase"] != string(PhaseAwaitingSelection) {
		t.Errorf("fresh phase = %v", payload["phase"])
	}

	// Selecting a round moves the machine along.
	getJSON(t, server.URL+"/api/balanced-questions?sessionId="+sessionID, http.StatusOK)
	payload = getJSON(t, server.URL+"/api/session-state?sessionId="+sessionID, http.StatusOK)
	if payload["phase"] != string(PhaseRoundActive) {
		t.Errorf("phase after selection = %v", payload["phase"])
	}

	payload = postJSON(t, server.URL+"/api/advance-session",
		`{"sessionId":"`+sessionID+`","event":"resolve"}`, http.StatusOK)
	if payload["phase"] != string(PhaseRoundResolved) || payload["roundsComplete"].(float64) != 1 {
		t.Errorf("resolve payload = %v", payload)
	}

	// An out-of-order event is rejected with the current state attached.
	payload = postJSON(t, server.URL+"/api/advance-session",
		`{"sessionId":"`+sessionID+`","event":"resolve"}`, http.StatusConflict)
	if payload["success"] != false || payload["phase"] != string(PhaseRoundResolved) {
		t.Errorf("conflict payload = %v", payload)
	}
}
