/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Post is one social-media post as shown to the player, whether fetched or
// synthetic.
type Post struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Subreddit string `json:"subreddit"`
	Author    string `json:"author"`
	Upvotes   int    `json:"upvotes"`
}

type fakeTemplate struct {
	id    string
	title string
	body  string
}

// fakePool is the curated pool of synthetic posts, keyed by topic. IDs are
// stable so the shared duplicate guard can recognize them across deploys.
var fakePool = map[string][]fakeTemplate{
	"technology": {
		{
			id:    "tech_001",
			title: "My smart fridge has started leaving me passive-aggressive notes about my diet",
			body:  "It began with a push notification about expired yogurt. Now every morning the door display greets me with messages like \"another frozen pizza? bold choice.\" The manufacturer swears the firmware has no such feature. I have screenshots.",
		},
		{
			id:    "tech_002",
			title: "Found an ethernet port behind my bathroom mirror, landlord says the building \"predates the internet\"",
			body:  "Was re-caulking the mirror and found a live ethernet port behind it. Plugged my laptop in and got assigned an IP on a subnet called MGMT-LEGACY-DO-NOT-USE. The landlord insists the building was last wired in 1962. The port has link lights.",
		},
		{
			id:    "tech_003",
			title: "My robot vacuum has mapped a room that doesn't exist in my apartment",
			body:  "The companion app shows my floor plan plus an extra 40 square feet behind the kitchen wall, which it cleans every Tuesday. Support says the lidar \"doesn't hallucinate.\" My lease says the apartment is 580 square feet. The app says 620.",
		},
	},
	"pets": {
		{
			id:    "pets_001",
			title: "My cat has been commuting to a second family for three years, complete with a different name",
			body:  "Put a GPS tag on my cat and discovered he walks two blocks every morning to a house where he answers to \"Mr. Beans\" and receives a second breakfast. The other family had a vet file, a Christmas stocking, and a framed photo. We have agreed on joint custody.",
		},
		{
			id:    "pets_002",
			title: "Local shelter says my dog keeps breaking IN every time we go on vacation",
			body:  "We adopted Biscuit from the county shelter four years ago. Apparently every time we board him elsewhere, he escapes and shows up at the shelter's back door by morning. Staff now keep his old kennel made up \"like a hotel room.\" They sent us an invoice as a joke. I think.",
		},
	},
	"food": {
		{
			id:    "food_001",
			title: "Restaurant charged me a \"loyalty fee\" for ordering the same dish 47 times",
			body:  "The line item literally said \"predictability surcharge: $1.50.\" When I asked, the manager said their new POS system auto-flags \"menu-exploration-resistant customers.\" They comped it, but the receipt also suggested three dishes I might enjoy \"branching out\" with.",
		},
		{
			id:    "food_002",
			title: "My sourdough starter is legally older than my house, and the county has opinions",
			body:  "Inherited a starter that's been alive since 1911. When I mentioned it on a home-insurance call, they transferred me to a \"heritage perishables\" department and asked if it was appraised. There is apparently a waiting list of bakeries that want to be named in my will.",
		},
	},
	"science": {
		{
			id:    "sci_001",
			title: "TIL that pigeons in three major cities have independently learned to ride specific subway lines",
			body:  "A 2019 transit study tracked tagged pigeons boarding at the same stations every morning and exiting at known food courts, with a 92% route consistency. Researchers noted the birds avoid peak hours and transfer lines when their usual route has delays.",
		},
		{
			id:    "sci_002",
			title: "Scientists find that houseplants grow measurably faster when their owners apologize for forgetting to water them",
			body:  "A double-blind study of 400 pothos plants found a 14% growth increase in the group receiving verbal apologies versus silent re-watering. The authors propose the effect is due to extra CO2 exposure from close-range speech, but admit the apology-only control group complicates that theory.",
		},
	},
	"gaming": {
		{
			id:    "gaming_001",
			title: "Speedrunner discovers a 1998 RPG ships with a second, hidden game that nobody has credited",
			body:  "Frame-by-frame menu manipulation during the load screen boots an entirely different, fully-voiced adventure game with no credits and no files on the disc manifest. The publisher's archives have no record of it. Former staff either don't reply or answer only \"let it stay found.\"",
		},
	},
	"work": {
		{
			id:    "work_001",
			title: "My company's \"anonymous\" suggestion box replies to suggestions, in writing, by name",
			body:  "Dropped a note about the broken coffee machine. Next morning there was a typed letter on my desk: \"Dear Martin, thank you for your anonymous feedback.\" HR insists the box is a regular wooden box. Facilities says they don't have a key for it. The letters keep coming.",
		},
	},
	"travel": {
		{
			id:    "travel_001",
			title: "Airline rebooked me onto a flight that, according to every schedule, does not exist",
			body:  "Flight TK-0 from gate F13. Not on the departure boards, not in the app, boarding pass scans fine. Crew was normal, plane was full, nobody else seemed concerned. We landed twenty minutes before my original flight departed. I have the stub and I don't show it to people anymore.",
		},
	},
	"relationships": {
		{
			id:    "rel_001",
			title: "AITA for maintaining a shared spreadsheet ranking my in-laws' casseroles for 11 years?",
			body:  "It started as a private joke with my wife. The spreadsheet now has 340 entries, weighted categories, and seasonal adjustment curves. At Thanksgiving my father-in-law found it and, instead of being angry, demanded edit access to contest his 2019 scores. Now the family is split into data factions.",
		},
	},
}

// fakeSubreddits maps each pool topic to communities a synthetic post can
// plausibly masquerade under.
var fakeSubreddits = map[string][]string{
	"technology":    {"technology", "programming", "gadgets", "homeautomation"},
	"pets":          {"cats", "dogs", "aww", "pets"},
	"food":          {"food", "cooking", "sourdough", "KitchenConfidential"},
	"science":       {"science", "todayilearned", "biology"},
	"gaming":        {"gaming", "speedrun", "retrogaming"},
	"work":          {"jobs", "antiwork", "WorkReform"},
	"travel":        {"travel", "flights", "solotravel"},
	"relationships": {"AmItheAsshole", "relationships", "relationship_advice"},
}

var fakeAuthors = []string{
	"confused_user_2024", "tech_enthusiast_42", "random_redditor", "throwaway_account_123",
	"daily_observer", "curious_mind_99", "life_is_weird", "unexpected_discovery",
	"modern_problems_", "digital_native_2k", "mystery_solver", "reality_check_",
}

// FakePosts serves synthetic posts from the curated pool while honoring the
// shared duplicate guard.
type FakePosts struct {
	pool  map[string][]fakeTemplate
	guard *Guard
	rng   func() float64
}

func newFakePosts(guard *Guard) *FakePosts {
	return &FakePosts{
		pool:  fakePool,
		guard: guard,
		rng:   rand.Float64,
	}
}

func (f *FakePosts) poolSize() int {
	total := 0
	for _, templates := range f.pool {
		total += len(templates)
	}
	return total
}

func (f *FakePosts) topics() []string {
	topics := make([]string, 0, len(f.pool))
	for topic := range f.pool {
		topics = append(topics, topic)
	}
	return topics
}

func (f *FakePosts) pick(candidates []fakeTemplate) fakeTemplate {
	return candidates[int(f.rng()*float64(len(candidates)))%len(candidates)]
}

func (f *FakePosts) unused(used map[string]int64, topics ...string) []fakeTemplate {
	candidates := make([]fakeTemplate, 0)
	for _, topic := range topics {
		for _, template := range f.pool[topic] {
			if _, found := used[template.id]; !found {
				candidates = append(candidates, template)
			}
		}
	}
	return candidates
}

// Select returns a synthetic post for the given topic, preferring posts
// nobody has been shown yet. An exhausted topic falls through to the other
// topics before any ID repeats; a fully exhausted pool falls back to the
// unfiltered topic rather than blocking the round.
func (f *FakePosts) Select(ctx context.Context, topic string) (Post, error) {
	if topic == "" || f.pool[topic] == nil {
		topics := f.topics()
		if len(topics) == 0 {
			return Post{}, errors.New("fake post pool is empty")
		}
		topic = topics[int(f.rng()*float64(len(topics)))%len(topics)]
	}

	used, err := f.guard.loadFakeSet(ctx)
	if err != nil {
		// Guard outage degrades to unfiltered selection.
		used = map[string]int64{}
	}

	candidates := f.unused(used, topic)
	if len(candidates) == 0 {
		candidates = f.unused(used, f.topics()...)
	}
	if len(candidates) == 0 {
		candidates = f.pool[topic]
	}
	if len(candidates) == 0 {
		return Post{}, errors.New("fake post pool is empty")
	}

	chosen := f.pick(candidates)
	chosenTopic := topicOf(chosen.id, f.pool)

	subreddits := fakeSubreddits[chosenTopic]
	subreddit := chosenTopic
	if len(subreddits) > 0 {
		subreddit = subreddits[int(f.rng()*float64(len(subreddits)))%len(subreddits)]
	}

	author := fakeAuthors[int(f.rng()*float64(len(fakeAuthors)))%len(fakeAuthors)]

	return Post{
		ID:        chosen.id,
		Title:     chosen.title,
		Body:      chosen.body,
		Subreddit: subreddit,
		Author:    fmt.Sprintf("%s%d", author, int(f.rng()*1000)),
		Upvotes:   1000 + int(f.rng()*15000),
	}, nil
}

func topicOf(id string, pool map[string][]fakeTemplate) string {
	for topic, templates := range pool {
		for _, template := range templates {
			if template.id == id {
				return topic
			}
		}
	}
	return ""
}

// feedListing mirrors the slice of the public feed's JSON we care about.
type feedListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				Author    string `json:"author"`
				Ups       int    `json:"ups"`
				Subreddit string `json:"subreddit"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// curatedTruthPosts backs the fetcher when every feed strategy fails.
var curatedTruthPosts = []Post{
	{
		ID:        "fallback1",
		Title:     "What's a skill that seems impressive but is actually easy to learn?",
		Body:      "I'm looking for something I can pick up relatively quickly that will make people think I'm more talented than I actually am. Any suggestions?",
		Subreddit: "AskReddit",
		Author:    "curious_learner",
		Upvotes:   15420,
	},
	{
		ID:        "fallback2",
		Title:     "People who work night shifts, what's the weirdest thing you've experienced?",
		Body:      "Working nights can be pretty surreal. What's the strangest, most unexplainable, or just plain weird thing that's happened to you during a night shift?",
		Subreddit: "AskReddit",
		Author:    "night_owl_worker",
		Upvotes:   23156,
	},
	{
		ID:        "fallback3",
		Title:     "What's something that everyone seems to love but you just don't get?",
		Body:      "We all have those things that are universally praised but just don't click with us. What's yours and why do you think you feel differently about it?",
		Subreddit: "AskReddit",
		Author:    "contrarian_view",
		Upvotes:   18934,
	},
}

// TruthPosts fetches genuine posts from the public feed, filtering out
// posts this session has already seen.
type TruthPosts struct {
	cfg     *Config
	baseURL string
	client  *http.Client
	guard   *Guard
	rng     func() float64
}

func newTruthPosts(cfg *Config, guard *Guard) *TruthPosts {
	return &TruthPosts{
		cfg:     cfg,
		baseURL: "https://www.reddit.com",
		client:  &http.Client{Timeout: 10 * time.Second},
		guard:   guard,
		rng:     rand.Float64,
	}
}

func (t *TruthPosts) strategies(subreddit string) []string {
	return []string{
		t.baseURL + "/r/" + subreddit + "/new.json?limit=50",
		t.baseURL + "/r/" + subreddit + "/top.json?limit=50&t=day",
		t.baseURL + "/r/" + subreddit + "/hot.json?limit=50",
		t.baseURL + "/r/all/new.json?limit=100",
	}
}

func (t *TruthPosts) fetchListing(ctx context.Context, url string) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var listing feedListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, Post{
			ID:        child.Data.ID,
			Title:     child.Data.Title,
			Body:      child.Data.Selftext,
			Subreddit: child.Data.Subreddit,
			Author:    child.Data.Author,
			Upvotes:   child.Data.Ups,
		})
	}
	return posts, nil
}

// presentable keeps text posts with enough substance to quiz on.
func presentable(post Post) bool {
	body := strings.TrimSpace(post.Body)
	return len(body) > 50 &&
		!strings.Contains(body, "[removed]") &&
		!strings.Contains(body, "[deleted]")
}

// Select fetches one fresh post for the round, trying several feed
// strategies, excluding posts this session has seen, and recording the
// served post in the session guard. A session that has seen everything
// falls back to the unfiltered candidates; a dead feed falls back to the
// curated set. A repeat is a quality degradation, never a failure.
func (t *TruthPosts) Select(ctx context.Context, subreddit, sessionID string) (Post, error) {
	used, err := t.guard.loadTruthMap(ctx, sessionID)
	if err != nil {
		used = map[string]truthUse{}
	}

	var posts []Post
	for _, url := range t.strategies(subreddit) {
		fetched, err := t.fetchListing(ctx, url)
		if err != nil || len(fetched) == 0 {
			continue
		}
		posts = fetched
		break
	}

	if len(posts) == 0 {
		posts = curatedTruthPosts
	}

	fresh := make([]Post, 0, len(posts))
	available := make([]Post, 0, len(posts))
	for _, post := range posts {
		if !presentable(post) {
			continue
		}
		available = append(available, post)
		if _, seen := used[post.ID]; !seen {
			fresh = append(fresh, post)
		}
	}

	candidates := fresh
	if len(candidates) == 0 {
		candidates = available
	}
	if len(candidates) == 0 {
		candidates = curatedTruthPosts
	}

	chosen := candidates[int(t.rng()*float64(len(candidates)))%len(candidates)]

	if len(chosen.Body) > 300 {
		cut := 300
		for cut > 0 && !utf8.RuneStart(chosen.Body[cut]) {
			cut--
		}
		chosen.Body = chosen.Body[:cut] + "..."
	}

	// Tracking failures must never block the round.
	if _, err := t.guard.RecordTruthUsed(ctx, sessionID, chosen.ID, chosen.Subreddit); err != nil {
		logf(t.cfg, "STORE: Failed to track truth post %s for session %s: %v", chosen.ID, sessionID, err)
	}

	return chosen, nil
}
