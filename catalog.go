/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "strings"

// Kind declares which slot a round's featured content fills: a genuine
// fetched post (truth) or a synthetic one the player must spot (troll).
type Kind string

const (
	KindTruth Kind = "truth"
	KindTroll Kind = "troll"
)

const fakeSuffix = "_fake"

// Source is one entry in the fixed question catalogue. Troll entries carry
// the fakeSuffix on their name so the two pools stay mirrored per topic.
type Source struct {
	Name string
	Kind Kind
}

// Subreddit strips the kind decoration, returning the bare community name
// the round should masquerade under.
func (s Source) Subreddit() string {
	return strings.TrimSuffix(s.Name, fakeSuffix)
}

type Catalog []Source

// defaultCatalog mirrors sixteen topics across both kinds, guaranteeing the
// selector always has a symmetric pool to balance against.
func defaultCatalog() Catalog {
	topics := []string{
		"AskReddit",
		"todayilearned",
		"mildlyinteresting",
		"showerthoughts",
		"explainlikeimfive",
		"science",
		"history",
		"technology",
		"unpopularopinion",
		"AmItheAsshole",
		"relationship_advice",
		"LifeProTips",
		"YouShouldKnow",
		"NoStupidQuestions",
		"OutOfTheLoop",
		"changemyview",
	}

	catalog := make(Catalog, 0, 2*len(topics))
	for _, topic := range topics {
		catalog = append(catalog, Source{Name: topic, Kind: KindTruth})
	}
	for _, topic := range topics {
		catalog = append(catalog, Source{Name: topic + fakeSuffix, Kind: KindTroll})
	}

	return catalog
}

// byKind returns the catalogue entries of the given kind.
func (c Catalog) byKind(kind Kind) []Source {
	matches := make([]Source, 0, len(c)/2)
	for _, source := range c {
		if source.Kind == kind {
			matches = append(matches, source)
		}
	}
	return matches
}

// availableByKind returns the entries of the given kind not yet served to
// this session.
func (c Catalog) availableByKind(used map[string]bool, kind Kind) []Source {
	available := make([]Source, 0, len(c)/2)
	for _, source := range c {
		if source.Kind == kind && !used[source.Name] {
			available = append(available, source)
		}
	}
	return available
}
