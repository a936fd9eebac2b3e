// Package topics defines the candidate topic type and the deduplication
// policy applied against the used-topic ledger.
package topics

import (
	"strings"
	"unicode/utf8"
)

// MaxSummaryLength bounds ContextSummary, in characters.
const MaxSummaryLength = 280

// Topic is a candidate or chosen subject for a post.
type Topic struct {
	RawTopic       string
	Source         string
	SourceURL      string
	ContextSummary string
	// PersonaAngle is an optional framing suggested by the ranker.
	PersonaAngle string
	// LedgerID is set once the topic has been reserved in the ledger.
	LedgerID string
}

// New builds a topic with its summary truncated to MaxSummaryLength.
func New(rawTopic, source, sourceURL, summary string) Topic {
	return Topic{
		RawTopic:       strings.TrimSpace(rawTopic),
		Source:         source,
		SourceURL:      strings.TrimSpace(sourceURL),
		ContextSummary: Truncate(strings.TrimSpace(summary), MaxSummaryLength),
	}
}

// Freeform builds a generated topic with no source URL.
func Freeform(rawTopic, source string) Topic {
	return New(rawTopic, source, "", "")
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Entry is the subset of a ledger record the filter needs.
type Entry struct {
	RawTopic  string
	SourceURL string
}

// Key is the dedup identity of a topic.
type Key struct {
	// ByURL is true when Value is a source URL, false when it is a
	// normalized title.
	ByURL bool
	Value string
}

// KeyOf returns the dedup key: the trimmed SourceURL when present, otherwise
// the normalized RawTopic.
func KeyOf(t Topic) Key {
	if u := strings.TrimSpace(t.SourceURL); u != "" {
		return Key{ByURL: true, Value: u}
	}
	return Key{Value: NormalizeTitle(t.RawTopic)}
}

// String renders the key for storage in the ledger's unique column.
func (k Key) String() string {
	if k.ByURL {
		return "url:" + k.Value
	}
	return "title:" + k.Value
}

// NormalizeTitle trims, lower-cases and collapses internal whitespace.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SeenSet is a snapshot of used topics indexed for lookup.
type SeenSet struct {
	urls   map[string]struct{}
	titles map[string]struct{}
}

// NewSeenSet indexes a ledger snapshot. URLs are indexed for URL-keyed
// candidates and every raw topic is indexed for title-keyed candidates.
func NewSeenSet(entries []Entry) SeenSet {
	s := SeenSet{
		urls:   make(map[string]struct{}, len(entries)),
		titles: make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		if u := strings.TrimSpace(e.SourceURL); u != "" {
			s.urls[u] = struct{}{}
		}
		if title := NormalizeTitle(e.RawTopic); title != "" {
			s.titles[title] = struct{}{}
		}
	}
	return s
}

// Add records t as seen.
func (s *SeenSet) Add(t Topic) {
	if s.urls == nil {
		s.urls = make(map[string]struct{})
	}
	if s.titles == nil {
		s.titles = make(map[string]struct{})
	}
	if u := strings.TrimSpace(t.SourceURL); u != "" {
		s.urls[u] = struct{}{}
	}
	if title := NormalizeTitle(t.RawTopic); title != "" {
		s.titles[title] = struct{}{}
	}
}

// Contains reports whether t's dedup key is already used.
func (s SeenSet) Contains(t Topic) bool {
	k := KeyOf(t)
	if k.ByURL {
		_, ok := s.urls[k.Value]
		return ok
	}
	_, ok := s.titles[k.Value]
	return ok
}

// ContainsTitle reports whether a normalized title matches any used raw topic.
func (s SeenSet) ContainsTitle(title string) bool {
	_, ok := s.titles[NormalizeTitle(title)]
	return ok
}

// Len is the number of distinct keys indexed.
func (s SeenSet) Len() int { return len(s.urls) + len(s.titles) }

// Filter splits candidates into unseen and seen, preserving order.
func Filter(candidates []Topic, seen SeenSet) (unseen, used []Topic) {
	unseen = make([]Topic, 0, len(candidates))
	for _, c := range candidates {
		if seen.Contains(c) {
			used = append(used, c)
			continue
		}
		unseen = append(unseen, c)
	}
	return unseen, used
}

// Titles lists the raw topics in order.
func Titles(ts []Topic) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.RawTopic
	}
	return out
}
