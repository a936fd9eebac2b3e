package compose

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTweetLength    = 280
	MinThreadSegments = 3
	MaxThreadSegments = 6
)

var (
	errEmpty   = errors.New("model returned empty text")
	errTooLong = errors.New("tweet exceeds 280 characters")
)

// CleanTweet trims surrounding whitespace and quotes, then enforces the
// single-tweet bounds.
func CleanTweet(raw string) (string, error) {
	text := stripQuotes(strings.TrimSpace(raw))
	if text == "" {
		return "", errEmpty
	}
	if n := utf8.RuneCountInString(text); n > MaxTweetLength {
		return "", fmt.Errorf("%w: %d characters", errTooLong, n)
	}
	return text, nil
}

func stripQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"`", "`"}}
	for {
		stripped := false
		for _, p := range pairs {
			if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
				s = strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
				stripped = true
			}
		}
		if !stripped {
			return s
		}
	}
}

var segmentPrefix = regexp.MustCompile(`^(?i:tweet\s*)?\d+\s*(?:/\s*\d+|[\)\.:/])\s*`)

// ParseThread splits a model reply into thread segments, one per non-blank
// line, with numbering stripped. The thread must have 3 to 6 segments, each
// within the tweet limit.
func ParseThread(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errEmpty
	}

	var segments []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(segmentPrefix.ReplaceAllString(line, ""))
		line = stripQuotes(line)
		if line == "" {
			continue
		}
		segments = append(segments, line)
	}

	if len(segments) < MinThreadSegments {
		return nil, fmt.Errorf("thread has %d segments, need at least %d", len(segments), MinThreadSegments)
	}
	if len(segments) > MaxThreadSegments {
		return nil, fmt.Errorf("thread has %d segments, at most %d allowed", len(segments), MaxThreadSegments)
	}
	for i, s := range segments {
		if n := utf8.RuneCountInString(s); n > MaxTweetLength {
			return nil, fmt.Errorf("segment %d: %w: %d characters", i+1, errTooLong, n)
		}
	}
	return segments, nil
}

// hintFor turns a validation failure into a corrective instruction for the
// next attempt.
func hintFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errTooLong):
		return "IMPORTANT: your previous response was too long. Keep every tweet under 280 characters."
	case errors.Is(err, errEmpty):
		return "IMPORTANT: your previous response was empty. Respond with the requested text."
	case strings.Contains(err.Error(), "segments"):
		return fmt.Sprintf("IMPORTANT: %s. Write %d to %d tweets, one per line.", err.Error(), MinThreadSegments, MaxThreadSegments)
	default:
		return ""
	}
}
