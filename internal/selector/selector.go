// Package selector chooses which topic to post about.
package selector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

// DefaultFreshAttempts bounds RetryUntilFresh.
const DefaultFreshAttempts = 5

// ErrSelectionExhausted means there was nothing to choose from.
var ErrSelectionExhausted = errors.New("no candidates to select from")

// Ranker returns the model's raw reply to a numbered list of titles.
type Ranker interface {
	Rank(ctx context.Context, titles []string) (string, error)
}

// Proposer invents a standalone topic.
type Proposer interface {
	ProposeTopic(ctx context.Context) (string, error)
}

type Config struct {
	Ranker        Ranker
	Proposer      Proposer
	Retry         retry.Policy
	FreshAttempts int
	Logger        logging.Logger
}

type Selector struct {
	ranker        Ranker
	proposer      Proposer
	policy        retry.Policy
	freshAttempts int
	logger        logging.Logger
}

func New(cfg Config) *Selector {
	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	fresh := cfg.FreshAttempts
	if fresh <= 0 {
		fresh = DefaultFreshAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Selector{
		ranker:        cfg.Ranker,
		proposer:      cfg.Proposer,
		policy:        policy,
		freshAttempts: fresh,
		logger:        logger,
	}
}

// Pick is the ranker's choice.
type Pick struct {
	Index    int
	Topic    topics.Topic
	Attempts int
}

// PickFromCandidates asks the ranker for the best candidate. Replies that are
// not an in-range 1-based position are retried; exhaustion yields
// pipeline.ErrSelectionFailure wrapping the last problem.
func (s *Selector) PickFromCandidates(ctx context.Context, candidates []topics.Topic) (Pick, error) {
	if len(candidates) == 0 {
		return Pick{}, ErrSelectionExhausted
	}
	if s.ranker == nil {
		return Pick{}, pipeline.Wrap(pipeline.ErrSelectionFailure, errors.New("ranker not configured"))
	}

	titles := topics.Titles(candidates)
	type choice struct {
		index int
		angle string
	}

	res := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (choice, error) {
		reply, err := s.ranker.Rank(ctx, titles)
		if err != nil {
			return choice{}, err
		}
		idx, angle, err := ParseChoice(reply, len(titles))
		if err != nil {
			s.logger.WithFields(logging.Fields{
				"attempt": attempt,
				"reply":   topics.Truncate(reply, 80),
			}).Warn("Selector: unusable ranking reply")
			return choice{}, err
		}
		return choice{index: idx, angle: angle}, nil
	})
	if !res.OK() {
		return Pick{}, pipeline.Wrap(pipeline.ErrSelectionFailure, res.Err)
	}

	picked := candidates[res.Value.index]
	picked.PersonaAngle = res.Value.angle
	s.logger.WithFields(logging.Fields{
		"index":      res.Value.index,
		"title":      picked.RawTopic,
		"candidates": len(candidates),
		"attempts":   res.Attempts,
	}).Info("Selector: topic picked")

	return Pick{Index: res.Value.index, Topic: picked, Attempts: res.Attempts}, nil
}

var firstInt = regexp.MustCompile(`-?\d+`)

// ParseChoice reads the first integer in reply as a 1-based position in a
// list of n items and returns its 0-based index. Any text after the line
// holding the number is returned as the persona angle.
func ParseChoice(reply string, n int) (int, string, error) {
	reply = strings.TrimSpace(reply)
	loc := firstInt.FindStringIndex(reply)
	if loc == nil {
		return 0, "", fmt.Errorf("invalid index returned by model: %q", topics.Truncate(reply, 40))
	}
	pos, err := strconv.Atoi(reply[loc[0]:loc[1]])
	if err != nil {
		return 0, "", fmt.Errorf("invalid index returned by model: %q", reply[loc[0]:loc[1]])
	}
	idx := pos - 1
	if idx < 0 || idx >= n {
		return 0, "", fmt.Errorf("index %d out of range [1, %d]", pos, n)
	}

	var angle string
	if nl := strings.IndexByte(reply[loc[1]:], '\n'); nl >= 0 {
		angle = strings.TrimSpace(reply[loc[1]+nl+1:])
		if i := strings.IndexByte(angle, ':'); i >= 0 && strings.EqualFold(strings.TrimSpace(angle[:i]), "angle") {
			angle = strings.TrimSpace(angle[i+1:])
		}
	}
	return idx, angle, nil
}

// Outcome is the explicit result of RetryUntilFresh.
type Outcome struct {
	Found    bool
	Topic    topics.Topic
	Attempts int
	// Rejected lists proposals that were already used.
	Rejected []string
}

// RetryUntilFresh asks the proposer for topics until one is absent from
// seen, up to the configured bound. Running out is reported through
// Outcome.Found, not as an error. Proposer failures are selection failures.
func (s *Selector) RetryUntilFresh(ctx context.Context, seen topics.SeenSet, source string) (Outcome, error) {
	if s.proposer == nil {
		return Outcome{}, pipeline.Wrap(pipeline.ErrSelectionFailure, errors.New("proposer not configured"))
	}

	var out Outcome
	for attempt := 1; attempt <= s.freshAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = attempt

		proposal, err := s.proposer.ProposeTopic(ctx)
		if err != nil {
			return out, pipeline.Wrap(pipeline.ErrSelectionFailure, err)
		}
		proposal = strings.TrimSpace(proposal)
		if proposal == "" || seen.ContainsTitle(proposal) {
			out.Rejected = append(out.Rejected, proposal)
			s.logger.WithFields(logging.Fields{
				"attempt":  attempt,
				"proposal": proposal,
			}).Debug("Selector: proposal already used")
			continue
		}

		out.Found = true
		out.Topic = topics.Freeform(proposal, source)
		return out, nil
	}

	s.logger.WithField("attempts", out.Attempts).Info("Selector: no fresh topic after bound")
	return out, nil
}
