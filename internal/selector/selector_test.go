package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

type scriptedRanker struct {
	replies []string
	errs    []error
	calls   int
	titles  []string
}

func (r *scriptedRanker) Rank(_ context.Context, titles []string) (string, error) {
	r.titles = titles
	i := r.calls
	r.calls++
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if i >= len(r.replies) {
		return r.replies[len(r.replies)-1], err
	}
	return r.replies[i], err
}

type scriptedProposer struct {
	proposals []string
	err       error
	calls     int
}

func (p *scriptedProposer) ProposeTopic(context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	i := p.calls
	p.calls++
	if i >= len(p.proposals) {
		return p.proposals[len(p.proposals)-1], nil
	}
	return p.proposals[i], nil
}

func fast() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func candidates(titles ...string) []topics.Topic {
	out := make([]topics.Topic, len(titles))
	for i, t := range titles {
		out[i] = topics.Topic{RawTopic: t, SourceURL: "https://example.com/" + t}
	}
	return out
}

func TestPickFromCandidates_OneBasedReply(t *testing.T) {
	ranker := &scriptedRanker{replies: []string{"2"}}
	s := New(Config{Ranker: ranker, Retry: fast()})

	pick, err := s.PickFromCandidates(context.Background(), candidates("x", "y", "z"))
	require.NoError(t, err)
	assert.Equal(t, 1, pick.Index)
	assert.Equal(t, "y", pick.Topic.RawTopic)
	assert.Equal(t, []string{"x", "y", "z"}, ranker.titles)
	assert.Equal(t, 1, ranker.calls)
}

func TestPickFromCandidates_RetriesOutOfRange(t *testing.T) {
	for _, bad := range []string{"0", "4", "-1", "none of these", ""} {
		ranker := &scriptedRanker{replies: []string{bad, "3"}}
		s := New(Config{Ranker: ranker, Retry: fast()})

		pick, err := s.PickFromCandidates(context.Background(), candidates("x", "y", "z"))
		require.NoError(t, err, "reply %q", bad)
		assert.Equal(t, 2, pick.Index)
		assert.Equal(t, 2, pick.Attempts)
	}
}

func TestPickFromCandidates_ExhaustionIsSelectionFailure(t *testing.T) {
	ranker := &scriptedRanker{replies: []string{"99"}}
	s := New(Config{Ranker: ranker, Retry: fast()})

	_, err := s.PickFromCandidates(context.Background(), candidates("x", "y"))
	require.ErrorIs(t, err, pipeline.ErrSelectionFailure)
	assert.Equal(t, 3, ranker.calls)
}

func TestPickFromCandidates_RankerErrorsRetried(t *testing.T) {
	ranker := &scriptedRanker{replies: []string{"", "1"}, errs: []error{errors.New("429 rate limited")}}
	s := New(Config{Ranker: ranker, Retry: fast()})

	pick, err := s.PickFromCandidates(context.Background(), candidates("x", "y"))
	require.NoError(t, err)
	assert.Equal(t, 0, pick.Index)
}

func TestPickFromCandidates_EmptyInput(t *testing.T) {
	ranker := &scriptedRanker{replies: []string{"1"}}
	s := New(Config{Ranker: ranker, Retry: fast()})

	_, err := s.PickFromCandidates(context.Background(), nil)
	require.ErrorIs(t, err, ErrSelectionExhausted)
	assert.Zero(t, ranker.calls)
}

func TestPickFromCandidates_Angle(t *testing.T) {
	ranker := &scriptedRanker{replies: []string{"3\nAngle: what this means for interns"}}
	s := New(Config{Ranker: ranker, Retry: fast()})

	pick, err := s.PickFromCandidates(context.Background(), candidates("x", "y", "z"))
	require.NoError(t, err)
	assert.Equal(t, "what this means for interns", pick.Topic.PersonaAngle)
}

func TestParseChoice(t *testing.T) {
	cases := []struct {
		reply string
		n     int
		idx   int
		angle string
		ok    bool
	}{
		{reply: "2", n: 3, idx: 1, ok: true},
		{reply: " \"3\" ", n: 3, idx: 2, ok: true},
		{reply: "I'd go with 1.", n: 3, idx: 0, ok: true},
		{reply: "1\nthe intern angle", n: 2, idx: 0, angle: "the intern angle", ok: true},
		{reply: "3", n: 3, idx: 2, ok: true},
		{reply: "4", n: 3},
		{reply: "0", n: 3},
		{reply: "abc", n: 3},
	}
	for _, tc := range cases {
		idx, angle, err := ParseChoice(tc.reply, tc.n)
		if !tc.ok {
			assert.Error(t, err, "reply %q", tc.reply)
			continue
		}
		require.NoError(t, err, "reply %q", tc.reply)
		assert.Equal(t, tc.idx, idx, "reply %q", tc.reply)
		assert.Equal(t, tc.angle, angle, "reply %q", tc.reply)
	}
}

func TestRetryUntilFresh_StopsAtBound(t *testing.T) {
	seen := topics.NewSeenSet([]topics.Entry{{RawTopic: "Already posted"}})
	proposer := &scriptedProposer{proposals: []string{"already posted"}}
	s := New(Config{Proposer: proposer, FreshAttempts: 5})

	out, err := s.RetryUntilFresh(context.Background(), seen, "spicy")
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, proposer.calls)
	assert.Len(t, out.Rejected, 5)
}

func TestRetryUntilFresh_FindsFresh(t *testing.T) {
	seen := topics.NewSeenSet([]topics.Entry{{RawTopic: "old"}})
	proposer := &scriptedProposer{proposals: []string{"old", "  new idea  "}}
	s := New(Config{Proposer: proposer})

	out, err := s.RetryUntilFresh(context.Background(), seen, "spicy")
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, "new idea", out.Topic.RawTopic)
	assert.Equal(t, "", out.Topic.SourceURL)
	assert.Equal(t, "spicy", out.Topic.Source)
}

func TestRetryUntilFresh_ProposerFailure(t *testing.T) {
	s := New(Config{Proposer: &scriptedProposer{err: errors.New("llm down")}})
	_, err := s.RetryUntilFresh(context.Background(), topics.SeenSet{}, "spicy")
	require.ErrorIs(t, err, pipeline.ErrSelectionFailure)
}
