package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashanttc/tweetAut/internal/ledger"
	"github.com/prashanttc/tweetAut/internal/notify"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/publish"
	"github.com/prashanttc/tweetAut/internal/selector"
	"github.com/prashanttc/tweetAut/internal/sources"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

type memLedger struct {
	mu     sync.Mutex
	topics []topics.Topic
	keys   map[string]bool
	tweets []ledger.TweetRecord
	count  int
}

func newMemLedger(used ...topics.Topic) *memLedger {
	l := &memLedger{keys: map[string]bool{}}
	for _, t := range used {
		_, _ = l.Append(context.Background(), t)
	}
	return l
}

func (l *memLedger) List(context.Context) ([]topics.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]topics.Entry, 0, len(l.topics))
	for _, t := range l.topics {
		out = append(out, topics.Entry{RawTopic: t.RawTopic, SourceURL: t.SourceURL})
	}
	return out, nil
}

func (l *memLedger) Append(_ context.Context, t topics.Topic) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := topics.KeyOf(t).String()
	if l.keys[key] {
		return "", ledger.ErrTopicAlreadyUsed
	}
	l.keys[key] = true
	l.topics = append(l.topics, t)
	return fmt.Sprintf("topic-%d", len(l.topics)), nil
}

func (l *memLedger) SaveTweet(_ context.Context, r ledger.TweetRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tweets = append(l.tweets, r)
	return fmt.Sprintf("tweet-%d", len(l.tweets)), nil
}

func (l *memLedger) RecentTweets(context.Context, int) ([]ledger.TweetRecord, error) {
	return l.tweets, nil
}

func (l *memLedger) CountTweetsSince(context.Context, time.Time) (int, error) {
	return l.count, nil
}

type staticSource struct {
	items []topics.Topic
	err   error
}

func (s staticSource) Name() string { return "static" }
func (s staticSource) Fetch(context.Context) ([]topics.Topic, error) {
	return s.items, s.err
}

type scriptedRanker struct{ reply string }

func (r scriptedRanker) Rank(context.Context, []string) (string, error) { return r.reply, nil }

type scriptedProposer struct {
	proposals []string
	i         int
}

func (p *scriptedProposer) ProposeTopic(context.Context) (string, error) {
	s := p.proposals[p.i%len(p.proposals)]
	p.i++
	return s, nil
}

type fakeWriter struct {
	err     error
	written []string
}

func (w *fakeWriter) TechTweet(_ context.Context, t topics.Topic) (string, error) {
	w.written = append(w.written, "tech:"+t.RawTopic)
	return "tech take on " + t.RawTopic, w.err
}

func (w *fakeWriter) Shitpost(_ context.Context, t topics.Topic) (string, error) {
	w.written = append(w.written, "shit:"+t.RawTopic)
	return "lol " + t.RawTopic, w.err
}

func (w *fakeWriter) Thread(_ context.Context, topic string) ([]string, error) {
	w.written = append(w.written, "thread:"+topic)
	return []string{"a", "b", "c"}, w.err
}

type fakePublisher struct {
	err   error
	calls [][]string
	topic topics.Topic
	led   *memLedger
}

func (p *fakePublisher) Publish(ctx context.Context, segs []string, t topics.Topic) (publish.Publication, error) {
	p.calls = append(p.calls, segs)
	p.topic = t
	if p.err != nil {
		return publish.Publication{}, p.err
	}
	if p.led != nil {
		_, _ = p.led.SaveTweet(ctx, ledger.TweetRecord{Content: segs[0], UsedTopicID: t.LedgerID})
	}
	return publish.Publication{PostURL: "https://twitter.com/i/web/status/1", Posted: make([]publish.Posted, len(segs)), Content: segs[0]}, nil
}

type recordingNotifier struct{ notices []notify.Notice }

func (n *recordingNotifier) Notify(_ context.Context, notice notify.Notice) error {
	n.notices = append(n.notices, notice)
	return nil
}

type harness struct {
	runner   *Runner
	ledger   *memLedger
	writer   *fakeWriter
	pub      *fakePublisher
	notifier *recordingNotifier
	metrics  *monitoring.PipelineMetrics
}

func newHarness(t *testing.T, feed []topics.Topic, rankReply string, used ...topics.Topic) *harness {
	t.Helper()
	led := newMemLedger(used...)
	fast := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	sel := selector.New(selector.Config{
		Ranker:        scriptedRanker{reply: rankReply},
		Proposer:      &scriptedProposer{proposals: []string{"Used idea", "Fresh idea"}},
		Retry:         fast,
		FreshAttempts: 3,
	})
	mc := monitoring.NewMetricsCollector("agents_test", "v", "c")
	h := &harness{
		ledger:   led,
		writer:   &fakeWriter{},
		pub:      &fakePublisher{led: led},
		notifier: &recordingNotifier{},
		metrics:  mc.CreatePipelineMetrics(),
	}
	h.runner = NewRunner(Config{
		Agents: []Definition{
			{Name: "morning", Sources: []sources.Source{staticSource{items: feed}}, Style: StyleTech},
			{Name: "evening", Sources: []sources.Source{staticSource{items: feed}}, Style: StyleShitpost},
			{Name: "thread", Style: StyleThread},
		},
		Fetcher:   sources.NewFetcher(sources.FetcherConfig{}),
		Ledger:    led,
		Selector:  sel,
		Writer:    h.writer,
		Publisher: h.pub,
		Notifier:  h.notifier,
		Metrics:   h.metrics,
	})
	return h
}

var feed = []topics.Topic{
	topics.New("Layoffs at big tech", "Reddit /r/technology", "https://reddit.com/r/technology/a", ""),
	topics.New("New JS framework", "Hacker News", "https://example.com/js", ""),
	topics.New("Remote work debate", "Reddit /r/futurology", "https://reddit.com/r/futurology/b", ""),
}

func TestRun_PublishesRankedUnseenTopic(t *testing.T) {
	// First candidate is already used, so the ranker sees two titles and "2"
	// selects the third feed item.
	h := newHarness(t, feed, "2\nAngle: what it means for juniors", feed[0])

	res, err := h.runner.Run(context.Background(), "morning")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPublished, res.Status, res.Reason)
	assert.Equal(t, "Remote work debate", res.Topic)
	assert.Equal(t, "https://twitter.com/i/web/status/1", res.PostURL)

	assert.Equal(t, []string{"tech:Remote work debate"}, h.writer.written)
	assert.Equal(t, "topic-2", h.pub.topic.LedgerID, "topic must be reserved before publishing")
	assert.Equal(t, "what it means for juniors", h.pub.topic.PersonaAngle)
	require.Len(t, h.ledger.tweets, 1)
	assert.Equal(t, "topic-2", h.ledger.tweets[0].UsedTopicID)

	require.Len(t, h.notifier.notices, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.AgentRuns.WithLabelValues("morning", "published")))
}

func TestRun_AllUsedIsNoop(t *testing.T) {
	h := newHarness(t, feed, "1", feed...)

	res, err := h.runner.Run(context.Background(), "evening")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNoop, res.Status)
	assert.Empty(t, h.writer.written)
	assert.Empty(t, h.pub.calls)
	assert.Contains(t, res.Reason, "no fresh topic")
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	h := newHarness(t, feed, "1")
	h.runner.agents["morning"] = Definition{
		Name:    "morning",
		Sources: []sources.Source{staticSource{items: feed}, staticSource{err: errors.New("timeout")}},
		Style:   StyleTech,
	}

	res, err := h.runner.Run(context.Background(), "morning")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, pipeline.ErrFetchFailure)
	assert.Empty(t, h.ledger.topics)
}

func TestRun_SelectionFailureReservesNothing(t *testing.T) {
	h := newHarness(t, feed, "I like all of them")

	res, _ := h.runner.Run(context.Background(), "morning")
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, pipeline.ErrSelectionFailure)
	assert.Empty(t, h.ledger.topics)
}

func TestRun_PublishFailureKeepsReservation(t *testing.T) {
	h := newHarness(t, feed, "1")
	h.pub.err = pipeline.Wrap(pipeline.ErrPublishFailure, errors.New("403"))

	res, _ := h.runner.Run(context.Background(), "evening")
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, pipeline.ErrPublishFailure)
	assert.Len(t, h.ledger.topics, 1, "ledger records are never rolled back")
	assert.Empty(t, h.ledger.tweets)
	require.Len(t, h.notifier.notices, 1)
	assert.Equal(t, pipeline.StatusFailed, h.notifier.notices[0].Result.Status)
	assert.Equal(t, "lol Layoffs at big tech", h.notifier.notices[0].Content, "the failure notice shows what was attempted")
}

func TestRun_GenerationFailure(t *testing.T) {
	h := newHarness(t, feed, "1")
	h.writer.err = pipeline.Wrap(pipeline.ErrGenerationFailure, errors.New("empty"))

	res, _ := h.runner.Run(context.Background(), "morning")
	assert.ErrorIs(t, res.Err, pipeline.ErrGenerationFailure)
	assert.Empty(t, h.pub.calls)
}

func TestRun_DailyCap(t *testing.T) {
	h := newHarness(t, feed, "1")
	h.runner.maxPerDay = 2
	h.ledger.count = 2

	res, _ := h.runner.Run(context.Background(), "morning")
	assert.Equal(t, pipeline.StatusNoop, res.Status)
	assert.Contains(t, res.Reason, "daily post cap")
	assert.Empty(t, h.writer.written)
}

func TestRun_ThreadUsesFreshProposal(t *testing.T) {
	h := newHarness(t, nil, "1", topics.Freeform("used idea", "Generated"))

	res, err := h.runner.Run(context.Background(), "thread")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPublished, res.Status, res.Reason)
	assert.Equal(t, "Fresh idea", res.Topic)
	assert.Equal(t, []string{"thread:Fresh idea"}, h.writer.written)
	require.Len(t, h.pub.calls, 1)
	assert.Len(t, h.pub.calls[0], 3)
	assert.Equal(t, 3, res.Segments)
}

func TestRun_UnknownAgent(t *testing.T) {
	h := newHarness(t, feed, "1")
	_, err := h.runner.Run(context.Background(), "midnight")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestDraftApproveFlow(t *testing.T) {
	h := newHarness(t, feed, "1")
	ctx := context.Background()

	d, err := h.runner.Draft(ctx, "morning")
	require.NoError(t, err)
	assert.Equal(t, "Layoffs at big tech", d.Topic.RawTopic)
	assert.Empty(t, h.ledger.topics, "drafting must not reserve")

	d, err = h.runner.Regenerate(ctx, d)
	require.NoError(t, err)
	assert.Len(t, h.writer.written, 2)

	pub, err := h.runner.Approve(ctx, &d)
	require.NoError(t, err)
	assert.NotEmpty(t, pub.PostURL)
	assert.Len(t, h.ledger.topics, 1)
	assert.Equal(t, pub.PostURL, d.PostURL)

	_, err = h.runner.Approve(ctx, &d)
	assert.ErrorIs(t, err, pipeline.ErrNoFreshTopic, "a topic can only be approved once")
	assert.Len(t, h.pub.calls, 1)

	copied := d
	copied.PostURL = ""
	copied.Topic.LedgerID = ""
	_, err = h.runner.Approve(ctx, &copied)
	assert.ErrorIs(t, err, pipeline.ErrNoFreshTopic, "a second draft of the same topic loses the reservation")
}

func TestApproveRetryReusesReservation(t *testing.T) {
	h := newHarness(t, feed, "1")
	ctx := context.Background()

	d, err := h.runner.Draft(ctx, "morning")
	require.NoError(t, err)

	h.pub.err = pipeline.Wrap(pipeline.ErrPublishFailure, errors.New("503"))
	_, err = h.runner.Approve(ctx, &d)
	require.ErrorIs(t, err, pipeline.ErrPublishFailure)
	require.Len(t, h.ledger.topics, 1)
	assert.NotEmpty(t, d.Topic.LedgerID)
	assert.True(t, d.Retryable())

	h.pub.err = nil
	pub, err := h.runner.Approve(ctx, &d)
	require.NoError(t, err)
	assert.NotEmpty(t, pub.PostURL)
	assert.Len(t, h.ledger.topics, 1, "the retry must not reserve again")
	assert.Equal(t, d.Topic.LedgerID, h.pub.topic.LedgerID)
}

func TestDraftText(t *testing.T) {
	assert.Equal(t, "solo", Draft{Segments: []string{"solo"}}.Text())
	assert.Equal(t, "1/2 a\n\n2/2 b", Draft{Segments: []string{"a", "b"}}.Text())
}

func TestNames(t *testing.T) {
	h := newHarness(t, feed, "1")
	assert.Equal(t, []string{"evening", "morning", "thread"}, h.runner.Names())
	assert.True(t, h.runner.Has("thread"))
}
