// Package agents runs the fetch, dedupe, select, generate and publish
// pipeline for each named posting agent.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prashanttc/tweetAut/internal/ledger"
	"github.com/prashanttc/tweetAut/internal/notify"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/publish"
	"github.com/prashanttc/tweetAut/internal/selector"
	"github.com/prashanttc/tweetAut/internal/sources"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
)

const (
	defaultRunTimeout = 2 * time.Minute
	// generatedSource labels topics the model invented.
	generatedSource = "Generated"
)

// ErrUnknownAgent is returned for names no agent is registered under.
var ErrUnknownAgent = errors.New("unknown agent")

// Style is the kind of content an agent writes.
type Style string

const (
	StyleTech     Style = "tech"
	StyleShitpost Style = "shitpost"
	StyleThread   Style = "thread"
)

// Definition describes one agent. Feed-based agents list Sources; thread
// agents leave it empty and ask the model for a topic instead.
type Definition struct {
	Name    string
	Sources []sources.Source
	Style   Style
}

type Fetcher interface {
	FetchAll(ctx context.Context, srcs ...sources.Source) ([]topics.Topic, error)
}

type Picker interface {
	PickFromCandidates(ctx context.Context, candidates []topics.Topic) (selector.Pick, error)
	RetryUntilFresh(ctx context.Context, seen topics.SeenSet, source string) (selector.Outcome, error)
}

type Writer interface {
	TechTweet(ctx context.Context, t topics.Topic) (string, error)
	Shitpost(ctx context.Context, t topics.Topic) (string, error)
	Thread(ctx context.Context, topic string) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, segments []string, topic topics.Topic) (publish.Publication, error)
}

type Notifier interface {
	Notify(ctx context.Context, notice notify.Notice) error
}

type Config struct {
	Agents    []Definition
	Fetcher   Fetcher
	Ledger    ledger.Store
	Selector  Picker
	Writer    Writer
	Publisher Publisher
	Notifier  Notifier
	Metrics   *monitoring.PipelineMetrics
	Logger    logging.Logger

	RunTimeout time.Duration
	// MaxPerDay caps scheduled posts per calendar day in Location. 0 = unlimited.
	MaxPerDay int
	Location  *time.Location
}

// Runner owns every registered agent and the collaborators they share.
type Runner struct {
	agents     map[string]Definition
	fetcher    Fetcher
	ledger     ledger.Store
	selector   Picker
	writer     Writer
	publisher  Publisher
	notifier   Notifier
	metrics    *monitoring.PipelineMetrics
	logger     logging.Logger
	runTimeout time.Duration
	maxPerDay  int
	loc        *time.Location
	now        func() time.Time
}

func NewRunner(cfg Config) *Runner {
	agents := make(map[string]Definition, len(cfg.Agents))
	for _, def := range cfg.Agents {
		agents[def.Name] = def
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Runner{
		agents:     agents,
		fetcher:    cfg.Fetcher,
		ledger:     cfg.Ledger,
		selector:   cfg.Selector,
		writer:     cfg.Writer,
		publisher:  cfg.Publisher,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     logger,
		runTimeout: timeout,
		maxPerDay:  cfg.MaxPerDay,
		loc:        loc,
		now:        time.Now,
	}
}

// Names lists registered agents in sorted order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered agent.
func (r *Runner) Has(name string) bool {
	_, ok := r.agents[name]
	return ok
}

// Run executes one full pipeline pass for the named agent. The returned
// error is only ErrUnknownAgent; pipeline failures are reported in the
// Result.
func (r *Runner) Run(ctx context.Context, name string) (pipeline.Result, error) {
	def, ok := r.agents[name]
	if !ok {
		return pipeline.Result{Agent: name}, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	log := r.logger.WithField("agent", name)
	log.Info("Agent run started")

	var (
		topic topics.Topic
		pub   publish.Publication
		segs  []string
	)
	err := func() error {
		if err := r.checkDailyCap(ctx); err != nil {
			return err
		}
		var err error
		topic, err = r.pickTopic(ctx, def)
		if err != nil {
			return err
		}
		topic, err = r.reserve(ctx, topic)
		if err != nil {
			return err
		}
		segs, err = r.compose(ctx, def, topic)
		if err != nil {
			return err
		}
		pub, err = r.publisher.Publish(ctx, segs, topic)
		return err
	}()

	res := pipeline.Outcome(name, started, err)
	res.Topic = topic.RawTopic
	res.PostURL = pub.PostURL
	res.Segments = len(pub.Posted)

	fields := logging.Fields{
		"status":   string(res.Status),
		"topic":    res.Topic,
		"duration": res.Duration.String(),
	}
	switch res.Status {
	case pipeline.StatusPublished:
		log.WithFields(fields).WithField("post_url", res.PostURL).Info("Agent run published")
	case pipeline.StatusNoop:
		log.WithFields(fields).WithField("reason", res.Reason).Info("Agent run ended without posting")
	default:
		log.WithFields(fields).WithError(err).WithField("stage", pipeline.Stage(err)).Error("Agent run failed")
	}

	r.observe(res)
	if r.notifier != nil {
		// The run context may be spent; the notice gets its own timeout.
		nctx, ncancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		content := pub.Content
		if content == "" {
			content = strings.Join(segs, "\n\n")
		}
		if nerr := r.notifier.Notify(nctx, notify.Notice{Result: res, Content: content}); nerr != nil {
			log.WithError(nerr).Warn("Agent: failed to send notification")
		}
		ncancel()
	}
	return res, nil
}

func (r *Runner) checkDailyCap(ctx context.Context) error {
	if r.maxPerDay <= 0 {
		return nil
	}
	count, err := r.ledger.CountTweetsSince(ctx, ledger.StartOfDay(r.now(), r.loc))
	if err != nil {
		return fmt.Errorf("count today's tweets: %w", err)
	}
	if count >= r.maxPerDay {
		return fmt.Errorf("%w: %d of %d", pipeline.ErrDailyCapReached, count, r.maxPerDay)
	}
	return nil
}

// pickTopic chooses a fresh topic without reserving it.
func (r *Runner) pickTopic(ctx context.Context, def Definition) (topics.Topic, error) {
	entries, err := r.ledger.List(ctx)
	if err != nil {
		return topics.Topic{}, fmt.Errorf("load ledger: %w", err)
	}
	seen := topics.NewSeenSet(entries)

	if def.Style == StyleThread {
		out, err := r.selector.RetryUntilFresh(ctx, seen, generatedSource)
		if err != nil {
			return topics.Topic{}, err
		}
		if !out.Found {
			return topics.Topic{}, fmt.Errorf("%w: %d proposals already used", pipeline.ErrNoFreshTopic, out.Attempts)
		}
		return out.Topic, nil
	}

	candidates, err := r.fetcher.FetchAll(ctx, def.Sources...)
	if err != nil {
		return topics.Topic{}, err
	}
	unseen, used := topics.Filter(candidates, seen)
	r.logger.WithFields(logging.Fields{
		"agent":      def.Name,
		"candidates": len(candidates),
		"unseen":     len(unseen),
		"used":       len(used),
	}).Debug("Agent: candidates filtered")
	if len(unseen) == 0 {
		return topics.Topic{}, fmt.Errorf("%w: all %d candidates already used", pipeline.ErrNoFreshTopic, len(candidates))
	}

	pick, err := r.selector.PickFromCandidates(ctx, unseen)
	if err != nil {
		return topics.Topic{}, err
	}
	return pick.Topic, nil
}

// reserve claims topic in the ledger. Losing the race to a concurrent run is
// a benign no-op.
func (r *Runner) reserve(ctx context.Context, topic topics.Topic) (topics.Topic, error) {
	id, err := r.ledger.Append(ctx, topic)
	if errors.Is(err, ledger.ErrTopicAlreadyUsed) {
		return topic, fmt.Errorf("%w: %q was claimed by another run", pipeline.ErrNoFreshTopic, topic.RawTopic)
	}
	if err != nil {
		return topic, fmt.Errorf("reserve topic: %w", err)
	}
	topic.LedgerID = id
	return topic, nil
}

func (r *Runner) compose(ctx context.Context, def Definition, topic topics.Topic) ([]string, error) {
	switch def.Style {
	case StyleThread:
		return r.writer.Thread(ctx, topic.RawTopic)
	case StyleShitpost:
		text, err := r.writer.Shitpost(ctx, topic)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		text, err := r.writer.TechTweet(ctx, topic)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	}
}

func (r *Runner) observe(res pipeline.Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.AgentRuns.WithLabelValues(res.Agent, string(res.Status)).Inc()
	r.metrics.AgentDuration.WithLabelValues(res.Agent).Observe(res.Duration.Seconds())
}
