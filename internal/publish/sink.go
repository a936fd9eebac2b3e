package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prashanttc/tweetAut/internal/ledger"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

const recordTimeout = 10 * time.Second

// TweetSaver is the slice of the ledger the sink writes to.
type TweetSaver interface {
	SaveTweet(ctx context.Context, record ledger.TweetRecord) (string, error)
}

type SinkConfig struct {
	Poster  Poster
	Ledger  TweetSaver
	Retry   retry.Policy
	Metrics *monitoring.PipelineMetrics
	Logger  logging.Logger
}

type Sink struct {
	poster  Poster
	ledger  TweetSaver
	policy  retry.Policy
	metrics *monitoring.PipelineMetrics
	logger  logging.Logger
}

func NewSink(cfg SinkConfig) *Sink {
	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Sink{
		poster:  cfg.Poster,
		ledger:  cfg.Ledger,
		policy:  policy,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Publication is what a successful Publish produced.
type Publication struct {
	TweetID string
	PostURL string
	Posted  []Posted
	Content string
}

// Publish posts segments in order, each after the first replying to the
// previous one. Any failure stops the chain and leaves the ledger without a
// tweet record; segments already posted stay posted.
func (s *Sink) Publish(ctx context.Context, segments []string, topic topics.Topic) (Publication, error) {
	if len(segments) == 0 {
		return Publication{}, pipeline.Wrap(pipeline.ErrPublishFailure, errors.New("nothing to publish"))
	}
	if s.poster == nil {
		return Publication{}, pipeline.Wrap(pipeline.ErrPublishFailure, ErrTwitterNotConfigured)
	}

	posted := make([]Posted, 0, len(segments))
	replyTo := ""
	for i, text := range segments {
		res := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (Posted, error) {
			p, err := s.poster.Post(ctx, text, replyTo)
			if err != nil && !retry.IsPermanent(err) {
				s.logger.WithError(err).WithFields(logging.Fields{
					"segment": i + 1,
					"attempt": attempt,
				}).Warn("Publisher: post attempt failed")
			}
			return p, err
		})
		if !res.OK() {
			s.logger.WithError(res.Err).WithFields(logging.Fields{
				"segment":  i + 1,
				"segments": len(segments),
				"posted":   len(posted),
			}).Error("Publisher: stopping chain")
			return Publication{Posted: posted}, pipeline.Wrap(pipeline.ErrPublishFailure,
				fmt.Errorf("segment %d of %d: %w", i+1, len(segments), res.Err))
		}
		posted = append(posted, res.Value)
		replyTo = res.Value.ID
	}

	pub := Publication{
		PostURL: StatusURL(posted[0].ID),
		Posted:  posted,
		Content: strings.Join(segments, "\n\n"),
	}
	s.observe(len(segments))

	if s.ledger == nil {
		return pub, nil
	}
	// The tweets are live, so the record is written even if the caller is gone.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	id, err := s.ledger.SaveTweet(saveCtx, ledger.TweetRecord{
		Content:     pub.Content,
		PostURL:     pub.PostURL,
		UsedTopicID: topic.LedgerID,
	})
	if err != nil {
		// Already live on Twitter; the run still counts as published.
		s.logger.WithError(err).WithField("post_url", pub.PostURL).Error("Publisher: failed to record tweet")
		return pub, nil
	}
	pub.TweetID = id
	return pub, nil
}

func (s *Sink) observe(segments int) {
	if s.metrics == nil {
		return
	}
	kind := "tweet"
	if segments > 1 {
		kind = "thread"
	}
	s.metrics.TweetsPublished.WithLabelValues(kind).Inc()
}
