// Package sources reads candidate topics from external feeds.
package sources

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

// DefaultMaxTopics caps a joined fetch.
const DefaultMaxTopics = 20

// Source is one external feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]topics.Topic, error)
}

type FetcherConfig struct {
	MaxTopics int
	Logger    logging.Logger
}

// Fetcher reads several sources concurrently and joins their results.
type Fetcher struct {
	maxTopics int
	logger    logging.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	maxTopics := cfg.MaxTopics
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Fetcher{maxTopics: maxTopics, logger: logger}
}

// FetchAll fetches every source concurrently. Results keep source order, then
// item order within a source, and are capped to MaxTopics. Any source failure
// fails the whole fetch with pipeline.ErrFetchFailure.
func (f *Fetcher) FetchAll(ctx context.Context, srcs ...Source) ([]topics.Topic, error) {
	results := make([][]topics.Topic, len(srcs))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			items, err := src.Fetch(gctx)
			if err != nil {
				return pipeline.Wrap(pipeline.ErrFetchFailure, fmt.Errorf("%s: %w", src.Name(), err))
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.WithError(err).Warn("Topic fetch: feed failed")
		return nil, err
	}

	var joined []topics.Topic
	for _, items := range results {
		joined = append(joined, items...)
	}
	total := len(joined)
	if len(joined) > f.maxTopics {
		joined = joined[:f.maxTopics]
	}

	f.logger.WithFields(logging.Fields{
		"sources":  len(srcs),
		"fetched":  total,
		"kept":     len(joined),
		"duration": time.Since(start).String(),
	}).Debug("Topic fetch: complete")

	return joined, nil
}
