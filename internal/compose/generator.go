// Package compose writes tweet and thread text with a language model and
// enforces the publishing bounds on whatever comes back.
package compose

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/llm"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

const callTimeout = 45 * time.Second

type Config struct {
	// Writer drafts tweets, threads and topic proposals.
	Writer llm.Provider
	// Ranker picks among candidate titles. Defaults to Writer.
	Ranker  llm.Provider
	Retry   retry.Policy
	Metrics *monitoring.PipelineMetrics
	Logger  logging.Logger
}

type Generator struct {
	writer  llm.Provider
	ranker  llm.Provider
	policy  retry.Policy
	metrics *monitoring.PipelineMetrics
	logger  logging.Logger
}

func NewGenerator(cfg Config) *Generator {
	ranker := cfg.Ranker
	if ranker == nil {
		ranker = cfg.Writer
	}
	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Generator{
		writer:  cfg.Writer,
		ranker:  ranker,
		policy:  policy,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// TechTweet writes a single considered tweet about t.
func (g *Generator) TechTweet(ctx context.Context, t topics.Topic) (string, error) {
	return g.single(ctx, "tech_tweet", techSystemPrompt, techPrompt(t), llm.Options{Temperature: 0.6, MaxTokens: 300})
}

// Shitpost writes a single casual tweet about t.
func (g *Generator) Shitpost(ctx context.Context, t topics.Topic) (string, error) {
	return g.single(ctx, "shitpost", shitpostSystemPrompt, shitpostPrompt(t), llm.Options{Temperature: 0.8, MaxTokens: 120})
}

// Thread writes a 3 to 6 segment thread about topic.
func (g *Generator) Thread(ctx context.Context, topic string) ([]string, error) {
	opts := llm.Options{Temperature: 0.9, MaxTokens: 700}
	var lastErr error
	res := retry.Do(ctx, g.policy, func(ctx context.Context, attempt int) ([]string, error) {
		raw, err := g.complete(ctx, "thread", g.writer, threadSystemPrompt, withHint(threadPrompt(topic), lastErr), opts)
		if err != nil {
			return nil, err
		}
		segments, err := ParseThread(raw)
		if err != nil {
			lastErr = err
			g.logger.WithError(err).WithField("attempt", attempt).Debug("Composer: thread rejected, retrying")
			return nil, err
		}
		return segments, nil
	})
	if !res.OK() {
		return nil, pipeline.Wrap(pipeline.ErrGenerationFailure, res.Err)
	}
	return res.Value, nil
}

// ProposeTopic invents a standalone thread topic.
func (g *Generator) ProposeTopic(ctx context.Context) (string, error) {
	return g.single(ctx, "propose_topic", proposeSystemPrompt, proposePrompt(), llm.Options{Temperature: 0.95, MaxTokens: 60})
}

// Rank returns the ranking model's raw reply for a numbered title list.
// Parsing and retries belong to the caller.
func (g *Generator) Rank(ctx context.Context, titles []string) (string, error) {
	return g.complete(ctx, "rank", g.ranker, rankSystemPrompt, rankPrompt(titles), llm.Options{Temperature: 0.3, MaxTokens: 80})
}

func (g *Generator) single(ctx context.Context, op, system, prompt string, opts llm.Options) (string, error) {
	var lastErr error
	res := retry.Do(ctx, g.policy, func(ctx context.Context, attempt int) (string, error) {
		raw, err := g.complete(ctx, op, g.writer, system, withHint(prompt, lastErr), opts)
		if err != nil {
			return "", err
		}
		text, err := CleanTweet(raw)
		if err != nil {
			lastErr = err
			g.logger.WithError(err).WithFields(logging.Fields{
				"operation": op,
				"attempt":   attempt,
			}).Debug("Composer: output rejected, retrying")
			return "", err
		}
		return text, nil
	})
	if !res.OK() {
		return "", pipeline.Wrap(pipeline.ErrGenerationFailure, res.Err)
	}
	return res.Value, nil
}

func (g *Generator) complete(ctx context.Context, op string, provider llm.Provider, system, prompt string, opts llm.Options) (string, error) {
	if provider == nil {
		return "", retry.Permanent(errors.New("LLM provider not configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	text, err := llm.CompleteText(ctx, provider, []llm.Message{llm.System(system), llm.User(prompt)}, opts)
	g.observe(op, err)
	if err != nil {
		g.logger.WithError(err).WithField("operation", op).Warn("Composer: LLM call failed")
	}
	return text, err
}

func (g *Generator) observe(op string, err error) {
	if g.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	g.metrics.LLMCalls.WithLabelValues(op, status).Inc()
}

func withHint(prompt string, lastErr error) string {
	hint := hintFor(lastErr)
	if hint == "" {
		return prompt
	}
	return strings.TrimSpace(prompt) + "\n\n" + hint
}
