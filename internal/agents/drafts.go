package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/publish"
	"github.com/prashanttc/tweetAut/internal/topics"
)

// Draft is generated content awaiting manual approval. Its topic is not
// reserved in the ledger until Approve.
type Draft struct {
	Agent     string       `json:"agent"`
	Topic     topics.Topic `json:"topic"`
	Segments  []string     `json:"segments"`
	CreatedAt time.Time    `json:"created_at"`
	// PostURL is set once any segment went live; the draft cannot be
	// approved again after that.
	PostURL string `json:"post_url,omitempty"`
}

// Retryable reports whether a failed Approve can be attempted again.
func (d Draft) Retryable() bool { return d.PostURL == "" }

// Text renders the draft for preview.
func (d Draft) Text() string {
	if len(d.Segments) == 1 {
		return d.Segments[0]
	}
	parts := make([]string, len(d.Segments))
	for i, s := range d.Segments {
		parts[i] = fmt.Sprintf("%d/%d %s", i+1, len(d.Segments), s)
	}
	return strings.Join(parts, "\n\n")
}

// Draft picks a fresh topic for the named agent and writes content for it
// without publishing. The daily cap does not apply to manual drafts.
func (r *Runner) Draft(ctx context.Context, name string) (Draft, error) {
	def, ok := r.agents[name]
	if !ok {
		return Draft{}, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	topic, err := r.pickTopic(ctx, def)
	if err != nil {
		return Draft{}, err
	}
	segs, err := r.compose(ctx, def, topic)
	if err != nil {
		return Draft{}, err
	}
	r.logger.WithField("agent", name).WithField("topic", topic.RawTopic).Info("Agent: draft ready for review")
	return Draft{Agent: name, Topic: topic, Segments: segs, CreatedAt: r.now().UTC()}, nil
}

// Regenerate rewrites the content of d for the same topic.
func (r *Runner) Regenerate(ctx context.Context, d Draft) (Draft, error) {
	def, ok := r.agents[d.Agent]
	if !ok {
		return Draft{}, fmt.Errorf("%w: %q", ErrUnknownAgent, d.Agent)
	}
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	segs, err := r.compose(ctx, def, d.Topic)
	if err != nil {
		return d, err
	}
	d.Segments = segs
	d.CreatedAt = r.now().UTC()
	return d, nil
}

// Approve reserves the draft's topic and publishes it. A topic claimed since
// the draft was made yields pipeline.ErrNoFreshTopic. Approve records the
// reservation and any live post on d, so retrying a failed publish reuses
// the reservation and a published draft is never posted twice.
func (r *Runner) Approve(ctx context.Context, d *Draft) (publish.Publication, error) {
	if d == nil || len(d.Segments) == 0 {
		return publish.Publication{}, pipeline.Wrap(pipeline.ErrGenerationFailure, errors.New("draft has no content"))
	}
	if !d.Retryable() {
		return publish.Publication{}, fmt.Errorf("%w: draft already published as %s", pipeline.ErrNoFreshTopic, d.PostURL)
	}
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	if d.Topic.LedgerID == "" {
		topic, err := r.reserve(ctx, d.Topic)
		if err != nil {
			return publish.Publication{}, err
		}
		d.Topic = topic
	}
	pub, err := r.publisher.Publish(ctx, d.Segments, d.Topic)
	if len(pub.Posted) > 0 {
		d.PostURL = publish.StatusURL(pub.Posted[0].ID)
	}
	res := pipeline.Outcome(d.Agent, started, err)
	r.observe(res)
	if err != nil {
		r.logger.WithError(err).WithField("agent", d.Agent).Error("Agent: approved draft failed to publish")
		return pub, err
	}
	if pub.PostURL != "" {
		d.PostURL = pub.PostURL
	}
	r.logger.WithField("agent", d.Agent).WithField("post_url", pub.PostURL).Info("Agent: approved draft published")
	return pub, nil
}
