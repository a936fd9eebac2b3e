package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"github.com/prashanttc/tweetAut/internal/topics"
)

// DefaultRedditLimit is how many newest posts are read per subreddit.
const DefaultRedditLimit = 3

// PostLister is the slice of the Reddit subreddit API the source needs.
type PostLister interface {
	NewPosts(ctx context.Context, subreddit string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error)
}

type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// NewRedditLister builds an authenticated client when credentials are
// complete, and a read-only client otherwise.
func NewRedditLister(creds RedditCredentials) (PostLister, error) {
	opts := []reddit.Opt{
		reddit.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if creds.UserAgent != "" {
		opts = append(opts, reddit.WithUserAgent(creds.UserAgent))
	}

	var (
		client *reddit.Client
		err    error
	)
	if creds.ClientID != "" && creds.ClientSecret != "" && creds.Username != "" && creds.Password != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       creds.ClientID,
			Secret:   creds.ClientSecret,
			Username: creds.Username,
			Password: creds.Password,
		}, opts...)
	} else {
		client, err = reddit.NewReadonlyClient(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return client.Subreddit, nil
}

type RedditConfig struct {
	Lister     PostLister
	Subreddits []string
	Limit      int
	// Limiter throttles API calls across every Reddit source sharing it.
	Limiter *rate.Limiter
	Name    string
}

// RedditSource reads the newest posts of each subreddit in order.
type RedditSource struct {
	lister     PostLister
	subreddits []string
	limit      int
	limiter    *rate.Limiter
	name       string
}

func NewRedditSource(cfg RedditConfig) *RedditSource {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultRedditLimit
	}
	name := cfg.Name
	if name == "" {
		name = "reddit"
	}
	return &RedditSource{
		lister:     cfg.Lister,
		subreddits: cfg.Subreddits,
		limit:      limit,
		limiter:    cfg.Limiter,
		name:       name,
	}
}

func (s *RedditSource) Name() string { return s.name }

func (s *RedditSource) Fetch(ctx context.Context) ([]topics.Topic, error) {
	if s.lister == nil {
		return nil, fmt.Errorf("reddit client not configured")
	}
	var out []topics.Topic
	for _, sub := range s.subreddits {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		posts, _, err := s.lister.NewPosts(ctx, sub, &reddit.ListOptions{Limit: s.limit})
		if err != nil {
			return nil, fmt.Errorf("r/%s: %w", sub, err)
		}
		for _, post := range posts {
			if post == nil {
				continue
			}
			out = append(out, topics.New(
				post.Title,
				"Reddit /r/"+sub,
				"https://reddit.com"+post.Permalink,
				post.Body,
			))
		}
	}
	return out, nil
}

// NewRedditLimiter allows perMinute calls with a small burst.
func NewRedditLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 4)
}
