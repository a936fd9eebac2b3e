package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

const (
	DefaultHNSearchURL = "https://hn.algolia.com/api/v1/search?tags=story"
	hnItemURL          = "https://news.ycombinator.com/item?id="
)

type HackerNewsConfig struct {
	Endpoint   string
	HTTPClient *http.Client
	Retry      retry.Policy
}

// HackerNewsSource reads front-page stories from the Algolia search API.
type HackerNewsSource struct {
	endpoint string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

func NewHackerNewsSource(cfg HackerNewsConfig) *HackerNewsSource {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultHNSearchURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &HackerNewsSource{
		endpoint: endpoint,
		client:   client,
		executor: retry.NewHTTPExecutor(policy),
	}
}

func (s *HackerNewsSource) Name() string { return "hackernews" }

type hnSearchResponse struct {
	Hits []struct {
		ObjectID  string `json:"objectID"`
		Title     string `json:"title"`
		URL       string `json:"url"`
		StoryText string `json:"story_text"`
	} `json:"hits"`
}

func (s *HackerNewsSource) Fetch(ctx context.Context) ([]topics.Topic, error) {
	resp, err := retry.DoHTTP(ctx, s.client, s.executor, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("hn search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hn search: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload hnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("hn search: decode: %w", err)
	}

	out := make([]topics.Topic, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		if strings.TrimSpace(hit.Title) == "" {
			continue
		}
		link := hit.URL
		if link == "" {
			link = hnItemURL + hit.ObjectID
		}
		out = append(out, topics.New(hit.Title, "Hacker News", link, hit.StoryText))
	}
	return out, nil
}
