// Package publish posts content to Twitter and records successful
// publications in the ledger.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/prashanttc/tweetAut/pkg/retry"
)

const (
	DefaultAPIURL = "https://api.twitter.com/2"
	statusURL     = "https://twitter.com/i/web/status/"
)

// Posted identifies one created tweet.
type Posted struct {
	ID  string
	URL string
}

// StatusURL is the public link for a tweet id.
func StatusURL(id string) string {
	return statusURL + id
}

// Poster creates a single tweet, optionally as a reply.
type Poster interface {
	Post(ctx context.Context, text, inReplyTo string) (Posted, error)
}

type TwitterConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	// APIURL is the v2 base, e.g. https://api.twitter.com/2.
	APIURL string
	// HTTPClient is the transport underneath the OAuth signer.
	HTTPClient *http.Client
}

// TwitterClient posts through the v2 API with OAuth 1.0a user context.
type TwitterClient struct {
	client *http.Client
	apiURL string
}

var ErrTwitterNotConfigured = errors.New("twitter credentials not configured")

func NewTwitterClient(cfg TwitterConfig) (*TwitterClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessTokenSecret == "" {
		return nil, ErrTwitterNotConfigured
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 20 * time.Second}
	}
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)

	return &TwitterClient{
		client: oauthCfg.Client(ctx, token),
		apiURL: apiURL,
	}, nil
}

type createTweetRequest struct {
	Text  string       `json:"text"`
	Reply *replyParams `json:"reply,omitempty"`
}

type replyParams struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// Post makes one attempt. 4xx responses other than 429 are marked permanent
// so callers retrying under pkg/retry stop early.
func (c *TwitterClient) Post(ctx context.Context, text, inReplyTo string) (Posted, error) {
	payload := createTweetRequest{Text: text}
	if inReplyTo != "" {
		payload.Reply = &replyParams{InReplyToTweetID: inReplyTo}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Posted{}, retry.Permanent(fmt.Errorf("encode tweet: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return Posted{}, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Posted{}, fmt.Errorf("post tweet: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var decoded createTweetResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(decoded.Detail)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		err := fmt.Errorf("twitter API returned %d: %s", resp.StatusCode, msg)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Posted{}, retry.Permanent(err)
		}
		return Posted{}, err
	}
	if decoded.Data.ID == "" {
		// The post went out; resending would duplicate it.
		return Posted{}, retry.Permanent(errors.New("twitter API response missing tweet id"))
	}
	return Posted{ID: decoded.Data.ID, URL: StatusURL(decoded.Data.ID)}, nil
}
