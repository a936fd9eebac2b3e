// Package ledger persists used topics and published tweets. Records are
// append-only: nothing here updates or deletes a row.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prashanttc/tweetAut/internal/topics"
	"github.com/prashanttc/tweetAut/pkg/database"
)

// ErrTopicAlreadyUsed is returned by Append when the topic's dedup key is
// already in the ledger.
var ErrTopicAlreadyUsed = errors.New("topic already used")

// UsedTopicRecord is one consumed topic.
type UsedTopicRecord struct {
	ID             string
	RawTopic       string
	Source         string
	SourceURL      string
	ContextSummary string
	CreatedAt      time.Time
}

// TweetRecord is one successful publication.
type TweetRecord struct {
	ID          string
	Content     string
	PostURL     string
	UsedTopicID string
	CreatedAt   time.Time
}

// Store is the ledger contract the pipeline depends on.
type Store interface {
	List(ctx context.Context) ([]topics.Entry, error)
	Append(ctx context.Context, topic topics.Topic) (string, error)
	SaveTweet(ctx context.Context, record TweetRecord) (string, error)
	RecentTweets(ctx context.Context, limit int) ([]TweetRecord, error)
	CountTweetsSince(ctx context.Context, since time.Time) (int, error)
}

type SQLStore struct {
	db  *database.DB
	now func() time.Time
}

func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) available() bool {
	return s != nil && s.db != nil && s.db.DB != nil
}

// List returns every used topic's raw topic and source URL.
func (s *SQLStore) List(ctx context.Context) ([]topics.Entry, error) {
	if !s.available() {
		return nil, errors.New("ledger unavailable")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT raw_topic, source_url FROM used_topics`)
	if err != nil {
		return nil, fmt.Errorf("list used topics: %w", err)
	}
	defer rows.Close()

	entries := []topics.Entry{}
	for rows.Next() {
		var e topics.Entry
		if err := rows.Scan(&e.RawTopic, &e.SourceURL); err != nil {
			return nil, fmt.Errorf("scan used topic: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate used topics: %w", err)
	}
	return entries, nil
}

// Append records topic as used and returns its new id. The insert is guarded
// by the unique dedup key, so a topic can only be claimed once.
func (s *SQLStore) Append(ctx context.Context, topic topics.Topic) (string, error) {
	if !s.available() {
		return "", errors.New("ledger unavailable")
	}
	if strings.TrimSpace(topic.RawTopic) == "" {
		return "", errors.New("append used topic: raw topic is empty")
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO used_topics (
			id,
			raw_topic,
			source,
			source_url,
			context_summary,
			dedup_key,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dedup_key) DO NOTHING
	`),
		id,
		topic.RawTopic,
		topic.Source,
		topic.SourceURL,
		topic.ContextSummary,
		topics.KeyOf(topic).String(),
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert used topic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert used topic: %w", err)
	}
	if n == 0 {
		return "", ErrTopicAlreadyUsed
	}
	return id, nil
}

// SaveTweet records a published tweet and returns its new id.
func (s *SQLStore) SaveTweet(ctx context.Context, record TweetRecord) (string, error) {
	if !s.available() {
		return "", errors.New("ledger unavailable")
	}

	id := uuid.NewString()
	usedTopicID := sql.NullString{String: record.UsedTopicID, Valid: record.UsedTopicID != ""}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tweets (id, content, post_url, used_topic_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`),
		id,
		record.Content,
		record.PostURL,
		usedTopicID,
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert tweet: %w", err)
	}
	return id, nil
}

// RecentTweets returns the latest tweets, newest first.
func (s *SQLStore) RecentTweets(ctx context.Context, limit int) ([]TweetRecord, error) {
	if !s.available() {
		return nil, errors.New("ledger unavailable")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, content, post_url, used_topic_id, created_at
		FROM tweets
		ORDER BY created_at DESC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent tweets: %w", err)
	}
	defer rows.Close()

	var tweets []TweetRecord
	for rows.Next() {
		var t TweetRecord
		var usedTopicID sql.NullString
		if err := rows.Scan(&t.ID, &t.Content, &t.PostURL, &usedTopicID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		t.UsedTopicID = usedTopicID.String
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweets: %w", err)
	}
	return tweets, nil
}

// CountTweetsSince counts tweets created at or after since.
func (s *SQLStore) CountTweetsSince(ctx context.Context, since time.Time) (int, error) {
	if !s.available() {
		return 0, errors.New("ledger unavailable")
	}

	var count int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM tweets WHERE created_at >= $1`), since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tweets: %w", err)
	}
	return count, nil
}

// RecentTopics returns the latest used topics, newest first.
func (s *SQLStore) RecentTopics(ctx context.Context, limit int) ([]UsedTopicRecord, error) {
	if !s.available() {
		return nil, errors.New("ledger unavailable")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, raw_topic, source, source_url, context_summary, created_at
		FROM used_topics
		ORDER BY created_at DESC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent topics: %w", err)
	}
	defer rows.Close()

	var out []UsedTopicRecord
	for rows.Next() {
		var r UsedTopicRecord
		if err := rows.Scan(&r.ID, &r.RawTopic, &r.Source, &r.SourceURL, &r.ContextSummary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan used topic: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate used topics: %w", err)
	}
	return out, nil
}

// StartOfDay returns midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
