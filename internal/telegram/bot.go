// Package telegram is the interactive approval bot: admins request a draft,
// preview it, then post or regenerate it with inline buttons.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/prashanttc/tweetAut/internal/agents"
	"github.com/prashanttc/tweetAut/internal/ledger"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/internal/publish"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

const (
	CallbackPost  = "post_tweet"
	CallbackRegen = "regen_tweet"

	logsLimit = 5
)

// DefaultCommands maps bot commands to agent names.
var DefaultCommands = map[string]string{
	"posttech": "tech",
	"postshit": "evening",
	"thread":   "thread",
}

// Sender is the subset of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Drafter produces, rewrites and publishes drafts.
type Drafter interface {
	Draft(ctx context.Context, agent string) (agents.Draft, error)
	Regenerate(ctx context.Context, d agents.Draft) (agents.Draft, error)
	Approve(ctx context.Context, d *agents.Draft) (publish.Publication, error)
}

type TweetLister interface {
	RecentTweets(ctx context.Context, limit int) ([]ledger.TweetRecord, error)
}

type Config struct {
	Sender   Sender
	Drafter  Drafter
	Tweets   TweetLister
	Sessions SessionStore
	// Admins are the only user ids the bot answers. Empty means nobody.
	Admins   []int64
	Commands map[string]string
	Logger   logging.Logger
}

type Bot struct {
	sender   Sender
	drafter  Drafter
	tweets   TweetLister
	sessions SessionStore
	admins   map[int64]bool
	commands map[string]string
	logger   logging.Logger

	wg sync.WaitGroup
}

func New(cfg Config) *Bot {
	admins := make(map[int64]bool, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = true
	}
	commands := cfg.Commands
	if commands == nil {
		commands = DefaultCommands
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewMemorySessions(SessionTTL)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Bot{
		sender:   cfg.Sender,
		drafter:  cfg.Drafter,
		tweets:   cfg.Tweets,
		sessions: sessions,
		admins:   admins,
		commands: commands,
		logger:   logger,
	}
}

// Run handles updates until ctx ends or the channel closes, then waits for
// in-flight handlers.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes one update. Updates from users outside the
// allow-list are dropped without a reply.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", fmt.Sprint(r)).Error("Telegram bot: update handler panic")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil || !b.admins[cq.From.ID] || cq.Message == nil || cq.Message.Chat == nil {
			return
		}
		b.handleCallback(ctx, cq)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || !b.admins[msg.From.ID] || msg.Chat == nil {
			return
		}
		if msg.IsCommand() {
			b.handleCommand(ctx, msg)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()

	switch cmd {
	case "start", "help":
		b.reply(chatID, helpText)
		return
	case "logs":
		b.sendLogs(ctx, chatID)
		return
	}

	agent, ok := b.commands[cmd]
	if !ok {
		b.reply(chatID, "Unknown command. Try /help.")
		return
	}

	b.reply(chatID, "Cooking something up...")
	draft, err := b.drafter.Draft(ctx, agent)
	if err != nil {
		b.logger.WithError(err).WithField("agent", agent).Warn("Telegram bot: draft failed")
		b.reply(chatID, failureText(err))
		return
	}
	b.preview(ctx, chatID, msg.From.ID, draft)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	// Acknowledge so the client stops its spinner.
	if _, err := b.sender.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.WithError(err).Debug("Telegram bot: failed to answer callback")
	}

	draft, ok, err := b.sessions.Get(ctx, userID)
	if err != nil {
		b.logger.WithError(err).Warn("Telegram bot: failed to load session")
		b.reply(chatID, "Could not load your draft. Try again.")
		return
	}
	if !ok {
		b.reply(chatID, "No pending draft. It may have expired.")
		return
	}

	switch cq.Data {
	case CallbackPost:
		b.clearButtons(chatID, cq.Message.MessageID)
		pub, err := b.drafter.Approve(ctx, &draft)
		if err != nil {
			b.logger.WithError(err).WithField("agent", draft.Agent).Warn("Telegram bot: approved draft failed")
			b.reply(chatID, failureText(err))
			b.keepForRetry(ctx, userID, draft, err)
			return
		}
		if err := b.sessions.Delete(ctx, userID); err != nil {
			b.logger.WithError(err).Warn("Telegram bot: failed to clear session")
		}
		b.reply(chatID, "Posted: "+pub.PostURL)
	case CallbackRegen:
		b.clearButtons(chatID, cq.Message.MessageID)
		next, err := b.drafter.Regenerate(ctx, draft)
		if err != nil {
			b.logger.WithError(err).WithField("agent", draft.Agent).Warn("Telegram bot: regenerate failed")
			b.reply(chatID, failureText(err))
			return
		}
		b.preview(ctx, chatID, userID, next)
	}
}

// keepForRetry stores the draft as Approve left it, reservation included, so
// pressing Post again retries the publish. Drafts that cannot be retried are
// dropped.
func (b *Bot) keepForRetry(ctx context.Context, userID int64, d agents.Draft, err error) {
	if errors.Is(err, pipeline.ErrNoFreshTopic) || !d.Retryable() {
		if derr := b.sessions.Delete(ctx, userID); derr != nil {
			b.logger.WithError(derr).Warn("Telegram bot: failed to clear session")
		}
		return
	}
	if perr := b.sessions.Put(ctx, userID, d); perr != nil {
		b.logger.WithError(perr).Warn("Telegram bot: failed to store session")
	}
}

func (b *Bot) preview(ctx context.Context, chatID, userID int64, d agents.Draft) {
	if err := b.sessions.Put(ctx, userID, d); err != nil {
		b.logger.WithError(err).Warn("Telegram bot: failed to store session")
		b.reply(chatID, "Could not save the draft. Try again.")
		return
	}
	text := fmt.Sprintf("Topic: %s\n\n%s", d.Topic.RawTopic, d.Text())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Post", CallbackPost),
			tgbotapi.NewInlineKeyboardButtonData("Regenerate", CallbackRegen),
		),
	)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.WithError(err).Warn("Telegram bot: failed to send preview")
	}
}

func (b *Bot) sendLogs(ctx context.Context, chatID int64) {
	tweets, err := b.tweets.RecentTweets(ctx, logsLimit)
	if err != nil {
		b.logger.WithError(err).Warn("Telegram bot: failed to load recent tweets")
		b.reply(chatID, "Could not load recent tweets.")
		return
	}
	if len(tweets) == 0 {
		b.reply(chatID, "No tweets posted yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Latest tweets:\n")
	for i, t := range tweets {
		fmt.Fprintf(&sb, "\n%d. %s\n%s\n%s\n", i+1, t.CreatedAt.UTC().Format(time.DateTime), firstLine(t.Content), t.PostURL)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) clearButtons(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.sender.Request(edit); err != nil {
		b.logger.WithError(err).Debug("Telegram bot: failed to clear buttons")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.WithError(err).Warn("Telegram bot: failed to send message")
	}
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[:i] + " ..."
	}
	return s
}

func failureText(err error) string {
	switch pipeline.Stage(err) {
	case "no_fresh_topic":
		return "Nothing fresh to post right now."
	case "fetch":
		return "Could not reach the feeds. Try again later."
	case "selection":
		return "The model could not pick a topic. Try again."
	case "generation":
		return "The model did not produce usable text. Try again."
	case "publish":
		return "Posting to Twitter failed: " + err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}

const helpText = `Commands:
/posttech - draft a tech tweet from the latest feeds
/postshit - draft a casual post
/thread - draft a thread on a fresh topic
/logs - show the latest 5 tweets`
