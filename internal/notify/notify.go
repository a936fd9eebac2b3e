// Package notify emails the operator when an agent run posts or fails.
package notify

import (
	"context"
	"fmt"

	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

// Mailer sends one HTML email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, htmlBody string) error
}

type Config struct {
	Mailer Mailer
	// Enabled is false when SMTP is not configured; Notify then only logs.
	Enabled bool
	To      string
	Logger  logging.Logger
}

type Notifier struct {
	mailer  Mailer
	enabled bool
	to      string
	logger  logging.Logger
}

func New(cfg Config) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Notifier{
		mailer:  cfg.Mailer,
		enabled: cfg.Enabled,
		to:      cfg.To,
		logger:  logger,
	}
}

// Notice is the content of one notification.
type Notice struct {
	Result  pipeline.Result
	Content string
}

// Notify sends a posted or failed notice for res. No-op runs are not mailed.
func (n *Notifier) Notify(ctx context.Context, notice Notice) error {
	if n == nil {
		return nil
	}
	if notice.Result.Status == pipeline.StatusNoop {
		return nil
	}
	if !n.enabled || n.mailer == nil {
		n.logger.Debug("Notifier: SMTP not configured, skipping email")
		return nil
	}
	if n.to == "" {
		n.logger.Warn("Notifier: no recipient configured, skipping email")
		return nil
	}

	subject := subjectFor(notice.Result)
	body, err := render(notice)
	if err != nil {
		return fmt.Errorf("render notice: %w", err)
	}
	if err := n.mailer.SendMail(ctx, n.to, subject, body); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}

	n.logger.WithFields(logging.Fields{
		"agent":  notice.Result.Agent,
		"status": string(notice.Result.Status),
	}).Info("Notifier: email sent")
	return nil
}
