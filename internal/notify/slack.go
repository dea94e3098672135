// Package notify posts best-effort Slack webhook notifications. Send
// failures are logged, never returned; an unset webhook URL disables the
// notifier entirely.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/issuedeck/issuedeck/internal/models"
)

// Notifier posts issue events to a Slack incoming webhook.
type Notifier struct {
	webhookURL string
	logger     *slog.Logger
}

// NewNotifier creates a notifier. An empty webhookURL makes every method a
// no-op.
func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{webhookURL: webhookURL, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// IssueCreated posts a block message describing a newly created issue.
func (n *Notifier) IssueCreated(ctx context.Context, issue *models.Issue, creatorName string) {
	if !n.Enabled() {
		return
	}

	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "🐛 New Issue Created", true, false))
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Title:*\n%s", issue.Title), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Status:*\n%s", issue.Status), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Priority:*\n%s", issue.Priority), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Created By:*\n%s", creatorName), false, false),
	}
	section := slack.NewSectionBlock(nil, fields, nil)
	desc := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Description:*\n%s", issue.Description), false, false),
		nil, nil)

	n.post(ctx, &slack.WebhookMessage{
		Text:   "New Issue: " + issue.Title,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{header, section, desc}},
	})
}

// IssueResolved posts a short resolution notice.
func (n *Notifier) IssueResolved(ctx context.Context, issue *models.Issue, resolverName string) {
	if !n.Enabled() {
		return
	}
	text := fmt.Sprintf("Issue resolved: %s (by %s)", issue.Title, resolverName)
	n.post(ctx, &slack.WebhookMessage{
		Text: text,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.PlainTextType, text, false, false), nil, nil),
		}},
	})
}

func (n *Notifier) post(ctx context.Context, msg *slack.WebhookMessage) {
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		n.logger.Warn("slack notification failed", "error", err)
	}
}
