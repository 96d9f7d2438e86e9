package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	Token   string // xoxb-... bot token
	Channel string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// Slack posts alerts as message attachments.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	client := opts.Client
	if client == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("slack: bot token is required")
		}
		client = slackapi.New(opts.Token)
	}
	return &Slack{client: client, channel: opts.Channel}, nil
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, a Alert) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slackapi.MsgOptionText(a.Title, false),
		slackapi.MsgOptionAttachments(alertToAttachment(a)),
	)
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", s.channel, err)
	}
	return nil
}

// alertToAttachment converts an Alert to a Slack attachment.
func alertToAttachment(a Alert) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    a.Title,
		Text:     a.Body,
		Color:    a.Color(),
		Fallback: a.Title,
	}
	for _, f := range a.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
