// Package live contains provider implementations that talk to real
// external APIs. Each constructor validates its credentials up front so a
// misconfigured live mode fails at registry resolution, not mid-workflow.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// Slack implements the communication contract on the slack-go SDK.
type Slack struct {
	api    *goslack.Client
	logger *slog.Logger

	// channel name -> ID, filled lazily via conversations.list
	channelIDs map[string]string
}

// NewSlack creates a live Slack communication provider.
func NewSlack(settings *config.Settings) (*Slack, error) {
	if settings.SlackBotToken == "" {
		return nil, fmt.Errorf("slack live mode requires SLACK_BOT_TOKEN")
	}
	return &Slack{
		api:        goslack.New(settings.SlackBotToken),
		logger:     slog.With("component", "slack-live"),
		channelIDs: make(map[string]string),
	}, nil
}

// NewSlackWithAPIURL creates a client targeting a custom API URL. Useful
// for testing with a mock server.
func NewSlackWithAPIURL(token, apiURL string) *Slack {
	return &Slack{
		api:        goslack.New(token, goslack.OptionAPIURL(apiURL)),
		logger:     slog.With("component", "slack-live"),
		channelIDs: make(map[string]string),
	}
}

func (s *Slack) SendMessage(ctx context.Context, channel, message string) error {
	channelID, err := s.resolveChannel(ctx, channel)
	if err != nil {
		return err
	}
	_, _, err = s.api.PostMessageContext(ctx, channelID,
		goslack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

func (s *Slack) CreateChannel(ctx context.Context, name, purpose string) (*models.Channel, error) {
	created, err := s.api.CreateConversationContext(ctx, goslack.CreateConversationParams{
		ChannelName: name,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.create failed: %w", err)
	}
	if purpose != "" {
		if _, err := s.api.SetPurposeOfConversationContext(ctx, created.ID, purpose); err != nil {
			s.logger.Warn("setting channel purpose failed", "channel", name, "error", err)
		}
	}
	s.channelIDs[name] = created.ID
	createdAt := time.Unix(int64(created.Created), 0).UTC()
	return &models.Channel{
		ID:        created.ID,
		Name:      created.Name,
		Purpose:   purpose,
		CreatedAt: &createdAt,
	}, nil
}

func (s *Slack) GetRecentMessages(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	channelID, err := s.resolveChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	history, err := s.api.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.history failed: %w", err)
	}

	// Slack returns newest first; callers expect chronological order.
	messages := make([]models.Message, 0, len(history.Messages))
	for i := len(history.Messages) - 1; i >= 0; i-- {
		raw := history.Messages[i]
		msg := models.Message{
			ID:      raw.Timestamp,
			Channel: channel,
			Text:    raw.Text,
			Author:  raw.User,
		}
		if ts := parseSlackTimestamp(raw.Timestamp); ts != nil {
			msg.Timestamp = ts
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// resolveChannel maps a channel name to its ID. Raw IDs (C…) pass through.
func (s *Slack) resolveChannel(ctx context.Context, channel string) (string, error) {
	if strings.HasPrefix(channel, "C") && !strings.Contains(channel, " ") && len(channel) >= 9 {
		return channel, nil
	}
	name := strings.TrimPrefix(channel, "#")
	if id, ok := s.channelIDs[name]; ok {
		return id, nil
	}

	cursor := ""
	for {
		channels, next, err := s.api.GetConversationsContext(ctx, &goslack.GetConversationsParameters{
			Cursor:          cursor,
			Limit:           200,
			ExcludeArchived: true,
		})
		if err != nil {
			return "", fmt.Errorf("conversations.list failed: %w", err)
		}
		for _, ch := range channels {
			s.channelIDs[ch.Name] = ch.ID
		}
		if id, ok := s.channelIDs[name]; ok {
			return id, nil
		}
		if next == "" {
			return "", fmt.Errorf("slack channel %q not found", channel)
		}
		cursor = next
	}
}

// parseSlackTimestamp converts a "1234567890.123456" ts into a time.
func parseSlackTimestamp(ts string) *time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	unix, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}
