package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// Slack implements the communication contract with scenario fixtures.
// Messages sent during the session are appended to the fixture history.
type Slack struct {
	base

	mu       sync.Mutex
	sent     []models.Message
	channels []models.Channel
}

// NewSlack creates a mock communication provider.
func NewSlack(settings *config.Settings) *Slack {
	return &Slack{base: newBase(settings, "slack")}
}

// ReloadScenario re-reads the active scenario fixture.
func (s *Slack) ReloadScenario() { s.reload() }

func (s *Slack) SendMessage(ctx context.Context, channel, message string) error {
	if err := s.delay(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, models.Message{
		ID:        "msg-" + uuid.NewString()[:8],
		Channel:   channel,
		Text:      message,
		Author:    "runbook-bot",
		Timestamp: &now,
	})
	return nil
}

func (s *Slack) CreateChannel(ctx context.Context, name, purpose string) (*models.Channel, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ch := models.Channel{
		ID:        "C" + strings.ToUpper(uuid.NewString()[:6]),
		Name:      name,
		Purpose:   purpose,
		CreatedAt: &now,
	}
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()
	return &ch, nil
}

func (s *Slack) GetRecentMessages(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fixture history first, then anything sent during this session.
	var combined []models.Message
	for _, m := range s.fixture.Slack.RecentMessages {
		if m.Channel == channel {
			combined = append(combined, m)
		}
	}
	for _, m := range s.sent {
		if m.Channel == channel {
			combined = append(combined, m)
		}
	}
	if limit > 0 && len(combined) > limit {
		combined = combined[len(combined)-limit:]
	}
	return combined, nil
}

// SentMessages returns every message sent in this session.
func (s *Slack) SentMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.sent...)
}
