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

// ServiceNow implements the ticketing contract with scenario fixtures.
// Work notes accumulate in memory for the provider's lifetime.
type ServiceNow struct {
	base

	mu        sync.Mutex
	workNotes map[string][]string
}

// NewServiceNow creates a mock ticketing provider.
func NewServiceNow(settings *config.Settings) *ServiceNow {
	return &ServiceNow{
		base:      newBase(settings, "servicenow"),
		workNotes: make(map[string][]string),
	}
}

// ReloadScenario re-reads the active scenario fixture.
func (s *ServiceNow) ReloadScenario() { s.reload() }

func (s *ServiceNow) GetIncident(ctx context.Context, incidentID string) (*models.Ticket, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	ticket := s.fixture.ServiceNow.Incident
	if ticket.ID == "" {
		ticket.ID = incidentID
	}
	return &ticket, nil
}

func (s *ServiceNow) CreateIncident(ctx context.Context, req models.CreateTicketRequest) (*models.Ticket, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	id := "INC" + strings.ToUpper(uuid.NewString()[:7])
	return &models.Ticket{
		ID:               id,
		Number:           id,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Status:           "new",
		Severity:         req.Severity,
		Category:         req.Category,
		AssignedTo:       req.AssignedTo,
		CreatedAt:        &now,
		Tags:             req.Tags,
	}, nil
}

func (s *ServiceNow) UpdateIncident(ctx context.Context, incidentID string, updates map[string]any) (*models.Ticket, error) {
	ticket, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	// Fixture data first, updates applied on top.
	for key, value := range updates {
		str, _ := value.(string)
		switch key {
		case "status":
			ticket.Status = str
		case "severity":
			ticket.Severity = models.Severity(str)
		case "category":
			ticket.Category = models.ProblemCategory(str)
		case "assigned_to":
			ticket.AssignedTo = str
		case "short_description":
			ticket.ShortDescription = str
		case "description":
			ticket.Description = str
		}
	}
	return ticket, nil
}

func (s *ServiceNow) GetRecentChanges(ctx context.Context, timeframe string) ([]models.ChangeRecord, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	return s.fixture.ServiceNow.RecentChanges, nil
}

func (s *ServiceNow) AddWorkNote(ctx context.Context, incidentID, note string) error {
	if err := s.delay(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workNotes[incidentID] = append(s.workNotes[incidentID], note)
	return nil
}

// WorkNotes returns the notes recorded for an incident in this session.
func (s *ServiceNow) WorkNotes(incidentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.workNotes[incidentID]...)
}

func (s *ServiceNow) SearchKnowledgeBase(ctx context.Context, query string) ([]models.KBArticle, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}
	return s.fixture.ServiceNow.KnowledgeBase, nil
}
