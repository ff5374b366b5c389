package api

import (
	"errors"
	"sort"
	"sync"

	"github.com/oncallops/runbookd/pkg/models"
	"github.com/oncallops/runbookd/pkg/runbook"
)

// ErrNotFound indicates a stored resource does not exist.
var ErrNotFound = errors.New("not found")

// Store is the in-memory workflow state shared by the handlers: incidents
// created through the API and runbook executions awaiting approval or
// inspection.
type Store struct {
	mu         sync.RWMutex
	incidents  map[string]*models.Incident
	order      []string
	executions map[string]*runbook.Execution
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		incidents:  make(map[string]*models.Incident),
		executions: make(map[string]*runbook.Execution),
	}
}

// SaveIncident stores an incident, keeping insertion order for listing.
func (s *Store) SaveIncident(incident *models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.incidents[incident.ID]; !exists {
		s.order = append(s.order, incident.ID)
	}
	s.incidents[incident.ID] = incident
}

// Incident returns the incident with the given ID.
func (s *Store) Incident(id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return incident, nil
}

// Incidents returns all stored incidents, newest first.
func (s *Store) Incidents() []*models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Incident, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.incidents[s.order[i]])
	}
	return out
}

// SaveExecution stores a runbook execution.
func (s *Store) SaveExecution(execution *runbook.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = execution
}

// Execution returns the runbook execution with the given ID.
func (s *Store) Execution(id string) (*runbook.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execution, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return execution, nil
}

// Executions returns all stored executions sorted by start time, newest
// first.
func (s *Store) Executions() []*runbook.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*runbook.Execution, 0, len(s.executions))
	for _, execution := range s.executions {
		out = append(out, execution)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
