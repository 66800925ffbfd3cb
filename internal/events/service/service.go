package events

import (
	"errors"
	"fmt"

	"relief-tokens/internal/logger"
	"relief-tokens/internal/models"
)

var ErrInvalidStatus = errors.New("invalid event status")

type EventDBLayer interface {
	CreateEvent(name string) (*models.Event, error)
	GetEventByID(id int64) (*models.Event, error)
	SetEventStatus(id int64, status string) (*models.Event, error)
	ListEventStats() ([]models.EventStats, error)
	EventStats(id int64) (*models.EventStats, error)
}

type HouseDBLayer interface {
	ListHouses() ([]models.House, error)
}

// TokenIssuer is the lifecycle engine's creation path. Issue renders the QR
// artifact best-effort itself, so a render failure never reaches this layer.
type TokenIssuer interface {
	Issue(eventID, houseID int64) (*models.Token, error)
}

// TokenQueries is the subset of the token store issuance needs for its
// double-issuance guard and CSV export.
type TokenQueries interface {
	HouseIDsWithTokens(eventID int64) ([]int64, error)
	EventTokenRows(eventID int64) ([]models.Token, error)
}

// IssueSummary reports a bulk issuance run.
type IssueSummary struct {
	EventID int64 `json:"event_id"`
	Houses  int   `json:"houses"`
	Issued  int   `json:"issued"`
	Skipped int   `json:"skipped"`
}

// EventService owns event status and orchestrates bulk token issuance, one
// token per registered household.
type EventService struct {
	DB     EventDBLayer
	Houses HouseDBLayer
	Issuer TokenIssuer
	Tokens TokenQueries
	Logger *logger.Logger
}

func NewEventService(db EventDBLayer, houses HouseDBLayer, issuer TokenIssuer, tokens TokenQueries, log *logger.Logger) *EventService {
	return &EventService{DB: db, Houses: houses, Issuer: issuer, Tokens: tokens, Logger: log}
}

// CreateEvent creates an active event and issues tokens for every household.
func (s *EventService) CreateEvent(name string) (*models.Event, *IssueSummary, error) {
	event, err := s.DB.CreateEvent(name)
	if err != nil {
		return nil, nil, fmt.Errorf("create event: %w", err)
	}
	if s.Logger != nil {
		s.Logger.LogEvent("CREATE", event.Name, fmt.Sprintf("event %d created", event.ID))
	}
	summary, err := s.IssueTokensForEvent(event.ID)
	if err != nil {
		return event, summary, err
	}
	return event, summary, nil
}

// IssueTokensForEvent creates one token per household that does not already
// hold a non-revoked token for the event. Artifact rendering happens inside
// the issuer and is best-effort; a code allocation failure aborts the run.
func (s *EventService) IssueTokensForEvent(eventID int64) (*IssueSummary, error) {
	if _, err := s.DB.GetEventByID(eventID); err != nil {
		return nil, err
	}

	houses, err := s.Houses.ListHouses()
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}

	existing, err := s.Tokens.HouseIDsWithTokens(eventID)
	if err != nil {
		return nil, fmt.Errorf("existing tokens for event %d: %w", eventID, err)
	}
	covered := make(map[int64]bool, len(existing))
	for _, id := range existing {
		covered[id] = true
	}

	summary := &IssueSummary{EventID: eventID, Houses: len(houses)}
	for _, house := range houses {
		if covered[house.ID] {
			summary.Skipped++
			continue
		}
		token, err := s.Issuer.Issue(eventID, house.ID)
		if err != nil {
			return summary, fmt.Errorf("issue token for house %d: %w", house.ID, err)
		}
		summary.Issued++
		if s.Logger != nil && summary.Issued%100 == 0 {
			s.Logger.LogEvent("ISSUE", fmt.Sprintf("event %d", eventID), fmt.Sprintf("%d tokens issued so far (latest %s)", summary.Issued, token.TokenCode))
		}
	}
	if s.Logger != nil {
		s.Logger.LogEvent("ISSUE", fmt.Sprintf("event %d", eventID), fmt.Sprintf("done: %d issued, %d skipped", summary.Issued, summary.Skipped))
	}
	return summary, nil
}

// SetStatus opens or closes an event.
func (s *EventService) SetStatus(id int64, status string) (*models.Event, error) {
	if status != models.EventActive && status != models.EventClosed {
		return nil, ErrInvalidStatus
	}
	event, err := s.DB.SetEventStatus(id, status)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.LogEvent("STATUS", event.Name, "status set to "+status)
	}
	return event, nil
}

// ListEvents returns all events with token aggregates.
func (s *EventService) ListEvents() ([]models.EventStats, error) {
	return s.DB.ListEventStats()
}

// Report returns the aggregate counts for one event.
func (s *EventService) Report(id int64) (*models.EventStats, error) {
	return s.DB.EventStats(id)
}

// ExportRows returns the per-token CSV rows for an event.
func (s *EventService) ExportRows(eventID int64) ([]models.Token, error) {
	if _, err := s.DB.GetEventByID(eventID); err != nil {
		return nil, err
	}
	return s.Tokens.EventTokenRows(eventID)
}
