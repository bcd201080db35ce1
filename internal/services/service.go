package services

import (
	"context"
	"fmt"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
	"alert-service/internal/notification"
)

// EventStore is the persistence the Service needs. *db.DB satisfies it.
type EventStore interface {
	CreateEvent(ctx context.Context, ev models.Event) (models.Event, error)
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)
	GetEvent(ctx context.Context, id int64) (models.Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status string) error
	Ping(ctx context.Context) error
}

// Notifier sends notifications for an event and reports every attempt.
type Notifier interface {
	Dispatch(ctx context.Context, ev models.Event, trigger notification.Trigger) []models.DeliveryResult
}

// Service ingests events: it persists them, notifies contacts and pushes
// them to live feed subscribers.
type Service struct {
	store     EventStore
	notifier  Notifier
	logger    *logging.Logger
	metrics   *metrics.Collector
	wsManager *WebSocketManager
}

// New constructs a services Service
func New(store EventStore, notifier Notifier, logger *logging.Logger, m *metrics.Collector) *Service {
	return &Service{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
		wsManager: NewWebSocketManager(logger, m),
	}
}

// Logger exposes the Service's logger
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// LiveFeed exposes the WebSocket manager for the stream endpoint.
func (s *Service) LiveFeed() *WebSocketManager {
	return s.wsManager
}

// CreateEvent validates and stores an event, then notifies synchronously.
// Once the insert succeeds the call succeeds, whatever the notifications did.
func (s *Service) CreateEvent(ctx context.Context, in models.EventCreate) (models.Event, []models.DeliveryResult, error) {
	if err := in.Validate(); err != nil {
		return models.Event{}, nil, err
	}

	ev, err := s.store.CreateEvent(ctx, in.ToEvent())
	if err != nil {
		return models.Event{}, nil, err
	}
	s.metrics.EventCreated()
	s.logger.WithFields(logging.Fields{
		"event_id":   ev.ID,
		"user_id":    ev.UserID,
		"type":       ev.Type,
		"confidence": ev.Confidence,
	}).Info("Event created")

	results := s.notifier.Dispatch(ctx, ev, notification.TriggerCreated)
	s.wsManager.Broadcast(EventCreated, ev)
	return ev, results, nil
}

// ListEvents returns up to limit events, newest first.
func (s *Service) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return s.store.ListEvents(ctx, limit)
}

// Acknowledge stores status verbatim. A nil status means "acknowledged".
func (s *Service) Acknowledge(ctx context.Context, id int64, requested *string) (models.Event, error) {
	status := models.StatusAcknowledged
	if requested != nil {
		status = *requested
	}
	if err := s.store.UpdateEventStatus(ctx, id, status); err != nil {
		return models.Event{}, err
	}
	s.logger.WithFields(logging.Fields{"event_id": id, "status": status}).Info("Event acknowledged")

	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		s.logger.Errorf("Reload event %d after ack failed: %v", id, err)
		return models.Event{ID: id, Status: status}, nil
	}
	s.wsManager.Broadcast(EventUpdated, ev)
	return ev, nil
}

// Notify re-sends notifications for a stored event.
func (s *Service) Notify(ctx context.Context, id int64) ([]models.DeliveryResult, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logging.Fields{"event_id": id}).Info("Manual notify")
	return s.notifier.Dispatch(ctx, ev, notification.TriggerManual), nil
}

// Ready reports whether the event store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("event store unavailable: %w", err)
	}
	return nil
}
