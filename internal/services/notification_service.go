// internal/services/notification_service.go
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/models"
)

// NotificationEvent is one outbound best-effort notification.
type NotificationEvent struct {
	UserID  uuid.UUID
	Kind    models.NotificationKind
	Title   string
	Message string
	Payload models.JSONB
}

// NotificationSink is what the booking and payment services see: a
// fire-and-forget enqueue that must never block or fail the caller.
type NotificationSink interface {
	Notify(event NotificationEvent)
}

// NotificationService decouples notification delivery from the request path
// with a buffered channel drained by a single worker goroutine. A slow or
// failing channel can drop events (logged), never delay a booking or payment.
type NotificationService struct {
	db    *gorm.DB
	queue chan NotificationEvent
	wg    sync.WaitGroup
	once  sync.Once
}

func NewNotificationService(db *gorm.DB, queueSize int) *NotificationService {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationService{
		db:    db,
		queue: make(chan NotificationEvent, queueSize),
	}
}

// Start launches the dispatch worker. Call once at startup.
func (s *NotificationService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range s.queue {
			s.dispatch(event)
		}
	}()
}

// Close drains the queue and stops the worker.
func (s *NotificationService) Close() {
	s.once.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

// Notify enqueues without blocking. When the queue is full the event is
// dropped with a warning; notifications are at-most-once by contract.
func (s *NotificationService) Notify(event NotificationEvent) {
	select {
	case s.queue <- event:
	default:
		logrus.WithFields(logrus.Fields{
			"user_id": event.UserID,
			"kind":    event.Kind,
		}).Warn("Notification queue full, dropping event")
	}
}

func (s *NotificationService) dispatch(event NotificationEvent) {
	now := time.Now()
	notification := &models.Notification{
		UserID:  event.UserID,
		Kind:    event.Kind,
		Title:   event.Title,
		Message: event.Message,
		Payload: event.Payload,
		SentAt:  &now,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": event.UserID,
			"kind":    event.Kind,
		}).Error("Failed to record notification")
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": event.UserID,
		"kind":    event.Kind,
	}).Info("Notification dispatched")
}
