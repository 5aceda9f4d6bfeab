package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/pkg/jobs"
	"github.com/noah-isme/course-reg-api/pkg/mail"
)

// Notification outcomes recorded by the metrics layer.
const (
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
	NotificationDropped   = "dropped"
)

const notificationJobType = "notification"

type inboxRepository interface {
	Push(ctx context.Context, n models.Notification) error
	List(ctx context.Context, username string, offset, limit int) ([]models.Notification, int, error)
}

type notificationRecorder interface {
	RecordNotification(outcome string)
}

// NotificationConfig sizes the delivery pool.
type NotificationConfig struct {
	Workers    int
	Buffer     int
	Retries    int
	RetryDelay time.Duration
}

type notificationPayload struct {
	Notification models.Notification
	Email        string
}

// NotificationService delivers messages to user inboxes and mailboxes in
// the background. Notify never blocks: when the queue is full the message
// is dropped and logged.
type NotificationService struct {
	inbox   inboxRepository
	mailer  mail.Mailer
	metrics notificationRecorder
	logger  *zap.Logger
	queue   *jobs.Queue
	now     func() time.Time
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(inbox inboxRepository, mailer mail.Mailer, metrics notificationRecorder, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		inbox:   inbox,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Drain delivers what is queued, bounded by ctx, then stops the workers.
func (s *NotificationService) Drain(ctx context.Context) {
	s.queue.Drain(ctx)
}

// Notify queues a message for user. The user is passed by value so workers
// never share state with the caller.
func (s *NotificationService) Notify(user models.User, subject, message string) {
	n := models.Notification{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.now(),
	}
	err := s.queue.TryEnqueue(jobs.Job{
		ID:      n.ID,
		Type:    notificationJobType,
		Payload: notificationPayload{Notification: n, Email: user.Email},
	})
	if err != nil {
		s.record(NotificationDropped)
		s.logger.Warn("notification dropped", zap.String("username", user.Username), zap.String("subject", subject), zap.Error(err))
	}
}

// Inbox returns one page of a user's notifications, newest first.
func (s *NotificationService) Inbox(ctx context.Context, username string, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	items, total, err := s.inbox.List(ctx, username, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("list inbox of %s: %w", username, err)
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.record(NotificationFailed)
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	n := payload.Notification

	var errs []error
	if err := s.inbox.Push(ctx, n); err != nil {
		errs = append(errs, err)
	}
	if payload.Email != "" && s.mailer != nil {
		msg := mail.Message{To: payload.Email, Subject: n.Subject, Body: n.Message}
		if err := s.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.record(NotificationFailed)
		return err
	}
	s.record(NotificationDelivered)
	return nil
}

func (s *NotificationService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordNotification(outcome)
	}
}
