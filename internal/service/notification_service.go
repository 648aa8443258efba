package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const jobTypeTimetablePublished = "timetable.published"

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisEventPublisher broadcasts events on a Redis pub/sub channel.
type RedisEventPublisher struct {
	client redis.UniversalClient
}

// NewRedisEventPublisher wraps a Redis client.
func NewRedisEventPublisher(client redis.UniversalClient) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// Publish sends the payload to every subscriber of the channel.
func (p *RedisEventPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// LogEventPublisher only records events. Used when Redis is not configured.
type LogEventPublisher struct {
	logger *zap.Logger
}

// NewLogEventPublisher constructs a LogEventPublisher.
func NewLogEventPublisher(logger *zap.Logger) *LogEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEventPublisher{logger: logger}
}

// Publish logs the payload.
func (p *LogEventPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.logger.Info("event published", zap.String("channel", channel), zap.ByteString("payload", payload))
	return nil
}

// NotificationConfig tunes the delivery queue.
type NotificationConfig struct {
	Channel    string
	Workers    int
	Retries    int
	BufferSize int
	RetryDelay time.Duration
}

// NotificationService delivers publish events in the background. Callers never wait on delivery.
type NotificationService struct {
	publisher eventPublisher
	channel   string
	queue     *jobs.Queue
	logger    *zap.Logger
}

// NewNotificationService constructs the service and its queue. Call Start before use.
func NewNotificationService(publisher eventPublisher, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = jobTypeTimetablePublished
	}
	svc := &NotificationService{publisher: publisher, channel: cfg.Channel, logger: logger}
	svc.queue = jobs.NewQueue("timetable-notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyPublished queues a publish event. Failures to queue are logged and dropped.
func (s *NotificationService) NotifyPublished(event models.TimetablePublishedEvent) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      event.TimetableID,
		Type:    jobTypeTimetablePublished,
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("publish notification dropped", zap.String("timetable_id", event.TimetableID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.TimetablePublishedEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal publish event: %w", err)
	}
	return s.publisher.Publish(ctx, s.channel, payload)
}
