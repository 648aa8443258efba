package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type channelPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	received chan []byte
	channel  string
}

func (p *channelPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	p.calls++
	p.channel = channel
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return errors.New("redis unavailable")
	}
	p.mu.Unlock()
	p.received <- payload
	return nil
}

func TestNotificationServiceDeliversEvent(t *testing.T) {
	publisher := &channelPublisher{received: make(chan []byte, 1), failures: 1}
	svc := NewNotificationService(publisher, NotificationConfig{Workers: 1, Retries: 2, BufferSize: 4, RetryDelay: time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	publishedAt := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	svc.NotifyPublished(models.TimetablePublishedEvent{TimetableID: "tt-1", ClassSectionID: "class-10a", AcademicYearID: "year-2024", SlotCount: 3, PublishedAt: publishedAt})

	select {
	case payload := <-publisher.received:
		var event models.TimetablePublishedEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, "tt-1", event.TimetableID)
		assert.Equal(t, 3, event.SlotCount)
		assert.True(t, publishedAt.Equal(event.PublishedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Equal(t, 2, publisher.calls)
	assert.Equal(t, jobTypeTimetablePublished, publisher.channel)
}

func TestNotificationServiceDropsWhenStopped(t *testing.T) {
	publisher := &channelPublisher{received: make(chan []byte, 1)}
	svc := NewNotificationService(publisher, NotificationConfig{Channel: "custom"}, zap.NewNop())

	svc.NotifyPublished(models.TimetablePublishedEvent{TimetableID: "tt-1"})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Zero(t, publisher.calls)
}

func TestLogEventPublisher(t *testing.T) {
	publisher := NewLogEventPublisher(nil)
	assert.NoError(t, publisher.Publish(context.Background(), "timetable.published", []byte(`{}`)))
}
