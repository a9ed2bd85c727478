package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/port/messagequeue"
	"github.com/Strob0t/CourseForge/internal/resilience"
)

// EventPublisher announces enrollment state changes to downstream consumers.
type EventPublisher interface {
	PublishEnrollment(ctx context.Context, subject string, r *enrollment.Request) error
}

// NoopPublisher discards events. Used when NATS is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEnrollment(context.Context, string, *enrollment.Request) error {
	return nil
}

// QueuePublisher publishes enrollment events to the message queue behind a
// circuit breaker.
type QueuePublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	now     func() time.Time
}

// NewQueuePublisher creates a publisher. breaker may be nil.
func NewQueuePublisher(queue messagequeue.Queue, breaker *resilience.Breaker) *QueuePublisher {
	return &QueuePublisher{queue: queue, breaker: breaker, now: time.Now}
}

func (p *QueuePublisher) PublishEnrollment(ctx context.Context, subject string, r *enrollment.Request) error {
	data, err := json.Marshal(messagequeue.EnrollmentEventPayload{
		EventID:      uuid.NewString(),
		TenantID:     r.TenantID,
		RequestID:    r.ID,
		Status:       string(r.Status),
		LearnerEmail: r.LearnerEmail,
		CourseID:     r.CourseID,
		OccurredAt:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	publish := func(ctx context.Context) error {
		return p.queue.Publish(ctx, subject, data)
	}
	if p.breaker != nil {
		err = p.breaker.ExecuteContext(ctx, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	slog.DebugContext(ctx, "enrollment event published", "subject", subject, "request_id", r.ID)
	return nil
}
