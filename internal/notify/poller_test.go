package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*OutboxEvent
	failIDs   map[int64]bool
}

func (p *recordingPublisher) Publish(_ context.Context, event *OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failIDs[event.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func enqueueEvents(t *testing.T, outbox Outbox, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, outbox.Enqueue(context.Background(), domain.Event{
			ID:         uuid.New(),
			Type:       domain.EventOrderCreated,
			OrderID:    uuid.New(),
			OccurredAt: time.Now(),
		}))
	}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	outbox := NewMemoryOutbox()
	enqueueEvents(t, outbox, 3)
	publisher := &recordingPublisher{}

	poller := NewOutboxPoller(outbox, publisher, time.Second, nil)
	assert.Equal(t, 3, poller.processUnpublishedEvents(context.Background()))
	assert.Equal(t, 3, publisher.count())
	assert.Zero(t, outbox.Pending())
}

func TestOutboxPoller_FailedPublishStaysQueued(t *testing.T) {
	outbox := NewMemoryOutbox()
	enqueueEvents(t, outbox, 3)
	publisher := &recordingPublisher{failIDs: map[int64]bool{2: true}}

	poller := NewOutboxPoller(outbox, publisher, time.Second, nil)
	assert.Equal(t, 2, poller.processUnpublishedEvents(context.Background()))
	assert.Equal(t, 1, outbox.Pending())

	publisher.mu.Lock()
	publisher.failIDs = nil
	publisher.mu.Unlock()
	assert.Equal(t, 1, poller.processUnpublishedEvents(context.Background()))
	assert.Zero(t, outbox.Pending())
}

func TestOutboxPoller_FetchError(t *testing.T) {
	outbox := &mockOutbox{}
	outbox.On("GetUnprocessedEvents", mock.Anything, defaultBatchSize).Return(nil, errors.New("db down"))
	publisher := &recordingPublisher{}

	poller := NewOutboxPoller(outbox, publisher, time.Second, nil)
	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
	assert.Zero(t, publisher.count())
}

func TestOutboxPoller_RunUntilCancelled(t *testing.T) {
	outbox := NewMemoryOutbox()
	enqueueEvents(t, outbox, 2)
	publisher := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewOutboxPoller(outbox, publisher, 10*time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return outbox.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 2, publisher.count())
}
