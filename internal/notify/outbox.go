package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

type OutboxEvent struct {
	ID          int64           `db:"id"`
	AggregateID string          `db:"aggregate_id"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
}

type Outbox interface {
	Enqueue(ctx context.Context, event domain.Event) error
	// GetUnprocessedEvents returns up to limit pending events, oldest first.
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

func newOutboxEvent(event domain.Event) (*OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &OutboxEvent{
		AggregateID: event.OrderID.String(),
		EventType:   string(event.Type),
		Payload:     payload,
		CreatedAt:   event.OccurredAt,
	}, nil
}

type MemoryOutbox struct {
	mu      sync.Mutex
	nextID  int64
	pending []*OutboxEvent
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (m *MemoryOutbox) Enqueue(_ context.Context, event domain.Event) error {
	ev, err := newOutboxEvent(event)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	m.pending = append(m.pending, ev)
	return nil
}

func (m *MemoryOutbox) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(limit, len(m.pending))
	events := make([]*OutboxEvent, 0, n)
	for _, ev := range m.pending[:n] {
		cp := *ev
		events = append(events, &cp)
	}
	return events, nil
}

func (m *MemoryOutbox) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, ev := range m.pending {
		if ev.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Pending returns the number of events not yet marked as processed.
func (m *MemoryOutbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
