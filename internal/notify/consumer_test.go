package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// scriptedReader fails the first failures fetches, then hands out messages and finally
// blocks until ctx is done.
type scriptedReader struct {
	mu        sync.Mutex
	failures  int
	messages  []kafka.Message
	fetches   int
	committed []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.fetches++
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func runConsumer(c *Consumer) (context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func TestConsumer_BacksOffWhenFetchFails(t *testing.T) {
	reader := &scriptedReader{failures: 1000}
	c := newConsumer(reader, LogNotification)
	c.minBackoff = 20 * time.Millisecond
	c.maxBackoff = 40 * time.Millisecond

	cancel, done := runConsumer(c)
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	// 20, 40, 40, 40, 40ms waits fit into the window, a spinning loop would fetch far more often
	assert.LessOrEqual(t, reader.fetchCount(), 10)
	assert.GreaterOrEqual(t, reader.fetchCount(), 2)
}

func TestConsumer_StopsDuringBackoff(t *testing.T) {
	reader := &scriptedReader{failures: 1000}
	c := newConsumer(reader, LogNotification)
	c.minBackoff = time.Hour

	cancel, done := runConsumer(c)
	require.Eventually(t, func() bool { return reader.fetchCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop while backing off")
	}
}

func TestConsumer_RecoversAfterFetchFailures(t *testing.T) {
	event := domain.Event{ID: uuid.New(), Type: domain.EventOrderCreated, OrderID: uuid.New()}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	reader := &scriptedReader{failures: 2, messages: []kafka.Message{{Offset: 7, Value: payload}}}
	var mu sync.Mutex
	var handled []uuid.UUID
	c := newConsumer(reader, func(_ context.Context, ev domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, ev.ID)
		return nil
	})
	c.minBackoff = time.Millisecond

	cancel, done := runConsumer(c)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []uuid.UUID{event.ID}, handled)
	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Equal(t, []int64{7}, reader.committed)
}
