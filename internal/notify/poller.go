package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tamoykinden/Final-project-auto-purch/internal/metrics"
)

const defaultBatchSize = 100

type OutboxPoller struct {
	tick      time.Duration
	batchSize int
	outbox    Outbox
	publisher Publisher
	metrics   *metrics.Metrics

	recovery     *OutboxDispatcher
	recoveryTick time.Duration
}

func NewOutboxPoller(outbox Outbox, publisher Publisher, tick time.Duration, m *metrics.Metrics) *OutboxPoller {
	if tick <= 0 {
		tick = time.Second
	}
	return &OutboxPoller{
		tick:      tick,
		batchSize: defaultBatchSize,
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
	}
}

// WithRecovery makes Run sweep for lost events every tick. Changes younger than one tick
// are left alone, their own dispatch may still be under way.
func (p *OutboxPoller) WithRecovery(d *OutboxDispatcher, tick time.Duration) *OutboxPoller {
	p.recovery = d
	p.recoveryTick = tick
	return p
}

// Run publishes pending events every tick until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	var recoveryC <-chan time.Time
	if p.recovery != nil && p.recoveryTick > 0 {
		recoveryTicker := time.NewTicker(p.recoveryTick)
		defer recoveryTicker.Stop()
		recoveryC = recoveryTicker.C
	}

	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryC:
			p.recoverLostEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) recoverLostEvents(ctx context.Context) {
	recovered, err := p.recovery.Recover(ctx, time.Now().Add(-p.recoveryTick), p.batchSize)
	if err != nil {
		log.Error().Err(err).Int("recovered", recovered).Msg("failed to recover lost events")
		return
	}
	if recovered > 0 {
		log.Warn().Int("recovered", recovered).Msg("recovered events that missed the outbox")
	}
}

// processUnpublishedEvents leaves failed events in the outbox for the next tick. Once an event
// of an order fails, the later events of that order wait too, so they never overtake it.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.outbox.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	blocked := make(map[string]bool)
	for _, event := range events {
		if blocked[event.AggregateID] {
			continue
		}
		if errPublish := p.publisher.Publish(ctx, event); errPublish != nil {
			p.metrics.ObservePublish("error")
			log.Warn().Err(errPublish).Int64("outbox_id", event.ID).Msg("failed to publish event")
			blocked[event.AggregateID] = true
			continue
		}
		p.metrics.ObservePublish("ok")

		if errMark := p.outbox.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			log.Error().Err(errMark).Int64("outbox_id", event.ID).Msg("failed to mark event as processed")
			blocked[event.AggregateID] = true
			continue
		}
		published++
	}
	return published
}
