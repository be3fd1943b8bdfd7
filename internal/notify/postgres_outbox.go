package notify

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// PostgresOutbox keeps events in the outbox_events table until the poller marks them processed.
type PostgresOutbox struct {
	db *sqlx.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: sqlx.NewDb(db, "postgres")}
}

func (o *PostgresOutbox) Enqueue(ctx context.Context, event domain.Event) error {
	ev, err := newOutboxEvent(event)
	if err != nil {
		return err
	}

	_, err = o.db.NamedExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES (:aggregate_id, :event_type, :payload, :created_at)`, ev)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	err := o.db.SelectContext(ctx, &events,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox_events
		 WHERE processed_at IS NULL
		 ORDER BY id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	return events, nil
}

func (o *PostgresOutbox) MarkEventAsProcessed(ctx context.Context, id int64) error {
	res, err := o.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
