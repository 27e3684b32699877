package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository создаёт PostgreSQL-реализацию EventRepository.
func NewEventRepository(store *Store) domain.EventRepository {
	return &eventRepository{db: store.DB()}
}

func (r *eventRepository) Insert(event domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Явный параметр перекрывает DEFAULT NOW(): нулевое время ломало бы
	// порядок захвата и очистку по возрасту.
	if event.CreatedOn.IsZero() {
		event.CreatedOn = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, payload, status, created_on)
		VALUES ($1,$2,$3,$4,$5)
	`, event.ID, string(event.Type), event.Payload, string(event.Status), event.CreatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// ClaimNextPending захватывает старейшее PENDING-событие одного из типов.
// FOR UPDATE SKIP LOCKED гарантирует, что конкурирующие поллеры никогда не
// возьмут одну и ту же строку.
func (r *eventRepository) ClaimNextPending(types []domain.EventType) (domain.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(types) == 0 {
		return domain.Event{}, domain.ErrNoPendingEvents
	}

	args := make([]any, 0, len(types))
	placeholders := make([]string, 0, len(types))
	for i, t := range types {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, string(t))
	}

	query := fmt.Sprintf(`
		WITH next_event AS (
			SELECT id
			FROM events
			WHERE status = 'PENDING'
			  AND event_type IN (%s)
			ORDER BY created_on ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE events e
		SET status = 'PROCESSING'
		FROM next_event
		WHERE e.id = next_event.id
		RETURNING e.id, e.event_type, e.payload, e.status, e.created_on
	`, strings.Join(placeholders, ","))

	var (
		event     domain.Event
		eventType string
		status    string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&event.ID, &eventType, &event.Payload, &status, &event.CreatedOn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, domain.ErrNoPendingEvents
		}
		return domain.Event{}, fmt.Errorf("claim pending event: %w", err)
	}
	event.Type = domain.EventType(eventType)
	event.Status = domain.EventStatus(status)

	return event, nil
}

func (r *eventRepository) MarkDelivered(id string) error {
	return r.markStatus(id, domain.EventStatusDelivered)
}

func (r *eventRepository) MarkFailed(id string) error {
	return r.markStatus(id, domain.EventStatusFailed)
}

func (r *eventRepository) markStatus(id string, status domain.EventStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET status = $2
		WHERE id = $1
		  AND status = 'PROCESSING'
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("mark event as %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for event %s: %w", status, err)
	}
	if affected == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// RequeueFailed возвращает события FAILED в очередь. Автоповтора в конвейере
// нет: вызывается только инструментом ручной переобработки.
func (r *eventRepository) RequeueFailed(limit int) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	res, err := r.db.ExecContext(ctx, `
		WITH failed AS (
			SELECT id
			FROM events
			WHERE status = 'FAILED'
			ORDER BY created_on ASC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE events e
		SET status = 'PENDING'
		FROM failed
		WHERE e.id = failed.id
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("requeue failed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

// PurgeDelivered удаляет доставленные события старше before порциями — вызов
// на пустой выборке возвращает 0 и не трогает таблицу.
func (r *eventRepository) PurgeDelivered(before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM events
			WHERE status = 'DELIVERED'
			  AND created_on < $1
			ORDER BY created_on ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		DELETE FROM events e
		USING stale
		WHERE e.id = stale.id
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("purge delivered events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

func (r *eventRepository) Stats() (domain.PipelineStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		stats  domain.PipelineStats
		oldest sql.NullTime
	)

	if err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			MIN(created_on) FILTER (WHERE status = 'PENDING')
		FROM events
	`).Scan(&stats.PendingCount, &stats.FailedCount, &oldest); err != nil {
		return domain.PipelineStats{}, fmt.Errorf("event stats query failed: %w", err)
	}

	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}

	return stats, nil
}

var _ domain.EventRepository = (*eventRepository)(nil)
