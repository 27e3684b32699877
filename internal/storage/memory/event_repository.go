package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

// EventRepository — in-memory очередь событий конвейера. Семантика статусов
// повторяет постгресовую реализацию: захват переводит старейшее PENDING-событие
// в PROCESSING, завершение допустимо только из PROCESSING.
type EventRepository struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewEventRepository создаёт in-memory реализацию EventRepository.
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

func (r *EventRepository) Insert(event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insertLocked(event)
}

func (r *EventRepository) ClaimNextPending(types []domain.EventType) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(types) == 0 {
		return domain.Event{}, domain.ErrNoPendingEvents
	}
	wanted := make(map[domain.EventType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	best := -1
	for i, e := range r.events {
		if e.Status != domain.EventStatusPending {
			continue
		}
		if _, ok := wanted[e.Type]; !ok {
			continue
		}
		if best == -1 || r.events[i].CreatedOn.Before(r.events[best].CreatedOn) {
			best = i
		}
	}
	if best == -1 {
		return domain.Event{}, domain.ErrNoPendingEvents
	}
	r.events[best].Status = domain.EventStatusProcessing
	return cloneEvent(r.events[best]), nil
}

func (r *EventRepository) MarkDelivered(id string) error {
	return r.markStatus(id, domain.EventStatusDelivered)
}

func (r *EventRepository) MarkFailed(id string) error {
	return r.markStatus(id, domain.EventStatusFailed)
}

func (r *EventRepository) RequeueFailed(limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	requeued := 0
	for i := range r.events {
		if requeued >= limit {
			break
		}
		if r.events[i].Status == domain.EventStatusFailed {
			r.events[i].Status = domain.EventStatusPending
			requeued++
		}
	}
	return requeued, nil
}

func (r *EventRepository) Stats() (domain.PipelineStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.PipelineStats
	for _, e := range r.events {
		switch e.Status {
		case domain.EventStatusPending:
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || e.CreatedOn.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = e.CreatedOn
			}
		case domain.EventStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (r *EventRepository) PurgeDelivered(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}

	purged := 0
	kept := r.events[:0]
	for _, e := range r.events {
		if purged < limit && e.Status == domain.EventStatusDelivered && e.CreatedOn.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return purged, nil
}

func (r *EventRepository) markStatus(id string, status domain.EventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.events {
		if r.events[i].ID != id {
			continue
		}
		if r.events[i].Status != domain.EventStatusProcessing {
			return domain.ErrEventNotFound
		}
		r.events[i].Status = status
		return nil
	}
	return domain.ErrEventNotFound
}

func (r *EventRepository) insertLocked(event domain.Event) error {
	for _, e := range r.events {
		if e.ID == event.ID {
			return domain.ErrAlreadyExists
		}
	}
	if event.Status == "" {
		event.Status = domain.EventStatusPending
	}
	if event.CreatedOn.IsZero() {
		event.CreatedOn = time.Now().UTC()
	}
	r.events = append(r.events, cloneEvent(event))
	return nil
}

func cloneEvent(e domain.Event) domain.Event {
	if e.Payload != nil {
		payload := make([]byte, len(e.Payload))
		copy(payload, e.Payload)
		e.Payload = payload
	}
	return e
}

var _ domain.EventRepository = (*EventRepository)(nil)
