package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

func insertEvent(t *testing.T, repo domain.EventRepository, eventType domain.EventType, orderID string) domain.Event {
	t.Helper()

	event := domain.Event{
		ID:        uid.New(uid.PrefixEvent),
		Type:      eventType,
		Payload:   domain.OrderEventPayload{OrderID: orderID}.Encode(),
		Status:    domain.EventStatusPending,
		CreatedOn: time.Now().UTC(),
	}
	if err := repo.Insert(event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return event
}

func TestEventRepository_PostgresClaimFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	first := insertEvent(t, repo, domain.EventOrderProcessing, "ord_1")
	time.Sleep(5 * time.Millisecond)
	insertEvent(t, repo, domain.EventOrderProcessing, "ord_2")
	insertEvent(t, repo, domain.EventOrderFailed, "ord_3")

	// Старейшее событие среди подписанных типов захватывается первым.
	claimed, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
	if err != nil {
		t.Fatalf("claim next pending: %v", err)
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest event %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != domain.EventStatusProcessing {
		t.Fatalf("expected PROCESSING after claim, got %s", claimed.Status)
	}

	payload, err := domain.DecodeOrderEventPayload(claimed.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OrderID != "ord_1" {
		t.Fatalf("unexpected payload order id: %q", payload.OrderID)
	}

	if err := repo.MarkDelivered(claimed.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	second, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
	if err != nil {
		t.Fatalf("claim second: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Типы без подписки не выдаются.
	if _, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing}); !errors.Is(err, domain.ErrNoPendingEvents) {
		t.Fatalf("expected ErrNoPendingEvents, got %v", err)
	}
	if _, err := repo.ClaimNextPending(nil); !errors.Is(err, domain.ErrNoPendingEvents) {
		t.Fatalf("expected ErrNoPendingEvents for empty type list, got %v", err)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending (ORDER_FAILED), got %d", stats.PendingCount)
	}
	if stats.FailedCount != 1 {
		t.Fatalf("expected 1 failed, got %d", stats.FailedCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}
}

func TestEventRepository_PostgresMarkMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	if err := repo.MarkDelivered("evt_missing"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on mark delivered, got %v", err)
	}
	if err := repo.MarkFailed("evt_missing"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on mark failed, got %v", err)
	}

	// DELIVERED-событие повторно не переводится.
	event := insertEvent(t, repo, domain.EventOrderProcessing, "ord_1")
	claimed, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkDelivered(claimed.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := repo.MarkFailed(event.ID); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound for delivered event, got %v", err)
	}
}

func TestEventRepository_PostgresRequeueFailed(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	for i := 0; i < 3; i++ {
		insertEvent(t, repo, domain.EventOrderProcessing, "ord_1")
		claimed, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if err := repo.MarkFailed(claimed.ID); err != nil {
			t.Fatalf("mark failed %d: %v", i, err)
		}
	}

	requeued, err := repo.RequeueFailed(2)
	if err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if requeued != 2 {
		t.Fatalf("expected 2 requeued, got %d", requeued)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.FailedCount != 1 {
		t.Fatalf("unexpected stats after requeue: %+v", stats)
	}
}

// Сервисы публикуют события без отметки времени: репозиторий обязан
// проставить её сам, иначе порядок захвата и очистка по возрасту ломаются.
func TestEventRepository_PostgresInsertStampsCreatedOn(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	first := domain.Event{
		ID:      uid.New(uid.PrefixEvent),
		Type:    domain.EventOrderProcessing,
		Payload: domain.OrderEventPayload{OrderID: "ord_1"}.Encode(),
		Status:  domain.EventStatusPending,
	}
	if err := repo.Insert(first); err != nil {
		t.Fatalf("insert first: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second := domain.Event{
		ID:      uid.New(uid.PrefixEvent),
		Type:    domain.EventOrderProcessing,
		Payload: domain.OrderEventPayload{OrderID: "ord_2"}.Encode(),
		Status:  domain.EventStatusPending,
	}
	if err := repo.Insert(second); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	claimed, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected insertion order to survive, got %s before %s", claimed.ID, first.ID)
	}
	if claimed.CreatedOn.IsZero() {
		t.Fatal("expected created_on to be stamped on insert")
	}
	if age := time.Since(claimed.CreatedOn); age < 0 || age > time.Minute {
		t.Fatalf("unexpected created_on age: %s", age)
	}

	// Свежие доставленные события не подпадают под очистку по возрасту.
	if err := repo.MarkDelivered(claimed.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	purged, err := repo.PurgeDelivered(time.Now().UTC().Add(-time.Hour), 500)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expected no events purged, got %d", purged)
	}
}

func TestEventRepository_PostgresPurgeDelivered(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	for i := 0; i < 2; i++ {
		insertEvent(t, repo, domain.EventOrderProcessing, "ord_1")
		claimed, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if err := repo.MarkDelivered(claimed.ID); err != nil {
			t.Fatalf("mark delivered %d: %v", i, err)
		}
	}
	pending := insertEvent(t, repo, domain.EventOrderProcessing, "ord_2")

	purged, err := repo.PurgeDelivered(time.Now().UTC().Add(time.Minute), 500)
	if err != nil {
		t.Fatalf("purge delivered: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}

	// Недоставленные события очистка не трогает.
	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected pending event %s to survive, got stats %+v", pending.ID, stats)
	}

	purged, err = repo.PurgeDelivered(time.Now().UTC().Add(time.Minute), 500)
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expected empty purge, got %d", purged)
	}
}

func TestEventRepository_PostgresConcurrentClaim(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	const total = 10
	for i := 0; i < total; i++ {
		insertEvent(t, repo, domain.EventOrderProcessing, "ord_1")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = make(map[string]int)
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				event, err := repo.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
				if errors.Is(err, domain.ErrNoPendingEvents) {
					return
				}
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				mu.Lock()
				claimed[event.ID]++
				mu.Unlock()
				if err := repo.MarkDelivered(event.ID); err != nil {
					t.Errorf("mark delivered: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if len(claimed) != total {
		t.Fatalf("expected %d distinct claimed events, got %d", total, len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("event %s claimed %d times", id, count)
		}
	}
}
