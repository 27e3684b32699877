package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// Инструмент ручной переобработки: возвращает FAILED-события конвейера в
// очередь. Автоматических повторов сервис не делает, это единственный путь.
func main() {
	var (
		dsn    string
		limit  int
		dryRun bool
	)

	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: SCOMS_POSTGRES_DSN)")
	flag.IntVar(&limit, "limit", 100, "maximum number of events to requeue")
	flag.BoolVar(&dryRun, "dry-run", false, "only report backlog, do not requeue")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("SCOMS_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("SCOMS_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	events := postgres.NewEventRepository(store)

	stats, err := events.Stats()
	if err != nil {
		fail("collect pipeline stats: %v", err)
	}
	fmt.Printf("backlog: pending=%d failed=%d\n", stats.PendingCount, stats.FailedCount)

	if dryRun {
		return
	}
	if stats.FailedCount == 0 {
		fmt.Println("nothing to requeue")
		return
	}

	requeued, err := events.RequeueFailed(limit)
	if err != nil {
		fail("requeue failed events: %v", err)
	}
	fmt.Printf("requeued %d event(s)\n", requeued)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
