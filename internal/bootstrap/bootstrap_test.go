package bootstrap

import (
	"context"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"IRIS-Agents/internal/archive"
	"IRIS-Agents/internal/config"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/observability/alerting"
	"IRIS-Agents/internal/timeline"
)

func TestMemoryComponents(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Registry.SeedPath = filepath.Join("..", "..", "configs", "agents.yaml")
	ctx := context.Background()

	if err := Prepare(cfg); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	store, err := OpenArchiveStore(ctx, cfg)
	if err != nil {
		t.Fatalf("archive store: %v", err)
	}
	defer store.Close()

	queue, err := OpenArchiveQueue(ctx, cfg)
	if err != nil {
		t.Fatalf("archive queue: %v", err)
	}
	if _, ok := NewArchiver(store, queue).(*archive.Dispatcher); !ok {
		t.Fatal("memory queue should use the async dispatcher")
	}

	reg, err := OpenRegistry(ctx, cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer reg.Close()
	agents, err := reg.Store.List(ctx)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("expected seeded agents, got %d", len(agents))
	}

	if _, err := NewIngestor(cfg); err != nil {
		t.Fatalf("ingestor: %v", err)
	}
}

func TestNewAlerterPostsToWebhook(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default(t.TempDir())
	if err := NewAlerter(cfg).Notify(context.Background(), alerting.Event{Code: archive.CodeArchiveFailure, Message: "lost"}); err != nil {
		t.Fatalf("log-only alerter: %v", err)
	}
	cfg.Archive.AlertWebhook = srv.URL
	if err := NewAlerter(cfg).Notify(context.Background(), alerting.Event{Code: archive.CodeArchiveFailure, Message: "lost"}); err != nil {
		t.Fatalf("webhook alerter: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one webhook call, got %d", hits.Load())
	}
}

func TestDirectQueueWritesSynchronously(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Archive.Queue.Driver = DriverDirect
	ctx := context.Background()

	store, err := OpenArchiveStore(ctx, cfg)
	if err != nil {
		t.Fatalf("archive store: %v", err)
	}
	queue, err := OpenArchiveQueue(ctx, cfg)
	if err != nil || queue != nil {
		t.Fatalf("direct driver should not open a queue: %v %v", queue, err)
	}

	entries := []timeline.Entry{{ID: timeline.ResponseID, Title: timeline.ResponseTitle, Detail: "ok", Status: timeline.StatusResponse}}
	if err := NewArchiver(store, queue).Archive(ctx, archive.NewRecord(entries, "", time.Now())); err != nil {
		t.Fatalf("archive: %v", err)
	}
	records, _ := store.List(ctx, archive.ListOptions{})
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
}

func TestUnsupportedDrivers(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default(t.TempDir())
	cfg.Archive.Store.Driver = "mongo"
	cfg.Archive.Queue.Driver = "kafka"
	cfg.Registry.Store.Driver = "etcd"

	if _, err := OpenArchiveStore(ctx, cfg); !stdErrors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected unsupported store driver, got %v", err)
	}
	if _, err := OpenArchiveQueue(ctx, cfg); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected unsupported queue driver, got %v", err)
	}
	if _, err := OpenRegistry(ctx, cfg); !stdErrors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected unsupported registry driver, got %v", err)
	}
}

func TestSharedQueue(t *testing.T) {
	cfg := config.Default(t.TempDir())
	for driver, want := range map[string]bool{
		"":             false,
		DriverMemory:   false,
		DriverDirect:   false,
		"Redis":        true,
		DriverRabbitMQ: true,
	} {
		cfg.Archive.Queue.Driver = driver
		if got := SharedQueue(cfg); got != want {
			t.Fatalf("driver %q: expected %v, got %v", driver, want, got)
		}
	}
}
