package archive

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/timeline"
)

func sampleEntries(response string) []timeline.Entry {
	return []timeline.Entry{
		{ID: timeline.InputID, Title: timeline.InputTitle, Detail: "weather in Lisbon", Status: timeline.StatusFinished},
		{ID: "0xA", Title: "Weather Oracle", Detail: "forecasts", Status: timeline.StatusFinished},
		{ID: timeline.ResponseID, Title: timeline.ResponseTitle, Detail: response, Status: timeline.StatusResponse},
	}
}

func TestMemoryStoreSaveListGet(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStore("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	wallets := []string{"0xAbC", "0xdef", "0xabc"}
	for i, wallet := range wallets {
		record := NewRecord(sampleEntries("r"+string(rune('0'+i))), wallet, base.Add(time.Duration(i)*time.Minute))
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("save: %v", err)
		}
		if record.ID == "" {
			t.Fatal("expected id to be assigned")
		}
	}

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Logs[2].Detail != "r2" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	mine, err := store.List(ctx, ListOptions{Wallet: "0xABC"})
	if err != nil {
		t.Fatalf("list by wallet: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 records for wallet, got %d", len(mine))
	}

	page, err := store.List(ctx, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(page) != 1 || page[0].Logs[2].Detail != "r1" {
		t.Fatalf("unexpected page %+v", page)
	}

	got, err := store.Get(ctx, all[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Logs[0].Detail = "mutated"
	again, _ := store.Get(ctx, all[1].ID)
	if again.Logs[0].Detail != "weather in Lisbon" {
		t.Fatal("store must hand out copies")
	}

	if _, err := store.Get(ctx, "missing"); !stdErrors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStorePersistsJSONL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewMemoryStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	record := NewRecord(sampleEntries("done"), "0xabc", time.Now())
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := NewMemoryStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if len(got.Logs) != 3 || got.Logs[2].Status != timeline.StatusResponse {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.Timestamp.Equal(record.Timestamp) {
		t.Fatalf("timestamp changed: %s vs %s", got.Timestamp, record.Timestamp)
	}
}

func TestMemoryStoreRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	store, _ := NewMemoryStore("")
	ctx := context.Background()
	if err := store.Save(ctx, nil); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for nil record, got %v", err)
	}
	if err := store.Save(ctx, &Record{Wallet: "0xabc"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for empty logs, got %v", err)
	}

	record := NewRecord(sampleEntries("x"), "", time.Now())
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, record); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("documents are append-only, got %v", err)
	}
}

func TestMemoryStoresShareDataDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	reader, err := NewMemoryStore(dir)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	writer, err := NewMemoryStore(dir)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if records, _ := reader.List(ctx, ListOptions{}); len(records) != 0 {
		t.Fatalf("expected empty store, got %d", len(records))
	}

	first := NewRecord(sampleEntries("one"), "0xabc", time.Now())
	if err := writer.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	records, err := reader.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != first.ID {
		t.Fatalf("reader should see the record written by another store, got %+v", records)
	}

	second := NewRecord(sampleEntries("two"), "0xabc", time.Now().Add(time.Second))
	if err := reader.Save(ctx, second); err != nil {
		t.Fatalf("save from reader: %v", err)
	}
	if _, err := writer.Get(ctx, second.ID); err != nil {
		t.Fatalf("writer get: %v", err)
	}
	if records, _ := writer.List(ctx, ListOptions{}); len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if err := writer.Save(ctx, second); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("duplicate id across stores must be rejected, got %v", err)
	}
}
