package timeline

import (
	stdErrors "errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func started(id string) Started {
	return Started{Original: "find me a flight", Agent: Agent{ID: id, Name: "Agent " + id, Description: "desc " + id}}
}

func finished(id string) Finished {
	return Finished{Agent: Agent{ID: id, Name: "Agent " + id, Description: "done " + id}}
}

func mustApply(t *testing.T, tl *Timeline, events ...Event) {
	t.Helper()
	for _, ev := range events {
		if err := tl.Apply(ev); err != nil {
			t.Fatalf("apply %T: %v", ev, err)
		}
	}
}

func TestStartedEventsKeepInputFirst(t *testing.T) {
	tl := New()
	ids := []string{"a", "b", "c", "b", "a"}
	for _, id := range ids {
		mustApply(t, tl, started(id))
	}

	entries := tl.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected input + 3 agents, got %d: %+v", len(entries), entries)
	}
	if entries[0].ID != InputID || entries[0].Title != InputTitle || entries[0].Status != StatusFinished {
		t.Fatalf("unexpected input entry %+v", entries[0])
	}
	if entries[0].Detail != "find me a flight" {
		t.Fatalf("unexpected input detail %q", entries[0].Detail)
	}
	for i, want := range []string{"a", "b", "c"} {
		got := entries[i+1]
		if got.ID != want || got.Status != StatusInProgress || got.Title != "Agent "+want {
			t.Fatalf("entry %d: unexpected %+v", i+1, got)
		}
	}
	if tl.State() != StateCollecting {
		t.Fatalf("unexpected state %s", tl.State())
	}
}

func TestInputDetailFallsBackToInput(t *testing.T) {
	tl := New()
	mustApply(t, tl, Started{Input: "raw input", Agent: Agent{ID: "a", Name: "A", Description: "d"}})
	if got := tl.Entries()[0].Detail; got != "raw input" {
		t.Fatalf("unexpected detail %q", got)
	}

	tl.Reset()
	mustApply(t, tl, Started{Agent: Agent{ID: "a", Name: "A", Description: "d"}})
	if got := tl.Entries()[0].Detail; got != "" {
		t.Fatalf("expected empty detail, got %q", got)
	}
}

func TestFinishedIsIdempotent(t *testing.T) {
	once := New()
	mustApply(t, once, started("a"), finished("a"))

	twice := New()
	mustApply(t, twice, started("a"), finished("a"), finished("a"))

	if !reflect.DeepEqual(once.Entries(), twice.Entries()) {
		t.Fatalf("replay changed timeline:\n%+v\n%+v", once.Entries(), twice.Entries())
	}
}

func TestDuplicateResponseIsIgnored(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("a"), Response{Data: "done"}, Response{Data: "done"})

	count := 0
	for _, entry := range tl.Entries() {
		if entry.ID == ResponseID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one response entry, got %d", count)
	}
}

func TestCanonicalSequence(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("A"), finished("A"), Response{Data: "done"})

	want := []Entry{
		{ID: InputID, Title: InputTitle, Detail: "find me a flight", Status: StatusFinished},
		{ID: "A", Title: "Agent A", Detail: "done A", Status: StatusFinished},
		{ID: ResponseID, Title: ResponseTitle, Detail: "done", Status: StatusResponse},
	}
	if got := tl.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected timeline:\n got %+v\nwant %+v", got, want)
	}
	if tl.State() != StateComplete {
		t.Fatalf("expected complete, got %s", tl.State())
	}
	if resp, ok := tl.Response(); !ok || resp != "done" {
		t.Fatalf("unexpected response %q %v", resp, ok)
	}
}

func TestFinishedWithoutStartInsertsAgentOnly(t *testing.T) {
	tl := New()
	mustApply(t, tl, finished("B"))

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected a single entry, got %+v", entries)
	}
	if entries[0].ID != "B" || entries[0].Status != StatusFinished {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestFinishedUpdatesInPlace(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("a"), started("b"), finished("a"))

	entries := tl.Entries()
	if entries[1].ID != "a" || entries[1].Status != StatusFinished || entries[1].Detail != "done a" {
		t.Fatalf("expected a updated in place, got %+v", entries[1])
	}
	if entries[2].ID != "b" || entries[2].Status != StatusInProgress {
		t.Fatalf("expected b untouched, got %+v", entries[2])
	}
}

func TestMalformedMessageLeavesTimelineUnchanged(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("a"))
	before := tl.Entries()

	for _, raw := range []string{"not json", `{"type":"progress_started","data":{"current_agent":{"id":"x"}}}`} {
		ev, err := ParseEvent([]byte(raw))
		if err == nil {
			_ = tl.Apply(ev)
			t.Fatalf("expected parse error for %q", raw)
		}
	}
	if !reflect.DeepEqual(before, tl.Entries()) {
		t.Fatalf("timeline mutated by malformed message")
	}
}

func TestCompleteTimelineRejectsMutation(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("a"), Response{Data: "done"})
	before := tl.Entries()

	for _, ev := range []Event{started("z"), finished("a"), Response{Data: "other"}} {
		if err := tl.Apply(ev); !stdErrors.Is(err, ErrTimelineComplete) {
			t.Fatalf("apply %T: expected ErrTimelineComplete, got %v", ev, err)
		}
	}
	if !reflect.DeepEqual(before, tl.Entries()) {
		t.Fatalf("complete timeline mutated")
	}
}

func TestResetStartsFresh(t *testing.T) {
	tl := New()
	mustApply(t, tl, started("a"), Response{Data: "done"})
	tl.Reset()

	if tl.State() != StateEmpty || tl.Len() != 0 {
		t.Fatalf("expected empty timeline after reset, got %s with %d entries", tl.State(), tl.Len())
	}
	mustApply(t, tl, started("b"))
	if entries := tl.Entries(); entries[1].ID != "b" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestMarkStale(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	tl := New(WithClock(func() time.Time { return now }))

	mustApply(t, tl, started("a"))
	now = base.Add(30 * time.Second)
	mustApply(t, tl, started("b"))

	if marked := tl.MarkStale(base.Add(45*time.Second), 0); marked != nil {
		t.Fatalf("zero timeout must disable the sweep, got %v", marked)
	}
	marked := tl.MarkStale(base.Add(45*time.Second), 40*time.Second)
	if fmt.Sprint(marked) != "[a]" {
		t.Fatalf("unexpected stale agents %v", marked)
	}
	entries := tl.Entries()
	if entries[1].Status != StatusFailure || entries[2].Status != StatusInProgress {
		t.Fatalf("unexpected statuses %+v", entries)
	}
	if entries[0].Status != StatusFinished {
		t.Fatalf("input entry must never be marked stale")
	}

	// 迟到的 finished 仍然可以覆盖 failure。
	mustApply(t, tl, finished("a"))
	if tl.Entries()[1].Status != StatusFinished {
		t.Fatal("expected late finish to win")
	}
}
