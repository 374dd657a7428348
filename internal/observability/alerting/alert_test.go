package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	xerrors "IRIS-Agents/internal/errors"
)

type recordingNotifier struct {
	events []Event
}

func (r *recordingNotifier) Channel() Channel { return "test" }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return nil
}

func TestFanoutFillsDefaults(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewFanout(rec, nil, LogNotifier{})

	err := d.Notify(context.Background(), Event{
		Code:     xerrors.CodeStorageFailure,
		Message:  "timeline dropped",
		Source:   "archive",
		Metadata: map[string]string{"wallet": "0xabc"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	got := rec.events[0]
	if got.OccurredAt.IsZero() || got.Severity != xerrors.SeverityCritical {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if !strings.Contains(got.Summary(), "wallet=0xabc") {
		t.Fatalf("summary missing metadata: %s", got.Summary())
	}
}

func TestWebhookNotifier(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	err := n.Notify(context.Background(), Event{Code: "ARCHIVE_FAILURE", Message: "lost", Source: "archive", Subject: "rec-1", Attempts: 3, MaxAttempts: 3})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if payload.Subject != "rec-1" || !strings.Contains(payload.Text, "重试 3/3") {
		t.Fatalf("unexpected payload %+v", payload)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	n = &WebhookNotifier{URL: failing.URL}
	if err := n.Notify(context.Background(), Event{Code: "X"}); xerrors.CodeOf(err) != xerrors.CodeTransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}
}
