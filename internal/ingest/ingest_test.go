package ingest

import (
	"context"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/timeline"
)

const (
	startedA  = `{"type":"progress_started","data":{"original":"weather in Lisbon","current_agent":{"id":"0xA","name":"Weather Oracle","description":"forecasts"}}}`
	finishedA = `{"type":"progress_finished","data":{"current_agent":{"id":"0xA","name":"Weather Oracle","description":"forecasts"}}}`
	response  = `{"type":"response","data":"sunny, 24C"}`
)

func newEventServer(t *testing.T, frames []string, closeEarly bool) (string, <-chan Envelope) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	received := make(chan Envelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		received <- env

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if closeEarly {
			return
		}
		// 等待客户端关闭连接。
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func collect(t *testing.T, stream *Stream) []timeline.Event {
	t.Helper()
	var events []timeline.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to finish")
		}
	}
}

func TestWebsocketSubmitStopsAfterResponse(t *testing.T) {
	url, received := newEventServer(t, []string{startedA, "not json", finishedA, response, startedA}, false)

	ing, err := NewWebsocketIngestor(url, WithHandshakeTimeout(2*time.Second), WithHeader("Origin", "http://localhost"))
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	stream, err := ing.Submit(context.Background(), "weather in Lisbon", "0xabc")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	env := <-received
	if env.Input != "weather in Lisbon" || env.Wallet != "0xabc" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	events := collect(t, stream)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %#v", len(events), events)
	}
	wantTypes := []timeline.EventType{timeline.EventProgressStarted, timeline.EventProgressFinished, timeline.EventResponse}
	for i, want := range wantTypes {
		if events[i].Type() != want {
			t.Fatalf("event %d: got %s want %s", i, events[i].Type(), want)
		}
	}
	if stream.Dropped() != 1 {
		t.Fatalf("expected one dropped frame, got %d", stream.Dropped())
	}
	if stream.Err() != nil {
		t.Fatalf("unexpected stream error: %v", stream.Err())
	}
	select {
	case <-stream.Done():
	default:
		t.Fatal("stream must be closed after response")
	}
	if err := stream.Close(); err != stream.Close() {
		t.Fatal("close must be idempotent")
	}
}

func TestWebsocketClosedBeforeResponse(t *testing.T) {
	url, _ := newEventServer(t, []string{startedA}, true)

	ing, err := NewWebsocketIngestor(url)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	stream, err := ing.Submit(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	events := collect(t, stream)
	if len(events) != 1 {
		t.Fatalf("expected the started event only, got %d", len(events))
	}
	if xerrors.CodeOf(stream.Err()) != xerrors.CodeTransportFailure {
		t.Fatalf("expected transport failure, got %v", stream.Err())
	}
}

func TestWebsocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ing, err := NewWebsocketIngestor(url, WithHandshakeTimeout(time.Second))
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	stream, err := ing.Submit(context.Background(), "hello", "")
	if stream != nil {
		t.Fatal("no stream expected on dial failure")
	}
	if xerrors.CodeOf(err) != xerrors.CodeTransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	ing, err := NewWebsocketIngestor("ws://127.0.0.1:1/ws")
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	if _, err := ing.Submit(context.Background(), "   ", "0xabc"); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := NewWebsocketIngestor(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestReplayIngestor(t *testing.T) {
	replay := NewReplayIngestor(startedA, `{"type":"progress_finished","data":{}}`, finishedA, response, startedA)

	stream, err := replay.Submit(context.Background(), "weather in Lisbon", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	events := collect(t, stream)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if resp, ok := events[2].(timeline.Response); !ok || resp.Data != "sunny, 24C" {
		t.Fatalf("unexpected terminal event %#v", events[2])
	}
	if stream.Dropped() != 1 || stream.Err() != nil {
		t.Fatalf("unexpected stream state dropped=%d err=%v", stream.Dropped(), stream.Err())
	}

	subs := replay.Submissions()
	if len(subs) != 1 || subs[0].Input != "weather in Lisbon" || subs[0].Wallet != "" {
		t.Fatalf("unexpected submissions %+v", subs)
	}
}

func TestReplayExhaustedWithoutResponse(t *testing.T) {
	stream, err := NewReplayIngestor(startedA).Submit(context.Background(), "x", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	collect(t, stream)
	if xerrors.CodeOf(stream.Err()) != xerrors.CodeTransportFailure {
		t.Fatalf("expected transport failure, got %v", stream.Err())
	}
}

func TestReplayDialFailure(t *testing.T) {
	boom := xerrors.New(xerrors.CodeTransportFailure, "refused")
	_, err := NewReplayIngestor(startedA).FailWith(boom).Submit(context.Background(), "x", "")
	if !stdErrors.Is(err, boom) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestCancelContextClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewReplayIngestor(startedA, finishedA).Submit(ctx, "x", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-stream.Events()
	cancel()

	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
	for range stream.Events() {
	}
	if stream.Err() != nil {
		t.Fatalf("cancellation is not a transport failure: %v", stream.Err())
	}
}
