package iris

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListLogsEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/logs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("wallet") != "0xabc" || q.Get("limit") != "5" || q.Get("offset") != "" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]Log{{
			ID:        "log-1",
			Wallet:    "0xabc",
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Logs:      []LogEntry{{ID: "response", Title: "Response", Detail: "ok", Status: "response"}},
		}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	logs, err := client.ListLogs(context.Background(), LogQuery{Wallet: "0xabc", Limit: 5})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Logs[0].Detail != "ok" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestAgentsAndWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/iris/api/v1/agents":
			if r.URL.Query().Get("q") != "oracle" {
				t.Errorf("unexpected search %q", r.URL.Query().Get("q"))
			}
			_ = json.NewEncoder(w).Encode([]Agent{{ID: "weather-oracle", Name: "Weather Oracle"}})
		case "/iris/api/v1/wallets/0xabc":
			_, _ = w.Write([]byte(`{"address":"0xabc","chain_id":1337,"balance":1000000000000000000000,"nonce":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/iris", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	agents, err := client.ListAgents(context.Background(), "oracle")
	if err != nil || len(agents) != 1 {
		t.Fatalf("list agents: %v %+v", err, agents)
	}

	snapshot, err := client.Wallet(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if snapshot.ChainID.Int64() != 1337 || snapshot.Balance.String() != "1000000000000000000000" || snapshot.Nonce != 2 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestAPIErrorsAreDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"AGENT_NOT_FOUND","message":"agent not found"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.GetAgent(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "AGENT_NOT_FOUND" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}

	if _, err := NewClient("not a url", nil); err == nil {
		t.Fatal("expected invalid base url error")
	}
}
