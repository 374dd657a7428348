// Package iris is a Go client for the IRIS agent marketplace REST API.
package iris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the IRIS REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// LogEntry is a single timeline row of an archived submission.
type LogEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status string `json:"status"`
}

// Log is an archived timeline.
type Log struct {
	ID        string     `json:"id"`
	Logs      []LogEntry `json:"logs"`
	Wallet    string     `json:"wallet"`
	Timestamp time.Time  `json:"timestamp"`
}

// LogQuery filters and paginates archived timelines.
type LogQuery struct {
	Wallet string
	Limit  int
	Offset int
}

// Agent is a registered marketplace agent.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address,omitempty"`
}

// WalletSnapshot contains the on-chain view of a connected wallet.
type WalletSnapshot struct {
	Address     string   `json:"address"`
	Chain       string   `json:"chain,omitempty"`
	ChainID     *big.Int `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	Balance     *big.Int `json:"balance"`
	Nonce       uint64   `json:"nonce"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("iris api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("iris api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the IRIS API. When httpClient is nil, a
// default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// ListLogs returns archived timelines, newest first.
func (c *Client) ListLogs(ctx context.Context, query LogQuery) ([]Log, error) {
	params := url.Values{}
	if query.Wallet != "" {
		params.Set("wallet", query.Wallet)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	var logs []Log
	if err := c.get(ctx, "/api/v1/logs", params, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetLog fetches a single archived timeline.
func (c *Client) GetLog(ctx context.Context, id string) (Log, error) {
	var log Log
	if err := c.get(ctx, "/api/v1/logs/"+url.PathEscape(id), nil, &log); err != nil {
		return Log{}, err
	}
	return log, nil
}

// ListAgents returns registered agents whose name contains search (case-insensitive).
func (c *Client) ListAgents(ctx context.Context, search string) ([]Agent, error) {
	params := url.Values{}
	if search != "" {
		params.Set("q", search)
	}
	var agents []Agent
	if err := c.get(ctx, "/api/v1/agents", params, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// GetAgent fetches an agent by id.
func (c *Client) GetAgent(ctx context.Context, id string) (Agent, error) {
	var agent Agent
	if err := c.get(ctx, "/api/v1/agents/"+url.PathEscape(id), nil, &agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// Wallet returns chain id, balance and nonce of address.
func (c *Client) Wallet(ctx context.Context, address string) (WalletSnapshot, error) {
	var snapshot WalletSnapshot
	if err := c.get(ctx, "/api/v1/wallets/"+url.PathEscape(address), nil, &snapshot); err != nil {
		return WalletSnapshot{}, err
	}
	return snapshot, nil
}

// Health checks that the daemon is serving requests.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
