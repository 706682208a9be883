package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the hosted voice-AI provider's REST API.
//
// Rules:
// - No provider calls outside this package.
// - No retries; callers surface failures to the operator.
// - A missing API key is a configuration error, reported at call time so
//   the admin surface stays usable without provider credentials.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// ErrNotConfigured indicates the provider API key is missing.
var ErrNotConfigured = fmt.Errorf("voice provider not configured")

// UpstreamError is a non-success response from the provider.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("voice: %s: provider returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// ErrCallNotFound indicates the provider does not know the call id.
var ErrCallNotFound = fmt.Errorf("voice: call not found at provider")

const requestTimeout = 30 * time.Second

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// Agent is the provider-side view of a published agent.
type Agent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	VoiceID   string `json:"voice_id,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

type CreateAgentRequest struct {
	AgentName string `json:"agent_name"`
	VoiceID   string `json:"voice_id,omitempty"`
	Prompt    string `json:"prompt"`
}

// Call is the provider-side view of a call.
type Call struct {
	CallID          string            `json:"call_id"`
	AgentID         string            `json:"agent_id"`
	CallStatus      string            `json:"call_status"`
	Transcript      string            `json:"transcript,omitempty"`
	DurationSeconds *int              `json:"duration_seconds,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type PhoneCallRequest struct {
	AgentID     string            `json:"agent_id"`
	PhoneNumber string            `json:"phone_number"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// WebCall carries the browser-join access token. This service only relays
// the token; the client-side SDK consumes it.
type WebCall struct {
	CallID      string `json:"call_id"`
	AgentID     string `json:"agent_id"`
	AccessToken string `json:"access_token"`
	CallStatus  string `json:"call_status"`
}

type WebCallRequest struct {
	AgentID  string            `json:"agent_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, http.MethodGet, "/list-agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodGet, "/get-agent/"+url.PathEscape(agentID), nil, &out)
	return out, err
}

// CreateAgent publishes an agent definition and returns the provider's
// assigned agent id.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodPost, "/create-agent", req, &out)
	return out, err
}

// CreatePhoneCall asks the provider to place an outbound phone call.
func (c *Client) CreatePhoneCall(ctx context.Context, req PhoneCallRequest) (Call, error) {
	var out Call
	err := c.do(ctx, http.MethodPost, "/v2/create-phone-call", req, &out)
	return out, err
}

// CreateWebCall creates a browser call session and returns its access token.
func (c *Client) CreateWebCall(ctx context.Context, req WebCallRequest) (WebCall, error) {
	var out WebCall
	err := c.do(ctx, http.MethodPost, "/v2/create-web-call", req, &out)
	return out, err
}

// GetCall fetches the live provider-side state of a call.
func (c *Client) GetCall(ctx context.Context, providerCallID string) (Call, error) {
	var out Call
	err := c.do(ctx, http.MethodGet, "/v2/get-call/"+url.PathEscape(providerCallID), nil, &out)
	return out, err
}

// EndCall terminates an active call at the provider.
func (c *Client) EndCall(ctx context.Context, providerCallID string) error {
	return c.do(ctx, http.MethodPost, "/v2/end-call/"+url.PathEscape(providerCallID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("voice: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("voice: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return ErrCallNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Op: method + " " + path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("voice: decode response: %w", err)
	}
	return nil
}
