package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_UnconfiguredReportsErrNotConfigured(t *testing.T) {
	c := NewClient("https://api.example.com", "")
	_, err := c.CreatePhoneCall(context.Background(), PhoneCallRequest{AgentID: "a", PhoneNumber: "+15550001111"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_CreatePhoneCall(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody PhoneCallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(Call{CallID: "prov_1", AgentID: gotBody.AgentID, CallStatus: "registered"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	call, err := c.CreatePhoneCall(context.Background(), PhoneCallRequest{
		AgentID:     "agent_1",
		PhoneNumber: "+15550001111",
		Metadata:    map[string]string{"load_number": "LD-1"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if call.CallID != "prov_1" {
		t.Fatalf("expected provider call id, got %q", call.CallID)
	}
	if gotAuth != "Bearer key_test" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotPath != "/v2/create-phone-call" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.Metadata["load_number"] != "LD-1" {
		t.Fatalf("expected metadata relay, got %v", gotBody.Metadata)
	}
}

func TestClient_GetCallNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	_, err := c.GetCall(context.Background(), "missing")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestClient_NonSuccessIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"downstream"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	err := c.EndCall(context.Background(), "prov_1")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", ue.StatusCode)
	}
}

func TestClient_CreateWebCallRelaysAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/create-web-call" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(WebCall{
			CallID:      "web_1",
			AgentID:     "agent_1",
			AccessToken: "tok_abc",
			CallStatus:  "registered",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	wc, err := c.CreateWebCall(context.Background(), WebCallRequest{AgentID: "agent_1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if wc.AccessToken != "tok_abc" {
		t.Fatalf("expected access token relay, got %q", wc.AccessToken)
	}
}
