package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultHeaders(t *testing.T) {
	var gotKey, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(
		WithProviderName("rpc"),
		WithHeaders(map[string]string{"X-Api-Key": "secret", "User-Agent": "gaswatch"}),
		WithRequestTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotKey != "secret" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	if gotUA != "custom" {
		t.Errorf("request header should win over default, got %q", gotUA)
	}
	if client.Timeout != time.Second {
		t.Errorf("Timeout = %s", client.Timeout)
	}
}

func TestNew_CustomRoundTripper(t *testing.T) {
	called := false
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})

	client, err := New(WithRoundTripper(rt))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Get("http://rpc.invalid/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if !called {
		t.Error("custom round tripper was not used")
	}
	if client.Timeout != defaultRequestTimeout {
		t.Errorf("Timeout = %s, want default", client.Timeout)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
