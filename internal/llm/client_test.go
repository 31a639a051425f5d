package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + jsonString(content) + `}}]}`
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\n':
			out += `\n`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, WithSleeper(func(time.Duration) {}))
}

func TestCompleteReturnsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(completionBody(`[{"start": 10, "end": 50}]`)))
	})

	content, err := client.Complete(context.Background(), "test/model", "system", "user")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if content != `[{"start": 10, "end": 50}]` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody("ok")))
	})

	content, err := client.Complete(context.Background(), "test/model", "", "user")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if content != "ok" {
		t.Fatalf("content = %q", content)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	if _, err := client.Complete(context.Background(), "test/model", "", "user"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteRequiresInputs(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, err := client.Complete(context.Background(), "", "", "user"); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if _, err := client.Complete(context.Background(), "m", "", ""); err == nil {
		t.Fatalf("expected error for missing prompt")
	}
	unkeyed := NewClient(Config{})
	if _, err := unkeyed.Complete(context.Background(), "m", "", "user"); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestDecodeJSONHandlesQuirks(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"plain", `[{"start":1,"end":2}]`},
		{"code fence", "```json\n[{\"start\":1,\"end\":2}]\n```"},
		{"surrounding prose", `Here are the highlights: [{"start":1,"end":2}] enjoy!`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []map[string]float64
			if err := DecodeJSON(tt.payload, &out); err != nil {
				t.Fatalf("DecodeJSON failed: %v", err)
			}
			if len(out) != 1 || out[0]["start"] != 1 {
				t.Fatalf("decoded = %v", out)
			}
		})
	}

	var out any
	if err := DecodeJSON("no json here", &out); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
}
