package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestChat(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Compress images."}}]}`)
	}))
	defer srv.Close()

	c := New(Options{
		Endpoint:     srv.URL,
		APIKey:       "token-123",
		Model:        "small",
		MessageField: "prompt",
		ResponsePath: "choices.0.message.content",
	})

	reply, err := c.Chat(context.Background(), "metrics here")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "Compress images." {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["prompt"] != "metrics here" || gotBody["model"] != "small" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestChatDefaults(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"status":"success","response":"Fine."}`)
	}))
	defer srv.Close()

	reply, err := New(Options{Endpoint: srv.URL}).Chat(context.Background(), "p")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "Fine." {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "" {
		t.Errorf("no key configured, got Authorization %q", gotAuth)
	}
	if _, ok := gotBody["model"]; ok || gotBody["message"] != "p" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
		contains  string
	}{
		{"server error", http.StatusInternalServerError, "boom", false, "returned 500"},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, false, "429"},
		{"not json", http.StatusOK, "<html>hi</html>", true, "not JSON"},
		{"missing path", http.StatusOK, `{"other":"x"}`, true, `no value at "response"`},
		{"api error", http.StatusOK, `{"status":"error","error":"quota exceeded"}`, true, "quota exceeded"},
		{"wrong type", http.StatusOK, `{"response":{"text":"x"}}`, true, "not a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(Options{Endpoint: srv.URL}).Chat(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrMalformedResponse); got != tt.malformed {
				t.Errorf("errors.Is(ErrMalformedResponse) = %v, err = %v", got, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should contain %q", err, tt.contains)
			}
		})
	}
}

func TestChatHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := New(Options{Endpoint: srv.URL}).Chat(ctx, "p"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestAvailable(t *testing.T) {
	t.Run("no health url", func(t *testing.T) {
		ok, err := New(Options{Endpoint: "http://unused"}).Available(context.Background())
		if !ok || err != nil {
			t.Errorf("Available = %v, %v", ok, err)
		}
	})

	t.Run("becomes healthy", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		c := New(Options{Endpoint: srv.URL, HealthURL: srv.URL + "/health"})
		for i, want := range []bool{false, false, true} {
			ok, err := c.Available(context.Background())
			if err != nil {
				t.Fatalf("probe %d: %v", i, err)
			}
			if ok != want {
				t.Errorf("probe %d = %v, want %v", i, ok, want)
			}
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		ok, err := New(Options{Endpoint: url, HealthURL: url}).Available(context.Background())
		if ok || err == nil {
			t.Errorf("Available = %v, %v", ok, err)
		}
	})
}
