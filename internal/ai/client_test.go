package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

func testClient(url string) *Client {
	c := NewClient("test-key", url, "")
	c.backoffMin = time.Millisecond
	c.backoffMax = 2 * time.Millisecond
	return c
}

func TestChat_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"direction\":\"long\"}"}}]}`))
	}))
	defer srv.Close()

	content, err := testClient(srv.URL).Chat(context.Background(), "sys", "user", 800)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if content != `{"direction":"long"}` {
		t.Errorf("content = %q", content)
	}
}

func TestChat_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	content, err := testClient(srv.URL).Chat(context.Background(), "sys", "user", 100)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if content != "ok" {
		t.Errorf("content = %q", content)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestChat_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), "sys", "user", 100)
	if !errors.Is(err, domain.ErrAdvisoryFailed) {
		t.Fatalf("error = %v, want ErrAdvisoryFailed", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestChat_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), "sys", "user", 100)
	if err == nil {
		t.Fatal("want error on 401")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Chat(context.Background(), "sys", "user", 100); err == nil {
		t.Fatal("want error on empty choices")
	}
}
