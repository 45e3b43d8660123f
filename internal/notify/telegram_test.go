package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testTelegram(t *testing.T, status int, capture *map[string]interface{}) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
			*capture = body
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	tg := NewTelegram("123456:TESTTOKEN")
	tg.baseURL = srv.URL
	return tg
}

func TestTelegram_Send(t *testing.T) {
	var got map[string]interface{}
	tg := testTelegram(t, http.StatusOK, &got)

	if err := tg.Send(context.Background(), 987651265, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["text"] != "hello" {
		t.Errorf("payload text: got %v, want hello", got["text"])
	}
	if got["chat_id"] != float64(987651265) {
		t.Errorf("payload chat_id: got %v, want 987651265", got["chat_id"])
	}
}

func TestTelegram_PermanentOn4xx(t *testing.T) {
	tg := testTelegram(t, http.StatusBadRequest, nil)

	err := tg.Send(context.Background(), 1, "x")
	if err == nil {
		t.Fatal("Send on 400: expected error")
	}
	if !IsPermanent(err) {
		t.Errorf("400 should be permanent, got %v", err)
	}
}

func TestTelegram_TransientOn429And5xx(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		tg := testTelegram(t, status, nil)
		err := tg.Send(context.Background(), 1, "x")
		if err == nil {
			t.Fatalf("Send on %d: expected error", status)
		}
		if IsPermanent(err) {
			t.Errorf("%d should be transient, got permanent: %v", status, err)
		}
	}
}

func TestTelegram_TokenNeverInError(t *testing.T) {
	// Point at a closed port so the transport fails with the URL in the error.
	tg := NewTelegram("123456:TESTTOKEN")
	tg.baseURL = "http://127.0.0.1:1"

	err := tg.Send(context.Background(), 1, "x")
	if err == nil {
		t.Fatal("Send to closed port: expected error")
	}
	if strings.Contains(err.Error(), "TESTTOKEN") {
		t.Errorf("error leaks bot token: %v", err)
	}
}

func TestWebhook_Classification(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, true},
		{http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		wh := NewWebhook(srv.URL)

		err := wh.Send(context.Background(), 7, "msg")
		switch {
		case c.status < 300 && err != nil:
			t.Errorf("status %d: unexpected error %v", c.status, err)
		case c.status >= 300 && err == nil:
			t.Errorf("status %d: expected error", c.status)
		case err != nil && IsPermanent(err) != c.permanent:
			t.Errorf("status %d: permanent = %v, want %v", c.status, IsPermanent(err), c.permanent)
		}
		srv.Close()
	}
}
