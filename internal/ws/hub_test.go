package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	wsHub "github.com/watchpost/watchpost/internal/ws"
)

const testInterval = 20 * time.Millisecond

// statusStub is a mutable status source for the hub.
type statusStub struct {
	mu sync.Mutex
	v  map[string]interface{}
}

func (s *statusStub) set(key string, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == nil {
		s.v = map[string]interface{}{}
	}
	s.v[key] = val
}

func (s *statusStub) get() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]interface{}{}
	for k, v := range s.v {
		out[k] = v
	}
	return out
}

// startHub starts a test HTTP server with the hub as its handler and the
// hub's Run loop under a cancellable context.
func startHub(t *testing.T, status *statusStub) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(status.get, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestHub_Connect_ReceivesImmediateStatus(t *testing.T) {
	status := &statusStub{}
	status.set("queue_depth", 3)
	wsURL, _, _ := startHub(t, status)

	conn := dial(t, wsURL)
	m := readMessage(t, conn)

	if m["event"] != "status" {
		t.Errorf("event: got %v, want status", m["event"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["queue_depth"] != float64(3) {
		t.Errorf("queue_depth: got %v, want 3", data["queue_depth"])
	}
}

func TestHub_TickBroadcastCarriesFreshStatus(t *testing.T) {
	status := &statusStub{}
	status.set("targets", 0)
	wsURL, _, _ := startHub(t, status)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume the immediate frame

	status.set("targets", 5)

	// Keep reading ticks until the new value shows up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		data := m["data"].(map[string]interface{})
		if data["targets"] == float64(5) {
			return
		}
	}
	t.Error("tick broadcast never carried the updated status")
}

func TestHub_CountTracksConnects(t *testing.T) {
	wsURL, hub, _ := startHub(t, &statusStub{})

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn)
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, &statusStub{})

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, &statusStub{})

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_DisconnectDuringBroadcastDoesNotPanic(t *testing.T) {
	status := &statusStub{}
	status.set("targets", 1)

	// A very fast ticker keeps broadcasts overlapping the disconnects below.
	hub := wsHub.New(status.get, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()
	go hub.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	// Churn batches of clients: connect, then close all of them at once while
	// the ticker is mid-broadcast. A close racing a broadcast send must not
	// bring the hub down.
	for round := 0; round < 20; round++ {
		conns := make([]*websocket.Conn, 0, 4)
		for i := 0; i < 4; i++ {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			conns = append(conns, conn)
		}
		var wg sync.WaitGroup
		for _, conn := range conns {
			wg.Add(1)
			go func(c *websocket.Conn) {
				defer wg.Done()
				c.Close()
			}(conn)
		}
		wg.Wait()
	}

	// The hub must still be serving.
	conn := dial(t, wsURL)
	readMessage(t, conn)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New((&statusStub{}).get, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
