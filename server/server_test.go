package server

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cryptomon/config"
)

func TestWebSocketSessionReleasesGoroutines(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	hub := newTestHub()
	srv := NewServer(cfg, hub)
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter failed: %v", err)
	}

	ts := httptest.NewServer(router)
	defer ts.Close()

	base := runtime.NumGoroutine()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("snapshot read failed: %v", err)
		}
		conn.Close()
	}

	// The session handler and its pinger must exit once the client is
	// gone, well before the first ping would fire.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 0 && runtime.NumGoroutine() <= base+3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session goroutines did not settle: base=%d now=%d clients=%d",
		base, runtime.NumGoroutine(), hub.ClientCount())
}

func TestHealthzReportsClients(t *testing.T) {
	cfg := &config.Config{}
	hub := newTestHub()
	srv := NewServer(cfg, hub)
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter failed: %v", err)
	}

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
