package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"cryptomon/models"
	"cryptomon/store"
)

// fakeConn records written frames and can be told to fail.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	failNext bool
	closed   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return errors.New("write failed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func newTestHub() *Hub {
	history := store.NewHistory([]string{"btcusdt", "ethusdt"}, 25, 30, 15)
	return NewHub(history)
}

func TestRegisterSendsSnapshot(t *testing.T) {
	hub := newTestHub()
	hub.history.AddTrade(models.TradeAlert{Symbol: "BTC", Type: "BUY", USDSize: "$20.0K"})

	conn := &fakeConn{}
	client, err := hub.Register(conn)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if client == nil {
		t.Fatal("Register returned nil client")
	}

	msgs := conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d messages", len(msgs))
	}

	var snapshot models.InitialData
	if err := json.Unmarshal(msgs[0], &snapshot); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if snapshot.Type != models.TypeInitialData {
		t.Errorf("Type = %q", snapshot.Type)
	}
	if len(snapshot.Trades) != 1 || snapshot.Trades[0].Symbol != "BTC" {
		t.Errorf("snapshot trades = %+v", snapshot.Trades)
	}
	if len(snapshot.FundingData) != 2 {
		t.Errorf("funding keys = %d, want 2", len(snapshot.FundingData))
	}
}

func TestBroadcastFanOut(t *testing.T) {
	hub := newTestHub()

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		if _, err := hub.Register(c); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	hub.Broadcast(models.NewTradeUpdate([]models.TradeAlert{{Symbol: "ETH", Type: "SELL"}}))

	for i, c := range conns {
		msgs := c.messages()
		// Snapshot plus broadcast.
		if len(msgs) != 2 {
			t.Errorf("conn %d received %d messages, want 2", i, len(msgs))
		}
	}
}

func TestBroadcastDropsFailedClientOnly(t *testing.T) {
	hub := newTestHub()

	healthy1 := &fakeConn{}
	failing := &fakeConn{}
	healthy2 := &fakeConn{}
	for _, c := range []*fakeConn{healthy1, failing, healthy2} {
		if _, err := hub.Register(c); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	failing.failNext = true
	hub.Broadcast(models.NewTradeUpdate(nil))

	if hub.ClientCount() != 2 {
		t.Fatalf("ClientCount = %d, want 2 after dropping failed client", hub.ClientCount())
	}
	if !failing.closed {
		t.Error("failed client connection was not closed")
	}

	hub.Broadcast(models.NewTradeUpdate(nil))
	if len(healthy1.messages()) != 3 || len(healthy2.messages()) != 3 {
		t.Errorf("healthy clients stopped receiving: %d / %d", len(healthy1.messages()), len(healthy2.messages()))
	}
}

func TestRegisterDoesNotMissConcurrentBroadcast(t *testing.T) {
	// A publish racing with a join must land either inside the initial
	// snapshot or as a delivered update; it can never fall between them.
	for i := 0; i < 200; i++ {
		history := store.NewHistory([]string{"btcusdt"}, 25, 30, 15)
		hub := NewHub(history)
		conn := &fakeConn{}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			trades := history.AddTrade(models.TradeAlert{Symbol: "BTC", Type: "BUY"})
			hub.Broadcast(models.NewTradeUpdate(trades))
		}()

		client, err := hub.Register(conn)
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		wg.Wait()

		seen := false
		for _, raw := range conn.messages() {
			var msg struct {
				Type   string              `json:"type"`
				Data   []models.TradeAlert `json:"data"`
				Trades []models.TradeAlert `json:"trades"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("invalid message: %v", err)
			}
			switch msg.Type {
			case models.TypeInitialData:
				if len(msg.Trades) == 1 {
					seen = true
				}
			case models.TypeTrade:
				if len(msg.Data) == 1 {
					seen = true
				}
			}
		}
		if !seen {
			t.Fatalf("iteration %d: trade in neither the snapshot nor any update", i)
		}
		hub.Unregister(client)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{}
	client, err := hub.Register(conn)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", hub.ClientCount())
	}

	// Repeat removal and nil must both be no-ops.
	hub.Unregister(client)
	hub.Unregister(nil)
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", hub.ClientCount())
	}
}

func TestRegisterFailedSnapshotWrite(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{failNext: true}
	if _, err := hub.Register(conn); err == nil {
		t.Fatal("expected Register to fail when the snapshot write fails")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", hub.ClientCount())
	}
	if !conn.closed {
		t.Error("connection was not closed after failed snapshot write")
	}
}
