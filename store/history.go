package store

import (
	"strings"
	"sync"

	"cryptomon/models"
)

// Default retention per alert class.
const (
	DefaultLiquidationHistory = 25
	DefaultTradeHistory       = 30
	DefaultWhaleHistory       = 15
)

// History holds the bounded recent state behind the dashboard: one funding
// snapshot per tracked symbol plus three newest-first alert buffers. All
// mutation goes through the lock; mutating methods return a copy of the full
// container so callers can broadcast without holding it.
type History struct {
	mu           sync.RWMutex
	funding      map[string]*models.FundingSnapshot
	liquidations []models.LiquidationAlert
	trades       []models.TradeAlert
	whales       []models.WhaleAlert

	liqCap   int
	tradeCap int
	whaleCap int
}

// NewHistory initializes the funding table with every tracked symbol so the
// key set is stable from startup; values stay nil until the first message.
func NewHistory(symbols []string, liqCap, tradeCap, whaleCap int) *History {
	if liqCap <= 0 {
		liqCap = DefaultLiquidationHistory
	}
	if tradeCap <= 0 {
		tradeCap = DefaultTradeHistory
	}
	if whaleCap <= 0 {
		whaleCap = DefaultWhaleHistory
	}

	funding := make(map[string]*models.FundingSnapshot, len(symbols))
	for _, s := range symbols {
		funding[strings.ToLower(s)] = nil
	}

	return &History{
		funding:  funding,
		liqCap:   liqCap,
		tradeCap: tradeCap,
		whaleCap: whaleCap,
	}
}

// SetFunding stores the latest snapshot for a symbol and returns a copy of
// the whole table.
func (h *History) SetFunding(symbol string, snap models.FundingSnapshot) map[string]*models.FundingSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funding[strings.ToLower(symbol)] = &snap
	return copyFunding(h.funding)
}

// AddLiquidation inserts at the head, evicting the oldest entry when the
// buffer is full, and returns a copy of the buffer.
func (h *History) AddLiquidation(a models.LiquidationAlert) []models.LiquidationAlert {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liquidations = pushFront(h.liquidations, a, h.liqCap)
	return copySlice(h.liquidations)
}

// AddTrade inserts at the head and returns a copy of the buffer.
func (h *History) AddTrade(a models.TradeAlert) []models.TradeAlert {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = pushFront(h.trades, a, h.tradeCap)
	return copySlice(h.trades)
}

// AddWhale inserts at the head and returns a copy of the buffer.
func (h *History) AddWhale(a models.WhaleAlert) []models.WhaleAlert {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.whales = pushFront(h.whales, a, h.whaleCap)
	return copySlice(h.whales)
}

// Snapshot returns a consistent copy of all four containers for the
// initial_data event sent to a newly joined client.
func (h *History) Snapshot() (map[string]*models.FundingSnapshot, []models.LiquidationAlert, []models.TradeAlert, []models.WhaleAlert) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyFunding(h.funding), copySlice(h.liquidations), copySlice(h.trades), copySlice(h.whales)
}

func pushFront[T any](items []T, v T, limit int) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, v)
	out = append(out, items...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copySlice[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func copyFunding(m map[string]*models.FundingSnapshot) map[string]*models.FundingSnapshot {
	out := make(map[string]*models.FundingSnapshot, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
