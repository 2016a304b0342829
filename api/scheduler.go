/*
scheduler.go - Periodic stock consistency monitor

PURPOSE:
  The stored available_bottles is the source of truth and is moved
  incrementally by every operation. This monitor periodically recomputes
  the derived value (total - used - damaged - deposit), publishes both to
  the stock gauges, and logs a warning when they drift apart.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads through bottles.Service.Dashboard, so it never writes
  - Stop waits for an in-flight check to finish

CONFIGURATION:
  - CheckInterval: How often to check (default: 5 minutes)
  - Enabled: Whether the monitor is active (default: true)

USAGE:
  monitor := NewStockMonitor(svc, metrics, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - bottles/reports.go: Dashboard
  - obs/metrics.go: stock and drift gauges
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/obs"
)

// StockMonitor publishes stock gauges and reports available drift.
type StockMonitor struct {
	Service       *bottles.Service
	Metrics       *obs.Metrics
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStockMonitor creates a new monitor.
func NewStockMonitor(svc *bottles.Service, metrics *obs.Metrics, log *zap.Logger) *StockMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockMonitor{
		Service:       svc,
		Metrics:       metrics,
		Log:           log,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the monitor.
func (sm *StockMonitor) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.Enabled {
		sm.Log.Info("stock monitor disabled")
		return
	}
	if sm.ticker != nil {
		return
	}

	sm.ticker = time.NewTicker(sm.CheckInterval)
	sm.stop = make(chan struct{})
	sm.wg.Add(1)

	go sm.run()

	sm.Log.Info("stock monitor started", zap.Duration("interval", sm.CheckInterval))
}

// Stop stops the monitor.
func (sm *StockMonitor) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.ticker == nil {
		return
	}
	sm.ticker.Stop()
	close(sm.stop)
	sm.wg.Wait()
	sm.ticker = nil
	sm.Log.Info("stock monitor stopped")
}

func (sm *StockMonitor) run() {
	defer sm.wg.Done()

	// Run immediately on start
	sm.Check(context.Background())

	for {
		select {
		case <-sm.ticker.C:
			sm.Check(context.Background())
		case <-sm.stop:
			return
		}
	}
}

// Check reads the stock once and returns the drift between stored and
// derived available bottles. It returns 0 before the stock is initialized.
func (sm *StockMonitor) Check(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	d, err := sm.Service.Dashboard(ctx, 1)
	if err != nil {
		sm.Log.Error("stock check failed", zap.Error(err))
		return 0
	}
	if !d.Initialized {
		return 0
	}

	tb := d.Stock
	if sm.Metrics != nil {
		sm.Metrics.SetStock(tb.Total, tb.Available, tb.Used, tb.Damaged, tb.Deposit, d.AvailableDrift)
	}
	if d.AvailableDrift != 0 {
		sm.Log.Warn("available bottles drift from derived value",
			zap.Int("available", tb.Available),
			zap.Int("derived", d.DerivedAvailable),
			zap.Int("drift", d.AvailableDrift),
			zap.Int("damaged", tb.Damaged),
			zap.Int("deposit", tb.Deposit),
		)
	}
	return d.AvailableDrift
}
