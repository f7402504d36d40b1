// Package market implements the randomized price simulator. Each symbol
// advances on its own independent schedule so dashboards never see every
// price jump at once.
package market

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/metrics"
	"github.com/gameoftrades/engine/internal/model"
	"github.com/gameoftrades/engine/internal/store"
)

// Move distribution: every tick draws a uniform ±2% move; with a small
// probability an extra ±3–10% spike is added on top. Mostly-small,
// occasionally-large keeps the leaderboard dynamic without a real market
// microstructure.
const (
	baseMovePct = 0.02
	spikeProb   = 0.03
	spikeMinPct = 0.03
	spikeMaxPct = 0.10
)

// Broadcaster receives committed price ticks for fan-out to dashboards.
type Broadcaster interface {
	BroadcastTick(stock model.Stock)
}

// Simulator owns the seed list and advances prices over time.
type Simulator struct {
	store   store.Store
	hub     Broadcaster // may be nil
	log     *slog.Logger
	tickMin time.Duration
	tickMax time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewSimulator creates a simulator. Each symbol waits a uniform-random
// interval in [tickMin, tickMax] between its own updates.
func NewSimulator(st store.Store, hub Broadcaster, logger *slog.Logger, tickMin, tickMax time.Duration) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if tickMax < tickMin {
		tickMax = tickMin
	}
	return &Simulator{
		store:   st,
		hub:     hub,
		log:     logger,
		tickMin: tickMin,
		tickMax: tickMax,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand overrides the random source for deterministic tests.
func (s *Simulator) SetRand(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// SeedStocks is the fixed instrument list. Loaded once per process
// lifetime, and again on a full admin reset.
func SeedStocks(now time.Time) []model.Stock {
	seed := []struct {
		symbol string
		name   string
		price  float64
	}{
		{"APPL", "Apple (sim)", 1750.00},
		{"TSLA", "Tesla (sim)", 2650.00},
		{"GOGL", "Google (sim)", 2820.00},
		{"AMZN", "Amazon (sim)", 3300.00},
		{"INFY", "Infosys (sim)", 1500.00},
		{"TCS", "TCS (sim)", 3200.00},
		{"RELI", "Reliance (sim)", 2400.00},
		{"HDFC", "HDFC Bank (sim)", 1200.00},
	}

	stocks := make([]model.Stock, 0, len(seed))
	for _, s := range seed {
		price := decimal.NewFromFloat(s.price)
		stocks = append(stocks, model.Stock{
			Symbol:    s.symbol,
			Name:      s.name,
			Price:     price,
			PrevPrice: price,
			UpdatedAt: now,
		})
	}
	return stocks
}

// Seed populates the store with the fixed seed list, leaving symbols that
// already exist untouched.
func (s *Simulator) Seed(ctx context.Context) error {
	return s.store.SeedStocks(ctx, SeedStocks(time.Now().UTC()))
}

// Run launches one updater goroutine per seeded symbol and blocks until
// ctx is cancelled. An empty store is a no-op.
func (s *Simulator) Run(ctx context.Context) error {
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		s.log.Warn("no stocks seeded, price simulator idle")
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for _, st := range stocks {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			s.runSymbol(ctx, symbol)
		}(st.Symbol)
	}
	s.log.Info("price simulator started",
		"symbols", len(stocks),
		"tick_min", s.tickMin.String(),
		"tick_max", s.tickMax.String(),
	)

	wg.Wait()
	return nil
}

func (s *Simulator) runSymbol(ctx context.Context, symbol string) {
	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.TickOnce(ctx, symbol); err != nil {
				s.log.Error("price tick failed", "symbol", symbol, "err", err)
			}
			timer.Reset(s.nextInterval())
		}
	}
}

// TickOnce applies a single randomized move to one symbol and commits it.
// The new price is clamped to the floor and rounded to cents.
func (s *Simulator) TickOnce(ctx context.Context, symbol string) error {
	st, err := s.store.GetStock(ctx, symbol)
	if err != nil {
		return err
	}

	move := s.drawMove()
	newPrice := st.Price.Mul(decimal.NewFromFloat(1 + move)).Round(model.MoneyScale)
	if newPrice.LessThan(model.PriceFloor) {
		newPrice = model.PriceFloor
	}

	now := time.Now().UTC()
	if err := s.store.UpdateStockPrice(ctx, symbol, newPrice, now); err != nil {
		return err
	}
	metrics.PriceTicks.Inc()

	s.log.Debug("price tick",
		"symbol", symbol,
		"price", newPrice.String(),
		"prev", st.Price.String(),
	)

	if s.hub != nil {
		s.hub.BroadcastTick(model.Stock{
			Symbol:    symbol,
			Name:      st.Name,
			Price:     newPrice,
			PrevPrice: st.Price,
			UpdatedAt: now,
		})
	}
	return nil
}

// drawMove returns the signed fractional move for one tick.
func (s *Simulator) drawMove() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	move := (s.rand.Float64()*2 - 1) * baseMovePct
	if s.rand.Float64() < spikeProb {
		spike := spikeMinPct + s.rand.Float64()*(spikeMaxPct-spikeMinPct)
		if s.rand.Intn(2) == 0 {
			spike = -spike
		}
		move += spike
	}
	return move
}

func (s *Simulator) nextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tickMax == s.tickMin {
		return s.tickMin
	}
	return s.tickMin + time.Duration(s.rand.Int63n(int64(s.tickMax-s.tickMin)))
}
