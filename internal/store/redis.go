package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for stock reads, which dominate traffic when dozens of dashboards
// poll every few seconds. Writes go to the primary and invalidate the
// cache; team and trade reads pass through so the ledger never trades on
// stale state.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Stock reads (cached) ---

func (s *CachedStore) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	data, err := s.rdb.Get(ctx, stockKey(symbol)).Bytes()
	if err == nil {
		var st model.Stock
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.primary.GetStock(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.cacheStock(ctx, st)
	return st, nil
}

func (s *CachedStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	data, err := s.rdb.Get(ctx, stockListKey).Bytes()
	if err == nil {
		var stocks []model.Stock
		if json.Unmarshal(data, &stocks) == nil {
			return stocks, nil
		}
	}

	stocks, err := s.primary.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(stocks); err == nil {
		s.rdb.Set(ctx, stockListKey, data, s.ttl)
	}
	return stocks, nil
}

// --- Stock writes (invalidate) ---

func (s *CachedStore) SeedStocks(ctx context.Context, stocks []model.Stock) error {
	if err := s.primary.SeedStocks(ctx, stocks); err != nil {
		return err
	}
	s.rdb.Del(ctx, stockListKey)
	return nil
}

func (s *CachedStore) UpdateStockPrice(ctx context.Context, symbol string, newPrice decimal.Decimal, at time.Time) error {
	if err := s.primary.UpdateStockPrice(ctx, symbol, newPrice, at); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx, stockKey(symbol), stockListKey)
	return nil
}

// --- Teams and trades (pass through) ---

func (s *CachedStore) CreateTeam(ctx context.Context, team *model.Team) error {
	return s.primary.CreateTeam(ctx, team)
}

func (s *CachedStore) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	return s.primary.GetTeam(ctx, teamID)
}

func (s *CachedStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	return s.primary.ListTeams(ctx)
}

func (s *CachedStore) UpdateTeam(ctx context.Context, teamID string, cash decimal.Decimal, holdings map[string]int64) error {
	return s.primary.UpdateTeam(ctx, teamID, cash, holdings)
}

func (s *CachedStore) InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error {
	return s.primary.InsertTradeRecord(ctx, rec)
}

func (s *CachedStore) GetTradesByTeam(ctx context.Context, teamID string) ([]model.TradeRecord, error) {
	return s.primary.GetTradesByTeam(ctx, teamID)
}

// Reset clears the primary and drops every cached stock entry, list and
// per-symbol keys alike, so a reseeded game never serves pre-reset prices.
func (s *CachedStore) Reset(ctx context.Context) error {
	if err := s.primary.Reset(ctx); err != nil {
		return err
	}
	keys := []string{stockListKey}
	iter := s.rdb.Scan(ctx, 0, stockKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheStock(ctx context.Context, st *model.Stock) {
	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, stockKey(st.Symbol), data, s.ttl)
	}
}

const stockListKey = "stocks:all"

func stockKey(symbol string) string { return "stock:" + symbol }
