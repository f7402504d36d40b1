package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. It is the default for
// a single-event game (no DATABASE_URL) and is used throughout the tests.
type MemoryStore struct {
	mu        sync.RWMutex
	stocks    map[string]*model.Stock
	teams     map[string]*model.Team
	teamOrder []string // registration order
	trades    []model.TradeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks: make(map[string]*model.Stock),
		teams:  make(map[string]*model.Team),
	}
}

func (s *MemoryStore) SeedStocks(_ context.Context, stocks []model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stocks {
		if _, ok := s.stocks[st.Symbol]; ok {
			continue
		}
		cp := st
		s.stocks[st.Symbol] = &cp
	}
	return nil
}

func (s *MemoryStore) GetStock(_ context.Context, symbol string) (*model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[symbol]
	if !ok {
		return nil, fmt.Errorf("stock %s: %w", symbol, model.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) ListStocks(_ context.Context) ([]model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stocks := make([]model.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		stocks = append(stocks, *st)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Symbol < stocks[j].Symbol })
	return stocks, nil
}

func (s *MemoryStore) UpdateStockPrice(_ context.Context, symbol string, newPrice decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stocks[symbol]
	if !ok {
		return fmt.Errorf("stock %s: %w", symbol, model.ErrNotFound)
	}
	st.PrevPrice = st.Price
	st.Price = newPrice
	st.UpdatedAt = at
	return nil
}

func (s *MemoryStore) CreateTeam(_ context.Context, team *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[team.ID]; ok {
		return fmt.Errorf("team %s: %w", team.ID, model.ErrAlreadyExists)
	}
	s.teams[team.ID] = team.Clone()
	s.teamOrder = append(s.teamOrder, team.ID)
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, teamID string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", teamID, model.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ListTeams(_ context.Context) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]model.Team, 0, len(s.teamOrder))
	for _, id := range s.teamOrder {
		teams = append(teams, *s.teams[id].Clone())
	}
	return teams, nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, teamID string, cash decimal.Decimal, holdings map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[teamID]
	if !ok {
		return fmt.Errorf("team %s: %w", teamID, model.ErrNotFound)
	}
	t.Cash = cash
	t.Holdings = make(map[string]int64, len(holdings))
	for sym, qty := range holdings {
		t.Holdings[sym] = qty
	}
	return nil
}

func (s *MemoryStore) InsertTradeRecord(_ context.Context, rec *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *rec)
	return nil
}

func (s *MemoryStore) GetTradesByTeam(_ context.Context, teamID string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for _, tr := range s.trades {
		if tr.TeamID == teamID {
			result = append(result, tr)
		}
	}
	return result, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stocks = make(map[string]*model.Stock)
	s.teams = make(map[string]*model.Team)
	s.teamOrder = nil
	s.trades = nil
	return nil
}
