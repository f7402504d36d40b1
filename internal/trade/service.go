// Package trade provides the HTTP handlers and business logic for team
// registration, trade execution, portfolio valuation, and the leaderboard.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/metrics"
	"github.com/gameoftrades/engine/internal/model"
	"github.com/gameoftrades/engine/internal/round"
	"github.com/gameoftrades/engine/internal/store"
)

// NewsFetcher supplies headlines for the dashboard. Implementations never
// fail; the worst case is an empty slice.
type NewsFetcher interface {
	Fetch(ctx context.Context, query string) []model.Article
}

// Seeder re-populates the instrument list after a full reset.
type Seeder interface {
	Seed(ctx context.Context) error
}

// Service handles game operations. A single mutex serializes the
// check-then-apply sequence of trade execution: team counts are small and
// the critical section is sub-millisecond, so per-team locking would buy
// nothing.
type Service struct {
	store        store.Store
	clock        *round.Clock
	news         NewsFetcher // may be nil
	seeder       Seeder      // may be nil
	wsHub        *WSHub      // may be nil
	startingCash decimal.Decimal
	mu           sync.Mutex
}

// NewService creates the trade service. Pass nil for news, seeder, or hub
// when the corresponding collaborator is not wired.
func NewService(st store.Store, clock *round.Clock, news NewsFetcher, seeder Seeder, hub *WSHub, startingCash decimal.Decimal) *Service {
	return &Service{
		store:        st,
		clock:        clock,
		news:         news,
		seeder:       seeder,
		wsHub:        hub,
		startingCash: startingCash,
	}
}

// --- Request/Response types ---

// RegisterRequest is the JSON body for POST /teams.
type RegisterRequest struct {
	Team string `json:"team"`
}

// TradeRequest is the JSON body for POST /trade. Quantity is signed:
// positive = buy, negative = sell.
type TradeRequest struct {
	Team     string `json:"team"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"qty"`
}

// TradeResponse is returned from POST /trade.
type TradeResponse struct {
	TradeID  string           `json:"trade_id"`
	Team     string           `json:"team"`
	Symbol   string           `json:"symbol"`
	Quantity int64            `json:"qty"`
	Price    decimal.Decimal  `json:"price"`
	Total    decimal.Decimal  `json:"total"`
	Cash     decimal.Decimal  `json:"cash"`
	Holdings map[string]int64 `json:"holdings"`
}

// PortfolioResponse is returned from GET /portfolio/{teamID}.
type PortfolioResponse struct {
	Team     string          `json:"team"`
	Cash     decimal.Decimal `json:"cash"`
	Holdings []model.Holding `json:"holdings"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// StockResponse is one row of GET /stocks.
type StockResponse struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	PrevPrice decimal.Decimal `json:"prev_price"`
	PctChange decimal.Decimal `json:"pct_change"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RoundStatusResponse is returned from GET /round.
type RoundStatusResponse struct {
	Phase            round.Phase `json:"phase"`
	RemainingSeconds int64       `json:"remaining_seconds"`
}

// --- HTTP Handlers ---

// RegisterTeam handles POST /api/v1/teams. Re-registering an existing team
// is not an error: the existing portfolio is returned untouched, so the
// endpoint doubles as login.
func (s *Service) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Team == "" {
		writeError(w, "team name is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	team := &model.Team{
		ID:           req.Team,
		Cash:         s.startingCash,
		Holdings:     map[string]int64{},
		RegisteredAt: time.Now().UTC(),
	}

	status := http.StatusCreated
	if err := s.store.CreateTeam(ctx, team); err != nil {
		if !errors.Is(err, model.ErrAlreadyExists) {
			writeError(w, "failed to register team", http.StatusInternalServerError)
			return
		}
		existing, err := s.store.GetTeam(ctx, req.Team)
		if err != nil {
			writeError(w, "failed to load team", http.StatusInternalServerError)
			return
		}
		team = existing
		status = http.StatusOK
	} else {
		slog.Info("team registered", "team", req.Team, "cash", s.startingCash.String())
		if teams, err := s.store.ListTeams(ctx); err == nil {
			metrics.RegisteredTeams.Set(float64(len(teams)))
		}
	}

	resp, err := s.portfolioResponse(ctx, team)
	if err != nil {
		writeError(w, "failed to value portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// ListStocks handles GET /api/v1/stocks.
func (s *Service) ListStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.store.ListStocks(r.Context())
	if err != nil {
		writeError(w, "failed to list stocks", http.StatusInternalServerError)
		return
	}

	resp := make([]StockResponse, 0, len(stocks))
	for _, st := range stocks {
		resp = append(resp, StockResponse{
			Symbol:    st.Symbol,
			Name:      st.Name,
			Price:     st.Price,
			PrevPrice: st.PrevPrice,
			PctChange: st.PctChange(),
			UpdatedAt: st.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPortfolio handles GET /api/v1/portfolio/{teamID}. Net worth is
// recomputed from current prices on every read.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	team, err := s.store.GetTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, "team not found", http.StatusNotFound)
		return
	}

	resp, err := s.portfolioResponse(r.Context(), team)
	if err != nil {
		writeError(w, "failed to value portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ExecuteTrade handles POST /api/v1/trade. Buys and sells execute
// instantly at the current simulated price; a rejected trade leaves cash
// and holdings untouched.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Team == "" || req.Symbol == "" {
		writeError(w, "team and symbol are required", http.StatusBadRequest)
		return
	}

	resp, err := s.executeTrade(r.Context(), req)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// executeTrade validates and applies one trade atomically. The mutex spans
// the whole check-then-apply sequence so two concurrent sells can never
// both pass the sufficiency check against a stale quantity.
func (s *Service) executeTrade(ctx context.Context, req TradeRequest) (*TradeResponse, error) {
	if req.Quantity == 0 {
		return nil, model.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Gate inside the critical section, so expiry observed here can never
	// be outrun by a trade already past the check.
	if err := s.clock.Gate(); err != nil {
		return nil, err
	}

	team, err := s.store.GetTeam(ctx, req.Team)
	if err != nil {
		return nil, err
	}
	stock, err := s.store.GetStock(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	qty := req.Quantity
	absQty := qty
	if absQty < 0 {
		absQty = -absQty
	}
	total := stock.Price.Mul(decimal.NewFromInt(absQty)).Round(model.MoneyScale)

	cash := team.Cash
	holdings := team.Holdings
	if qty > 0 {
		if cash.LessThan(total) {
			return nil, model.ErrInsufficientFunds
		}
		cash = cash.Sub(total)
		holdings[req.Symbol] += qty
	} else {
		if holdings[req.Symbol] < absQty {
			return nil, model.ErrInsufficientHoldings
		}
		cash = cash.Add(total)
		holdings[req.Symbol] -= absQty
		if holdings[req.Symbol] == 0 {
			delete(holdings, req.Symbol)
		}
	}

	if err := s.store.UpdateTeam(ctx, req.Team, cash, holdings); err != nil {
		return nil, err
	}

	rec := &model.TradeRecord{
		ID:         uuid.New().String(),
		TeamID:     req.Team,
		Symbol:     req.Symbol,
		Quantity:   qty,
		Price:      stock.Price,
		Total:      total,
		ExecutedAt: time.Now().UTC(),
	}
	if err := s.store.InsertTradeRecord(ctx, rec); err != nil {
		slog.Error("failed to record trade", "trade_id", rec.ID, "err", err)
	}

	side := "buy"
	if qty < 0 {
		side = "sell"
	}
	metrics.TradesTotal.WithLabelValues(side).Inc()

	slog.Info("trade executed",
		"trade_id", rec.ID,
		"team", req.Team,
		"symbol", req.Symbol,
		"qty", qty,
		"price", stock.Price.String(),
		"total", total.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "trade",
			Symbol: req.Symbol,
			Team:   req.Team,
			Side:   side,
			Price:  stock.Price.String(),
		})
	}

	return &TradeResponse{
		TradeID:  rec.ID,
		Team:     req.Team,
		Symbol:   req.Symbol,
		Quantity: qty,
		Price:    stock.Price,
		Total:    total,
		Cash:     cash,
		Holdings: holdings,
	}, nil
}

// Leaderboard handles GET /api/v1/leaderboard. Fully recomputed on every
// call; ties are broken by registration order, which ListTeams guarantees.
func (s *Service) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		writeError(w, "failed to list teams", http.StatusInternalServerError)
		return
	}
	prices, err := s.priceIndex(ctx)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}

	entries := make([]model.LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		entries = append(entries, model.LeaderboardEntry{
			TeamID:   t.ID,
			NetWorth: netWorth(&t, prices),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].NetWorth.GreaterThan(entries[j].NetWorth)
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// RoundStatus handles GET /api/v1/round.
func (s *Service) RoundStatus(w http.ResponseWriter, r *http.Request) {
	phase, remaining := s.clock.Status()
	metrics.SetRoundPhase(string(phase))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RoundStatusResponse{
		Phase:            phase,
		RemainingSeconds: int64(remaining.Seconds()),
	})
}

// TradeHistory handles GET /api/v1/trades/{teamID}.
func (s *Service) TradeHistory(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	if _, err := s.store.GetTeam(r.Context(), teamID); err != nil {
		writeError(w, "team not found", http.StatusNotFound)
		return
	}
	trades, err := s.store.GetTradesByTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// News handles GET /api/v1/news. Upstream failures surface only as an
// empty article list, never as an error.
func (s *Service) News(w http.ResponseWriter, r *http.Request) {
	articles := []model.Article{}
	if s.news != nil {
		articles = s.news.Fetch(r.Context(), r.URL.Query().Get("q"))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]model.Article{"articles": articles})
}

// --- Operator handlers ---

// RoundControl handles POST /api/v1/admin/round/{action}. Actions called
// from the wrong phase are no-ops and still return the resulting phase.
func (s *Service) RoundControl(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	switch action {
	case "start":
		s.clock.Start()
	case "pause":
		s.clock.Pause()
	case "resume":
		s.clock.Resume()
	case "reset":
		s.clock.Reset()
	default:
		writeError(w, "unknown round action: "+action, http.StatusBadRequest)
		return
	}

	phase := s.clock.Phase()
	metrics.SetRoundPhase(string(phase))
	slog.Info("round control", "action", action, "phase", phase)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]round.Phase{"phase": phase})
}

// FullReset handles POST /api/v1/admin/reset: the clock returns to
// NotStarted, all teams and trades are cleared, and the instrument list is
// reseeded at its starting prices.
func (s *Service) FullReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	s.clock.Reset()
	if err := s.store.Reset(ctx); err != nil {
		writeError(w, "failed to reset store", http.StatusInternalServerError)
		return
	}
	if s.seeder != nil {
		if err := s.seeder.Seed(ctx); err != nil {
			writeError(w, "failed to reseed stocks", http.StatusInternalServerError)
			return
		}
	}
	metrics.RegisteredTeams.Set(0)
	metrics.SetRoundPhase(string(round.PhaseNotStarted))
	slog.Info("full game reset")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]round.Phase{"phase": round.PhaseNotStarted})
}

// --- Helpers ---

func (s *Service) portfolioResponse(ctx context.Context, team *model.Team) (*PortfolioResponse, error) {
	prices, err := s.priceIndex(ctx)
	if err != nil {
		return nil, err
	}

	holdings := make([]model.Holding, 0, len(team.Holdings))
	for sym, qty := range team.Holdings {
		price := prices[sym]
		holdings = append(holdings, model.Holding{
			Symbol:   sym,
			Quantity: qty,
			Price:    price,
			Value:    price.Mul(decimal.NewFromInt(qty)).Round(model.MoneyScale),
		})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	return &PortfolioResponse{
		Team:     team.ID,
		Cash:     team.Cash,
		Holdings: holdings,
		NetWorth: netWorth(team, prices),
	}, nil
}

func (s *Service) priceIndex(ctx context.Context) (map[string]decimal.Decimal, error) {
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(stocks))
	for _, st := range stocks {
		prices[st.Symbol] = st.Price
	}
	return prices, nil
}

// netWorth is cash plus mark-to-market value of all holdings.
func netWorth(team *model.Team, prices map[string]decimal.Decimal) decimal.Decimal {
	total := team.Cash
	for sym, qty := range team.Holdings {
		total = total.Add(prices[sym].Mul(decimal.NewFromInt(qty)))
	}
	return total.Round(model.MoneyScale)
}

// writeTradeError maps ledger errors to HTTP status codes and counts the
// rejection.
func writeTradeError(w http.ResponseWriter, err error) {
	var status int
	var reason string

	switch {
	case errors.Is(err, model.ErrNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrInvalidQuantity):
		status, reason = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, model.ErrInsufficientFunds):
		status, reason = http.StatusConflict, "insufficient_funds"
	case errors.Is(err, model.ErrInsufficientHoldings):
		status, reason = http.StatusConflict, "insufficient_holdings"
	case errors.Is(err, model.ErrRoundNotActive):
		status, reason = http.StatusConflict, "round_not_active"
	default:
		status, reason = http.StatusInternalServerError, "internal"
	}

	metrics.TradeRejections.WithLabelValues(reason).Inc()
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
