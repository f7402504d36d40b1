// Package store defines the persistence interface for the game engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (default for a single-event game, and for testing).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/model"
)

// Store is the persistence interface shared by the price simulator and the
// trade service. Every read returns a snapshot; mutations are atomic with
// respect to concurrent reads.
type Store interface {
	// --- Stocks ---

	// SeedStocks inserts stocks that are not already present. Existing
	// symbols are left untouched so a restart does not reset prices.
	SeedStocks(ctx context.Context, stocks []model.Stock) error

	// GetStock retrieves a stock by symbol. Returns model.ErrNotFound.
	GetStock(ctx context.Context, symbol string) (*model.Stock, error)

	// ListStocks returns all stocks ordered by symbol.
	ListStocks(ctx context.Context) ([]model.Stock, error)

	// UpdateStockPrice commits one tick: the previous price becomes the
	// pre-update value and the current price becomes newPrice. A reader
	// observes either the pre-tick or post-tick record, never a torn one.
	UpdateStockPrice(ctx context.Context, symbol string, newPrice decimal.Decimal, at time.Time) error

	// --- Teams ---

	// CreateTeam registers a new team. Returns model.ErrAlreadyExists if
	// the team ID is taken.
	CreateTeam(ctx context.Context, team *model.Team) error

	// GetTeam retrieves a team by ID. Returns model.ErrNotFound.
	GetTeam(ctx context.Context, teamID string) (*model.Team, error)

	// ListTeams returns all teams in registration order. The leaderboard
	// relies on this order to break net-worth ties deterministically.
	ListTeams(ctx context.Context) ([]model.Team, error)

	// UpdateTeam replaces a team's cash and holdings in one step.
	UpdateTeam(ctx context.Context, teamID string, cash decimal.Decimal, holdings map[string]int64) error

	// --- Trade audit log ---

	// InsertTradeRecord appends an immutable trade record.
	InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error

	// GetTradesByTeam returns a team's trades in execution order.
	GetTradesByTeam(ctx context.Context, teamID string) ([]model.TradeRecord, error)

	// --- Lifecycle ---

	// Reset clears all teams, trades, and stocks ahead of a fresh round.
	Reset(ctx context.Context) error
}
