// Package model defines the core domain types shared across the game engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the ledger and stores. Handlers match these
// with errors.Is and map them to HTTP status codes.
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidQuantity      = errors.New("quantity must be non-zero")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrRoundNotActive       = errors.New("trading round is not active")
	ErrUnauthorized         = errors.New("unauthorized")
)

// PriceFloor is the lowest a simulated price can fall. Prices are clamped
// here after every tick so they never reach zero or go negative.
var PriceFloor = decimal.NewFromFloat(0.01)

// MoneyScale is the number of decimal places for prices and cash.
const MoneyScale int32 = 2

// Stock is a tradable instrument with a simulated price series.
// PrevPrice holds the value before the latest tick.
type Stock struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	PrevPrice decimal.Decimal `json:"prev_price" db:"prev_price"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// PctChange returns the percent move of the latest tick,
// (price − prev) / prev × 100, or zero when prev is zero.
func (s Stock) PctChange() decimal.Decimal {
	if s.PrevPrice.IsZero() {
		return decimal.Zero
	}
	return s.Price.Sub(s.PrevPrice).Div(s.PrevPrice).Mul(decimal.NewFromInt(100)).Round(MoneyScale)
}

// Team is a registered team's portfolio: cash plus share holdings.
// Holdings never contain zero or negative quantities; an entry that
// reaches zero is removed.
type Team struct {
	ID           string           `json:"team" db:"team_id"`
	Cash         decimal.Decimal  `json:"cash" db:"cash"`
	Holdings     map[string]int64 `json:"holdings" db:"-"`
	RegisteredAt time.Time        `json:"registered_at" db:"registered_at"`
}

// Clone returns a deep copy so stores can hand out snapshots without
// exposing internal maps to mutation.
func (t *Team) Clone() *Team {
	cp := *t
	cp.Holdings = make(map[string]int64, len(t.Holdings))
	for sym, qty := range t.Holdings {
		cp.Holdings[sym] = qty
	}
	return &cp
}

// Holding is the valued view of one position, computed at read time from
// the current stock price.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// TradeRecord is an immutable audit entry for one executed trade.
// Quantity is signed: positive = buy, negative = sell.
type TradeRecord struct {
	ID         string          `json:"id" db:"id"`
	TeamID     string          `json:"team" db:"team_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Quantity   int64           `json:"qty" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Total      decimal.Decimal `json:"total" db:"total"`
	ExecutedAt time.Time       `json:"executed_at" db:"executed_at"`
}

// LeaderboardEntry is one row of the computed leaderboard.
type LeaderboardEntry struct {
	TeamID   string          `json:"team"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// Article is a single news headline from the external news gateway.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}
