package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gameoftrades/engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stocks (
			symbol     TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			price      NUMERIC NOT NULL,
			prev_price NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS teams (
			team_id       TEXT PRIMARY KEY,
			cash          NUMERIC NOT NULL,
			registered_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS holdings (
			team_id  TEXT NOT NULL REFERENCES teams(team_id),
			symbol   TEXT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (team_id, symbol)
		);
		CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			team_id     TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			quantity    BIGINT NOT NULL,
			price       NUMERIC NOT NULL,
			total       NUMERIC NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (s *PostgresStore) SeedStocks(ctx context.Context, stocks []model.Stock) error {
	for _, st := range stocks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO stocks (symbol, name, price, prev_price, updated_at)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5)
			 ON CONFLICT (symbol) DO NOTHING`,
			st.Symbol, st.Name, st.Price.String(), st.PrevPrice.String(), st.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("seed stock %s: %w", st.Symbol, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	st, err := scanStock(s.pool.QueryRow(ctx,
		`SELECT symbol, name, price::TEXT, prev_price::TEXT, updated_at
		 FROM stocks WHERE symbol = $1`, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("stock %s: %w", symbol, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get stock %s: %w", symbol, err)
	}
	return st, nil
}

func (s *PostgresStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, name, price::TEXT, prev_price::TEXT, updated_at
		 FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, *st)
	}
	return stocks, rows.Err()
}

func (s *PostgresStore) UpdateStockPrice(ctx context.Context, symbol string, newPrice decimal.Decimal, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE stocks
		 SET prev_price = price, price = $2::NUMERIC, updated_at = $3
		 WHERE symbol = $1`,
		symbol, newPrice.String(), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock %s: %w", symbol, model.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateTeam(ctx context.Context, team *model.Team) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (team_id, cash, registered_at) VALUES ($1, $2::NUMERIC, $3)`,
		team.ID, team.Cash.String(), team.RegisteredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("team %s: %w", team.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("create team %s: %w", team.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	var t model.Team
	var cashS string
	err := s.pool.QueryRow(ctx,
		`SELECT team_id, cash::TEXT, registered_at FROM teams WHERE team_id = $1`, teamID).
		Scan(&t.ID, &cashS, &t.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", teamID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get team %s: %w", teamID, err)
	}
	t.Cash, _ = decimal.NewFromString(cashS)

	t.Holdings = make(map[string]int64)
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, quantity FROM holdings WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sym string
		var qty int64
		if err := rows.Scan(&sym, &qty); err != nil {
			return nil, err
		}
		t.Holdings[sym] = qty
	}
	return &t, rows.Err()
}

func (s *PostgresStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT team_id, cash::TEXT, registered_at FROM teams ORDER BY registered_at, team_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		var cashS string
		if err := rows.Scan(&t.ID, &cashS, &t.RegisteredAt); err != nil {
			return nil, err
		}
		t.Cash, _ = decimal.NewFromString(cashS)
		t.Holdings = make(map[string]int64)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := s.pool.Query(ctx, `SELECT team_id, symbol, quantity FROM holdings`)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()

	byID := make(map[string]*model.Team, len(teams))
	for i := range teams {
		byID[teams[i].ID] = &teams[i]
	}
	for hrows.Next() {
		var id, sym string
		var qty int64
		if err := hrows.Scan(&id, &sym, &qty); err != nil {
			return nil, err
		}
		if t, ok := byID[id]; ok {
			t.Holdings[sym] = qty
		}
	}
	return teams, hrows.Err()
}

// UpdateTeam rewrites cash and holdings in a single transaction so a
// concurrent valuation never sees a debit without the matching credit.
func (s *PostgresStore) UpdateTeam(ctx context.Context, teamID string, cash decimal.Decimal, holdings map[string]int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE teams SET cash = $2::NUMERIC WHERE team_id = $1`,
		teamID, cash.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team %s: %w", teamID, model.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE team_id = $1`, teamID); err != nil {
		return err
	}
	for sym, qty := range holdings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO holdings (team_id, symbol, quantity) VALUES ($1, $2, $3)`,
			teamID, sym, qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) InsertTradeRecord(ctx context.Context, rec *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, team_id, symbol, quantity, price, total, executed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		rec.ID, rec.TeamID, rec.Symbol, rec.Quantity,
		rec.Price.String(), rec.Total.String(), rec.ExecutedAt,
	)
	return err
}

func (s *PostgresStore) GetTradesByTeam(ctx context.Context, teamID string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, team_id, symbol, quantity, price::TEXT, total::TEXT, executed_at
		 FROM trades WHERE team_id = $1 ORDER BY executed_at`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var tr model.TradeRecord
		var priceS, totalS string
		if err := rows.Scan(&tr.ID, &tr.TeamID, &tr.Symbol, &tr.Quantity,
			&priceS, &totalS, &tr.ExecutedAt); err != nil {
			return nil, err
		}
		tr.Price, _ = decimal.NewFromString(priceS)
		tr.Total, _ = decimal.NewFromString(totalS)
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE trades, holdings, teams, stocks`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (*model.Stock, error) {
	var st model.Stock
	var priceS, prevS string
	if err := row.Scan(&st.Symbol, &st.Name, &priceS, &prevS, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Price, _ = decimal.NewFromString(priceS)
	st.PrevPrice, _ = decimal.NewFromString(prevS)
	return &st, nil
}
