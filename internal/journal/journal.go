// Package journal persists every placed trade and its settlement to SQLite,
// so a restart does not lose the trading history the operator audits.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // SQLite driver
)

var ErrNotFound = errors.New("journal: trade not found")

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    bot TEXT NOT NULL,
    symbol TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    direction TEXT NOT NULL,
    trade_type TEXT NOT NULL,
    minutes INTEGER NOT NULL,
    stake TEXT NOT NULL,
    currency TEXT NOT NULL,
    payout INTEGER NOT NULL,
    indicator TEXT,
    status TEXT NOT NULL,
    profit TEXT,
    placed_at DATETIME NOT NULL,
    settled_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_bot ON trades(bot, placed_at DESC);
`

// Trade statuses as stored in the journal.
const (
	StatusPending = "pending"
	StatusWin     = "win"
	StatusLoss    = "loss"
	StatusPush    = "push"
	StatusUnknown = "unknown"
)

// Entry is one journalled trade.
type Entry struct {
	ID        string
	Bot       string
	Symbol    string
	Timeframe string
	Direction string
	TradeType string
	Minutes   int
	Stake     decimal.Decimal
	Currency  string
	Payout    int
	Indicator string
	Status    string
	Profit    decimal.Decimal
	PlacedAt  time.Time
	SettledAt time.Time
}

// Journal wraps the SQL handle for easier swapping/testing.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite journal at path.
// Use ":memory:" for tests.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordPending inserts a freshly placed trade.
func (j *Journal) RecordPending(ctx context.Context, e Entry) error {
	if e.PlacedAt.IsZero() {
		e.PlacedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades (id, bot, symbol, timeframe, direction, trade_type,
		                    minutes, stake, currency, payout, indicator, status, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Bot, e.Symbol, e.Timeframe, e.Direction, e.TradeType,
		e.Minutes, e.Stake.String(), e.Currency, e.Payout, e.Indicator, StatusPending, e.PlacedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecordResult marks a trade settled. status is one of the Status constants.
func (j *Journal) RecordResult(ctx context.Context, tradeID, status string, profit decimal.Decimal) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades SET status = ?, profit = ?, settled_at = ? WHERE id = ?
	`, status, profit.String(), time.Now().UTC(), tradeID)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns the latest trades of a bot, newest first. An empty bot name
// returns trades across all bots.
func (j *Journal) Recent(ctx context.Context, bot string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, bot, symbol, timeframe, direction, trade_type, minutes,
		       stake, currency, payout, COALESCE(indicator, ''), status,
		       COALESCE(profit, '0'), placed_at, COALESCE(settled_at, placed_at)
		FROM trades`
	args := []any{}
	if bot != "" {
		query += ` WHERE bot = ?`
		args = append(args, bot)
	}
	query += ` ORDER BY placed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var stake, profit string
		if err := rows.Scan(&e.ID, &e.Bot, &e.Symbol, &e.Timeframe, &e.Direction,
			&e.TradeType, &e.Minutes, &stake, &e.Currency, &e.Payout,
			&e.Indicator, &e.Status, &profit, &e.PlacedAt, &e.SettledAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		e.Stake, _ = decimal.NewFromString(stake)
		e.Profit, _ = decimal.NewFromString(profit)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates one bot's settled trades.
type Stats struct {
	Trades int
	Wins   int
	Losses int
	Profit decimal.Decimal
}

// BotStats sums the settled trades of one bot.
func (j *Journal) BotStats(ctx context.Context, bot string) (Stats, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT status, COALESCE(profit, '0') FROM trades WHERE bot = ? AND status != ?
	`, bot, StatusPending)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status, profit string
		if err := rows.Scan(&status, &profit); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		p, _ := decimal.NewFromString(profit)
		s.Trades++
		s.Profit = s.Profit.Add(p)
		switch status {
		case StatusWin:
			s.Wins++
		case StatusLoss:
			s.Losses++
		}
	}
	return s, rows.Err()
}
