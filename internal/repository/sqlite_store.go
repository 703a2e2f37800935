package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PhantomEx/internal/domain/models"
	applogger "PhantomEx/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	model             TEXT NOT NULL,
	mode              TEXT NOT NULL,
	allowance         REAL NOT NULL,
	goal              TEXT NOT NULL DEFAULT '',
	trade_interval_s  INTEGER NOT NULL,
	risk_profile      TEXT NOT NULL,
	max_duration_s    INTEGER NOT NULL DEFAULT 0,
	started_at        TIMESTAMP,
	active            INTEGER NOT NULL DEFAULT 1,
	created_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id   TEXT NOT NULL,
	symbol     TEXT NOT NULL DEFAULT '',
	side       TEXT NOT NULL,
	quantity   REAL NOT NULL DEFAULT 0,
	price      REAL NOT NULL DEFAULT 0,
	total      REAL NOT NULL DEFAULT 0,
	reasoning  TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT 'paper',
	timestamp  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_agent ON trades(agent_id, timestamp);

CREATE TABLE IF NOT EXISTS portfolios (
	agent_id  TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	quantity  REAL NOT NULL,
	avg_cost  REAL NOT NULL,
	PRIMARY KEY (agent_id, symbol)
);

CREATE TABLE IF NOT EXISTS price_snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT NOT NULL,
	price      REAL NOT NULL,
	change_24h REAL NOT NULL DEFAULT 0,
	volume_24h REAL NOT NULL DEFAULT 0,
	timestamp  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id    TEXT NOT NULL,
	total_value REAL NOT NULL,
	cash        REAL NOT NULL,
	timestamp   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_agent ON equity_snapshots(agent_id, timestamp);

CREATE TABLE IF NOT EXISTS saved_sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id     TEXT NOT NULL,
	agent_name   TEXT NOT NULL,
	model        TEXT NOT NULL,
	risk_profile TEXT NOT NULL,
	goal         TEXT NOT NULL DEFAULT '',
	allowance    REAL NOT NULL,
	final_value  REAL NOT NULL,
	pnl          REAL NOT NULL,
	pnl_pct      REAL NOT NULL,
	trade_count  INTEGER NOT NULL,
	buy_count    INTEGER NOT NULL,
	sell_count   INTEGER NOT NULL,
	hold_count   INTEGER NOT NULL,
	started_at   TIMESTAMP,
	ended_at     TIMESTAMP NOT NULL,
	duration_s   INTEGER NOT NULL DEFAULT 0,
	notes        TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	trades_json  TEXT NOT NULL DEFAULT '[]',
	equity_json  TEXT NOT NULL DEFAULT '[]',
	saved_at     TIMESTAMP NOT NULL
);
`

// SQLiteStore is the single persistence backend: agent configuration, the
// append-only trade log, the holdings snapshot, price and equity time
// series, and the session archive, all in one embedded database.
type SQLiteStore struct {
	db              *sql.DB
	log             *applogger.Logger
	equityRetention int
}

// NewSQLiteStore wraps an opened database. equityRetention caps the stored
// equity curve per agent; 0 disables pruning.
func NewSQLiteStore(db *sql.DB, equityRetention int, log *applogger.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, log: log, equityRetention: equityRetention}
}

// Init creates the schema. Safe to call on every start.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateAgent(ctx context.Context, rec *models.AgentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, model, mode, allowance, goal, trade_interval_s, risk_profile, max_duration_s, started_at, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 1, ?)`,
		rec.ID, rec.Name, rec.Model, string(rec.Mode), rec.Allowance, rec.Goal,
		int64(rec.TradeInterval.Seconds()), string(rec.RiskProfile),
		int64(rec.MaxDuration.Seconds()), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// Agent loads one agent row whether or not it is still active, for session
// recovery over deactivated agents.
func (s *SQLiteStore) Agent(ctx context.Context, agentID string) (*models.AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, model, mode, allowance, goal, trade_interval_s, risk_profile, max_duration_s, started_at, active
		FROM agents WHERE id = ?`, agentID)

	var (
		rec             models.AgentRecord
		mode, risk      string
		intervalS, maxS int64
		startedAt       sql.NullTime
		active          int
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Model, &mode, &rec.Allowance, &rec.Goal,
		&intervalS, &risk, &maxS, &startedAt, &active); err != nil {
		return nil, err
	}
	rec.Mode = models.AgentMode(mode)
	rec.RiskProfile = models.RiskProfile(risk)
	rec.TradeInterval = time.Duration(intervalS) * time.Second
	rec.MaxDuration = time.Duration(maxS) * time.Second
	rec.Active = active == 1
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		rec.StartedAt = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) ActiveAgents(ctx context.Context) ([]*models.AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, model, mode, allowance, goal, trade_interval_s, risk_profile, max_duration_s, started_at
		FROM agents WHERE active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentRecord
	for rows.Next() {
		var (
			rec             models.AgentRecord
			mode, risk      string
			intervalS, maxS int64
			startedAt       sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Model, &mode, &rec.Allowance, &rec.Goal,
			&intervalS, &risk, &maxS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		rec.Mode = models.AgentMode(mode)
		rec.RiskProfile = models.RiskProfile(risk)
		rec.TradeInterval = time.Duration(intervalS) * time.Second
		rec.MaxDuration = time.Duration(maxS) * time.Second
		rec.Active = true
		if startedAt.Valid {
			t := startedAt.Time.UTC()
			rec.StartedAt = &t
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeactivateAgent(ctx context.Context, agentID string) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET active = 0 WHERE id = ?`)
}

func (s *SQLiteStore) SetAgentMode(ctx context.Context, agentID string, mode models.AgentMode) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET mode = ? WHERE id = ?`, string(mode))
}

func (s *SQLiteStore) SetAgentRisk(ctx context.Context, agentID string, profile models.RiskProfile) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET risk_profile = ? WHERE id = ?`, string(profile))
}

func (s *SQLiteStore) SetAgentMaxDuration(ctx context.Context, agentID string, d time.Duration) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET max_duration_s = ? WHERE id = ?`, int64(d.Seconds()))
}

func (s *SQLiteStore) SetAgentStartedAt(ctx context.Context, agentID string, t time.Time) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET started_at = ? WHERE id = ?`, t.UTC())
}

func (s *SQLiteStore) AddAllowance(ctx context.Context, agentID string, amount float64) error {
	return s.updateAgent(ctx, agentID, `UPDATE agents SET allowance = allowance + ? WHERE id = ?`, amount)
}

// updateAgent runs an UPDATE whose final placeholder is the agent id and
// maps "no row touched" to sql.ErrNoRows.
func (s *SQLiteStore) updateAgent(ctx context.Context, agentID, query string, args ...any) error {
	args = append(args, agentID)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveTrade appends the trade row and reconciles the holdings snapshot in
// one transaction, so a crash can never leave the log and the snapshot
// disagreeing. Hold rows skip the holdings step.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade, holding *models.Holding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (agent_id, symbol, side, quantity, price, total, reasoning, mode, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.AgentID, trade.Symbol, string(trade.Side), trade.Quantity, trade.Price,
		trade.Total, trade.Reasoning, string(trade.Mode), trade.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if trade.Side != models.SideHold {
		if holding != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO portfolios (agent_id, symbol, quantity, avg_cost)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(agent_id, symbol) DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost`,
				trade.AgentID, holding.Symbol, holding.Quantity, holding.AvgCost)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM portfolios WHERE agent_id = ? AND symbol = ?`,
				trade.AgentID, trade.Symbol)
		}
		if err != nil {
			return fmt.Errorf("reconcile holding: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SeedHolding(ctx context.Context, agentID string, h models.Holding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (agent_id, symbol, quantity, avg_cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, symbol) DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost`,
		agentID, h.Symbol, h.Quantity, h.AvgCost)
	if err != nil {
		return fmt.Errorf("seed holding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Holdings(ctx context.Context, agentID string) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, avg_cost FROM portfolios WHERE agent_id = ? ORDER BY symbol`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgCost); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Trades returns the trade log oldest first, for one agent or, with
// agentID == "", across all agents. limit == 0 returns the whole log;
// otherwise the most recent limit rows, still oldest first.
func (s *SQLiteStore) Trades(ctx context.Context, agentID string, limit int) ([]models.Trade, error) {
	where := `WHERE agent_id = ?`
	args := []any{agentID}
	if agentID == "" {
		where = ``
		args = nil
	}

	query := `SELECT agent_id, symbol, side, quantity, price, total, reasoning, mode, timestamp
		FROM trades ` + where + ` ORDER BY id`
	if limit > 0 {
		query = `SELECT agent_id, symbol, side, quantity, price, total, reasoning, mode, timestamp
			FROM (SELECT * FROM trades ` + where + ` ORDER BY id DESC LIMIT ?) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t          models.Trade
			side, mode string
		)
		if err := rows.Scan(&t.AgentID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Total,
			&t.Reasoning, &mode, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.TradeSide(side)
		t.Mode = models.TradeMode(mode)
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePriceSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_snapshots (symbol, price, change_24h, volume_24h, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for symbol, q := range snap {
		if _, err := stmt.ExecContext(ctx, symbol, q.Price, q.Change24h, q.Volume24h, q.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert price %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

// SaveEquityPoint appends a sample and prunes the agent's curve down to the
// configured retention.
func (s *SQLiteStore) SaveEquityPoint(ctx context.Context, agentID string, p models.EquityPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO equity_snapshots (agent_id, total_value, cash, timestamp)
		VALUES (?, ?, ?, ?)`,
		agentID, p.TotalValue, p.Cash, p.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}

	if s.equityRetention > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM equity_snapshots WHERE agent_id = ? AND id NOT IN (
				SELECT id FROM equity_snapshots WHERE agent_id = ? ORDER BY id DESC LIMIT ?)`,
			agentID, agentID, s.equityRetention)
		if err != nil {
			return fmt.Errorf("prune equity: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) EquityCurve(ctx context.Context, agentID string, limit int) ([]models.EquityPoint, error) {
	query := `SELECT total_value, cash, timestamp FROM equity_snapshots WHERE agent_id = ? ORDER BY id`
	args := []any{agentID}
	if limit > 0 {
		query = `SELECT total_value, cash, timestamp
			FROM (SELECT * FROM equity_snapshots WHERE agent_id = ? ORDER BY id DESC LIMIT ?) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var out []models.EquityPoint
	for rows.Next() {
		var p models.EquityPoint
		if err := rows.Scan(&p.TotalValue, &p.Cash, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *models.SavedSession) (int64, error) {
	tradesJSON, err := json.Marshal(sess.Trades)
	if err != nil {
		return 0, fmt.Errorf("marshal trades: %w", err)
	}
	equityJSON, err := json.Marshal(sess.Equity)
	if err != nil {
		return 0, fmt.Errorf("marshal equity: %w", err)
	}

	var startedAt any
	if sess.StartedAt != nil {
		startedAt = sess.StartedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_sessions (agent_id, agent_name, model, risk_profile, goal, allowance,
			final_value, pnl, pnl_pct, trade_count, buy_count, sell_count, hold_count,
			started_at, ended_at, duration_s, notes, summary, trades_json, equity_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)`,
		sess.AgentID, sess.AgentName, sess.Model, string(sess.RiskProfile), sess.Goal, sess.Allowance,
		sess.FinalValue, sess.PnL, sess.PnLPct, sess.TradeCount, sess.BuyCount, sess.SellCount, sess.HoldCount,
		startedAt, sess.EndedAt.UTC(), int64(sess.Duration.Seconds()), sess.Notes,
		string(tradesJSON), string(equityJSON), sess.SavedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSession rewrites a saved session's computed fields and serialized
// payloads in place; the summary is managed separately.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *models.SavedSession) error {
	tradesJSON, err := json.Marshal(sess.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}
	equityJSON, err := json.Marshal(sess.Equity)
	if err != nil {
		return fmt.Errorf("marshal equity: %w", err)
	}

	var startedAt any
	if sess.StartedAt != nil {
		startedAt = sess.StartedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE saved_sessions SET
			final_value = ?, pnl = ?, pnl_pct = ?,
			trade_count = ?, buy_count = ?, sell_count = ?, hold_count = ?,
			started_at = ?, ended_at = ?, duration_s = ?,
			goal = ?, notes = ?, trades_json = ?, equity_json = ?
		WHERE id = ?`,
		sess.FinalValue, sess.PnL, sess.PnLPct,
		sess.TradeCount, sess.BuyCount, sess.SellCount, sess.HoldCount,
		startedAt, sess.EndedAt.UTC(), int64(sess.Duration.Seconds()),
		sess.Goal, sess.Notes, string(tradesJSON), string(equityJSON),
		sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) SetSessionSummary(ctx context.Context, sessionID int64, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE saved_sessions SET summary = ? WHERE id = ?`, summary, sessionID)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const sessionColumns = `id, agent_id, agent_name, model, risk_profile, goal, allowance,
	final_value, pnl, pnl_pct, trade_count, buy_count, sell_count, hold_count,
	started_at, ended_at, duration_s, notes, summary, saved_at`

// Sessions lists the archive newest first, without the serialized trade and
// equity payloads.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]models.SavedSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM saved_sessions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SavedSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Session loads one archived session including its trade log and equity
// curve.
func (s *SQLiteStore) Session(ctx context.Context, sessionID int64) (*models.SavedSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`, trades_json, equity_json FROM saved_sessions WHERE id = ?`, sessionID)

	var (
		sess                   models.SavedSession
		risk                   string
		startedAt              sql.NullTime
		durationS              int64
		tradesJSON, equityJSON string
	)
	err := row.Scan(&sess.ID, &sess.AgentID, &sess.AgentName, &sess.Model, &risk, &sess.Goal, &sess.Allowance,
		&sess.FinalValue, &sess.PnL, &sess.PnLPct, &sess.TradeCount, &sess.BuyCount, &sess.SellCount, &sess.HoldCount,
		&startedAt, &sess.EndedAt, &durationS, &sess.Notes, &sess.Summary, &sess.SavedAt,
		&tradesJSON, &equityJSON)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.RiskProfile = models.RiskProfile(risk)
	sess.Duration = time.Duration(durationS) * time.Second
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		sess.StartedAt = &t
	}
	if err := json.Unmarshal([]byte(tradesJSON), &sess.Trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	if err := json.Unmarshal([]byte(equityJSON), &sess.Equity); err != nil {
		return nil, fmt.Errorf("decode equity: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanSession(rows *sql.Rows) (*models.SavedSession, error) {
	var (
		sess      models.SavedSession
		risk      string
		startedAt sql.NullTime
		durationS int64
	)
	err := rows.Scan(&sess.ID, &sess.AgentID, &sess.AgentName, &sess.Model, &risk, &sess.Goal, &sess.Allowance,
		&sess.FinalValue, &sess.PnL, &sess.PnLPct, &sess.TradeCount, &sess.BuyCount, &sess.SellCount, &sess.HoldCount,
		&startedAt, &sess.EndedAt, &durationS, &sess.Notes, &sess.Summary, &sess.SavedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.RiskProfile = models.RiskProfile(risk)
	sess.Duration = time.Duration(durationS) * time.Second
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		sess.StartedAt = &t
	}
	return &sess, nil
}
