package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/resilience"
)

// Pool is the subset of pgxpool.Pool's surface the Memory Store needs,
// grounded on risk/calculator.go's PoolInterface — satisfied by both
// *pgxpool.Pool and pgxmock.PgxPoolIface so tests never touch a real
// database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the Memory Store of spec.md §4.3: a pgx/v5-backed pool holding
// three logical tables (decisions, outcomes, patterns), every query routed
// through a dedicated "database" circuit breaker, grounded on db.DB's
// ExecuteWithCircuitBreaker wrapping.
type Store struct {
	pool    Pool
	breaker *resilience.CircuitBreaker
}

// NewStore wires a pgxpool.Pool behind a circuit breaker obtained from the
// shared BreakerRegistry (the "database" dependency class, per SPEC_FULL.md's
// dual-breaker supplement).
func NewStore(pool Pool, breaker *resilience.CircuitBreaker) *Store {
	return &Store{pool: pool, breaker: breaker}
}

func (s *Store) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.breaker.Execute(ctx, fn)
	if err != nil {
		return &errs.StorageError{Op: op, Err: err}
	}
	return nil
}

// SaveDecision upserts by id, serializing each agent's output as an opaque
// JSON blob, per §4.3.
func (s *Store) SaveDecision(ctx context.Context, d StoredDecision) error {
	return s.exec(ctx, "save_decision", func(ctx context.Context) error {
		const q = `
			INSERT INTO decisions (
				id, ts, symbol, action, confidence, lots, stop_loss, take_profit,
				price, rsi, macd, bb_position, regime,
				signal_output, risk_output, context_output, synth_output,
				vetoed, veto_reason
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8,
				$9, $10, $11, $12, $13,
				$14, $15, $16, $17,
				$18, $19
			)
			ON CONFLICT (id) DO UPDATE SET
				action = EXCLUDED.action,
				confidence = EXCLUDED.confidence,
				lots = EXCLUDED.lots,
				stop_loss = EXCLUDED.stop_loss,
				take_profit = EXCLUDED.take_profit,
				vetoed = EXCLUDED.vetoed,
				veto_reason = EXCLUDED.veto_reason
		`
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.Timestamp.IsZero() {
			d.Timestamp = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx, q,
			d.ID, d.Timestamp.UTC(), d.Symbol, d.Action, d.Confidence, d.Lots, d.StopLoss, d.TakeProfit,
			d.Context.Price, d.Context.RSI, d.Context.MACD, d.Context.BB, d.Context.Regime,
			d.SignalOutput, d.RiskOutput, d.ContextOutput, d.SynthOutput,
			d.Vetoed, d.VetoReason,
		)
		return err
	})
}

// SaveOutcome upserts by decision_id, per §4.3. It rejects outcomes whose
// result/pips sign disagree before touching the database.
func (s *Store) SaveOutcome(ctx context.Context, o TradeOutcome) error {
	if err := o.Validate(); err != nil {
		return &errs.StorageError{Op: "save_outcome", Err: err}
	}
	return s.exec(ctx, "save_outcome", func(ctx context.Context) error {
		const q = `
			INSERT INTO outcomes (
				decision_id, closed_at, result, pips, duration_minutes, exit_reason,
				fill_price, exit_price
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (decision_id) DO UPDATE SET
				closed_at = EXCLUDED.closed_at,
				result = EXCLUDED.result,
				pips = EXCLUDED.pips,
				duration_minutes = EXCLUDED.duration_minutes,
				exit_reason = EXCLUDED.exit_reason,
				fill_price = EXCLUDED.fill_price,
				exit_price = EXCLUDED.exit_price
		`
		if o.ClosedAt.IsZero() {
			o.ClosedAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx, q,
			o.DecisionID, o.ClosedAt.UTC(), o.Result, o.Pips, o.DurationMinutes, o.ExitReason,
			o.FillPrice, o.ExitPrice,
		)
		return err
	})
}

// LoadSnapshot aggregates the last 10 decisions, 30d win-rate, avg win/loss
// pips, total trades, current regime, and top similar patterns, per §4.3.
// symbol is optional; an empty string means "all symbols".
func (s *Store) LoadSnapshot(ctx context.Context, days int, symbol string) (MemorySnapshot, error) {
	var snap MemorySnapshot

	err := s.exec(ctx, "load_snapshot", func(ctx context.Context) error {
		recent, err := s.recentDecisions(ctx, symbol, 10)
		if err != nil {
			return fmt.Errorf("recent decisions: %w", err)
		}
		snap.RecentDecisions = recent
		if len(recent) > 0 {
			snap.CurrentRegime = recent[0].Context.Regime
		}

		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		stats, err := s.outcomeStats(ctx, symbol, cutoff)
		if err != nil {
			return fmt.Errorf("outcome stats: %w", err)
		}
		snap.WinRate30d = stats.winRate
		snap.AvgWinPips = stats.avgWin
		snap.AvgLossPips = stats.avgLoss
		snap.TotalTrades30d = stats.total

		patterns, err := s.topPatterns(ctx, 5)
		if err != nil {
			return fmt.Errorf("top patterns: %w", err)
		}
		snap.SimilarPatterns = patterns
		return nil
	})
	return snap, err
}

func (s *Store) recentDecisions(ctx context.Context, symbol string, limit int) ([]StoredDecision, error) {
	const qAll = `
		SELECT id, ts, symbol, action, confidence, lots, stop_loss, take_profit,
		       price, rsi, macd, bb_position, regime, vetoed, veto_reason
		FROM decisions ORDER BY ts DESC LIMIT $1
	`
	const qSymbol = `
		SELECT id, ts, symbol, action, confidence, lots, stop_loss, take_profit,
		       price, rsi, macd, bb_position, regime, vetoed, veto_reason
		FROM decisions WHERE symbol = $1 ORDER BY ts DESC LIMIT $2
	`
	var rows pgx.Rows
	var err error
	if symbol == "" {
		rows, err = s.pool.Query(ctx, qAll, limit)
	} else {
		rows, err = s.pool.Query(ctx, qSymbol, symbol, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredDecision
	for rows.Next() {
		var d StoredDecision
		if err := rows.Scan(
			&d.ID, &d.Timestamp, &d.Symbol, &d.Action, &d.Confidence, &d.Lots, &d.StopLoss, &d.TakeProfit,
			&d.Context.Price, &d.Context.RSI, &d.Context.MACD, &d.Context.BB, &d.Context.Regime,
			&d.Vetoed, &d.VetoReason,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type outcomeAggregate struct {
	winRate float64
	avgWin  float64
	avgLoss float64
	total   int
}

func (s *Store) outcomeStats(ctx context.Context, symbol string, cutoff time.Time) (outcomeAggregate, error) {
	const qAll = `
		SELECT
			COUNT(*) FILTER (WHERE result <> 'BREAKEVEN') AS decided,
			COUNT(*) FILTER (WHERE result = 'WIN') AS wins,
			COALESCE(AVG(pips) FILTER (WHERE result = 'WIN'), 0) AS avg_win,
			COALESCE(AVG(pips) FILTER (WHERE result = 'LOSS'), 0) AS avg_loss,
			COUNT(*) AS total
		FROM outcomes o
		JOIN decisions d ON d.id = o.decision_id
		WHERE o.closed_at >= $1 AND ($2 = '' OR d.symbol = $2)
	`
	var decided, wins, total int
	var avgWin, avgLoss float64
	if err := s.pool.QueryRow(ctx, qAll, cutoff, symbol).Scan(&decided, &wins, &avgWin, &avgLoss, &total); err != nil {
		return outcomeAggregate{}, err
	}

	agg := outcomeAggregate{avgWin: avgWin, avgLoss: avgLoss, total: total}
	if decided > 0 {
		agg.winRate = float64(wins) / float64(decided)
	}
	return agg, nil
}

func (s *Store) topPatterns(ctx context.Context, limit int) ([]Pattern, error) {
	const q = `
		SELECT pattern_id, rsi_min, rsi_max, macd_signal, bb_position, regime,
		       win_rate, avg_pips, sample_size, last_updated
		FROM patterns WHERE sample_size >= 10
		ORDER BY sample_size DESC LIMIT $1
	`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(
			&p.PatternID, &p.RSIMin, &p.RSIMax, &p.MACDSignal, &p.BBPosition, &p.Regime,
			&p.WinRate, &p.AvgPips, &p.SampleSize, &p.LastUpdated,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindSimilarPatterns implements the keyed similarity lookup of §4.3: RSI
// must fall within [rsiMin,rsiMax] of the stored pattern bucket, MACD sign
// must match macdSignal, bbPosition/regime filter when non-empty.
func (s *Store) FindSimilarPatterns(ctx context.Context, rsi float64, macdSignal int, bbPosition, regime string, limit int) ([]Pattern, error) {
	var out []Pattern
	err := s.exec(ctx, "find_similar_patterns", func(ctx context.Context) error {
		const q = `
			SELECT pattern_id, rsi_min, rsi_max, macd_signal, bb_position, regime,
			       win_rate, avg_pips, sample_size, last_updated
			FROM patterns
			WHERE sample_size >= 10
			  AND $1 BETWEEN rsi_min AND rsi_max
			  AND macd_signal = $2
			  AND ($3 = '' OR bb_position = $3)
			  AND ($4 = '' OR regime = $4)
			ORDER BY sample_size DESC
			LIMIT $5
		`
		rows, err := s.pool.Query(ctx, q, rsi, macdSignal, bbPosition, regime, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p Pattern
			if err := rows.Scan(
				&p.PatternID, &p.RSIMin, &p.RSIMax, &p.MACDSignal, &p.BBPosition, &p.Regime,
				&p.WinRate, &p.AvgPips, &p.SampleSize, &p.LastUpdated,
			); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// ClearOldData deletes decisions/outcomes/patterns older than the cutoff,
// per §4.3. Outcomes are deleted before decisions to respect the foreign
// key; patterns are aggregate, not time-owned by a single decision, and are
// pruned on their own last_updated.
func (s *Store) ClearOldData(ctx context.Context, days int) error {
	return s.exec(ctx, "clear_old_data", func(ctx context.Context) error {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM outcomes WHERE decision_id IN (SELECT id FROM decisions WHERE ts < $1)`, cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM decisions WHERE ts < $1`, cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM patterns WHERE last_updated < $1`, cutoff); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// HealthCheck verifies the schema by probing the decisions, outcomes and
// patterns tables with an empty SELECT; it does not write or read back a
// probe key.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.exec(ctx, "health_check", func(ctx context.Context) error {
		var one int
		if err := s.pool.QueryRow(ctx, `SELECT 1 FROM decisions LIMIT 0`).Scan(&one); err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("decisions table probe: %w", err)
		}
		if err := s.pool.QueryRow(ctx, `SELECT 1 FROM outcomes LIMIT 0`).Scan(&one); err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("outcomes table probe: %w", err)
		}
		if err := s.pool.QueryRow(ctx, `SELECT 1 FROM patterns LIMIT 0`).Scan(&one); err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("patterns table probe: %w", err)
		}
		return nil
	})
}

// LoadCalibrationSamples returns every closed-trade (predicted_confidence,
// actual_win) pair the Calibrator needs to refit, per §4.5.
func (s *Store) LoadCalibrationSamples(ctx context.Context) ([]calibrationPoint, error) {
	var out []calibrationPoint
	err := s.exec(ctx, "load_calibration_samples", func(ctx context.Context) error {
		const q = `
			SELECT d.confidence, o.result
			FROM outcomes o
			JOIN decisions d ON d.id = o.decision_id
			WHERE o.result <> 'BREAKEVEN'
		`
		rows, err := s.pool.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var confidence float64
			var result OutcomeResult
			if err := rows.Scan(&confidence, &result); err != nil {
				return err
			}
			win := 0.0
			if result == ResultWin {
				win = 1.0
			}
			out = append(out, calibrationPoint{predicted: confidence, win: win})
		}
		return rows.Err()
	})
	return out, err
}

// MarshalAgentOutput is a small helper the INoT Orchestrator uses to store an
// agent's parsed struct as the opaque JSON blob §4.3 expects.
func MarshalAgentOutput(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal agent output for storage")
		return []byte("{}")
	}
	return b
}
