package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inot-trading/core/internal/resilience"
)

func newTestStore(t *testing.T, mock pgxmock.PgxPoolIface) *Store {
	t.Helper()
	reg := resilience.NewBreakerRegistry(prometheus.NewRegistry())
	breaker := reg.Register(resilience.BreakerConfig{
		Name:                 "database-test",
		FailureThreshold:     3,
		RecoveryTimeout:      time.Second,
		HalfOpenMaxSuccesses: 1,
	})
	return NewStore(mock, breaker)
}

func TestStore_SaveDecision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	d := StoredDecision{
		ID:         uuid.New(),
		Symbol:     "EUR/USD",
		Action:     ActionBuy,
		Confidence: 0.72,
		Lots:       0.1,
		Context:    ContextSnapshot{Price: 1.085, RSI: 55, MACD: 0.001, BB: 0.5, Regime: "TRENDING"},
	}

	mock.ExpectExec("INSERT INTO decisions").WithArgs(
		d.ID, pgxmock.AnyArg(), d.Symbol, d.Action, d.Confidence, d.Lots, d.StopLoss, d.TakeProfit,
		d.Context.Price, d.Context.RSI, d.Context.MACD, d.Context.BB, d.Context.Regime,
		d.SignalOutput, d.RiskOutput, d.ContextOutput, d.SynthOutput,
		d.Vetoed, d.VetoReason,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveDecision(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveOutcome_RejectsSignMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	err = store.SaveOutcome(context.Background(), TradeOutcome{
		DecisionID: uuid.New(),
		Result:     ResultWin,
		Pips:       -5, // WIN must have pips > 0
	})
	require.Error(t, err)
	// No query should have been issued.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveOutcome_Valid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	o := TradeOutcome{
		DecisionID:      uuid.New(),
		Result:          ResultLoss,
		Pips:            -12.5,
		DurationMinutes: 45,
		ExitReason:      ExitStopLoss,
	}

	mock.ExpectExec("INSERT INTO outcomes").WithArgs(
		o.DecisionID, pgxmock.AnyArg(), o.Result, o.Pips, o.DurationMinutes, o.ExitReason,
		o.FillPrice, o.ExitPrice,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveOutcome(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindSimilarPatterns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	rows := pgxmock.NewRows([]string{
		"pattern_id", "rsi_min", "rsi_max", "macd_signal", "bb_position", "regime",
		"win_rate", "avg_pips", "sample_size", "last_updated",
	}).AddRow("p1", 60.0, 80.0, 1, "UPPER", "TRENDING", 0.6, 12.0, 50, time.Now())

	mock.ExpectQuery("SELECT pattern_id").
		WithArgs(70.0, 1, "UPPER", "TRENDING", 5).
		WillReturnRows(rows)

	patterns, err := store.FindSimilarPatterns(context.Background(), 70.0, 1, "UPPER", "TRENDING", 5)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "p1", patterns[0].PatternID)
	assert.GreaterOrEqual(t, patterns[0].SampleSize, 10)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClearOldData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM outcomes").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM decisions").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM patterns").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.ClearOldData(context.Background(), 90))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_HealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	empty := pgxmock.NewRows([]string{"?column?"})
	mock.ExpectQuery("SELECT 1 FROM decisions").WillReturnRows(empty)
	mock.ExpectQuery("SELECT 1 FROM outcomes").WillReturnRows(empty)
	mock.ExpectQuery("SELECT 1 FROM patterns").WillReturnRows(empty)

	require.NoError(t, store.HealthCheck(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadCalibrationSamples(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newTestStore(t, mock)

	rows := pgxmock.NewRows([]string{"confidence", "result"}).
		AddRow(0.8, ResultWin).
		AddRow(0.3, ResultLoss)

	mock.ExpectQuery("SELECT d.confidence, o.result").WillReturnRows(rows)

	samples, err := store.LoadCalibrationSamples(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1.0, samples[0].win)
	assert.Equal(t, 0.0, samples[1].win)

	require.NoError(t, mock.ExpectationsWereMet())
}
