package inot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/memory"
)

func mockLLMServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": content}},
			},
			"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

const validDecisionJSON = `[
  {"action":"BUY","confidence":0.8,"reasoning":"strong uptrend"},
  {"approved":true,"confidence":0.7,"position_size_adjustment":1.0,"stop_loss_required":true},
  {"regime":"TRENDING","regime_confidence":0.9,"signal_regime_fit":0.85},
  {"final_decision":{"action":"BUY","lots":0.5,"stop_loss":1.095,"confidence":0.75,"reasoning":"synthesis agrees"}}
]`

func TestOrchestrator_Decide_ApprovedProducesBuy(t *testing.T) {
	server := mockLLMServer(t, validDecisionJSON)
	defer server.Close()

	o := NewOrchestrator(Config{
		Client: ClientConfig{Endpoint: server.URL},
		Budget: BudgetConfig{MaxDecisionsPerDay: 100},
	}, nil)

	d, err := o.Decide(context.Background(), FusedContext{Symbol: "EURUSD"}, memory.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.False(t, d.Vetoed)
	assert.InDelta(t, 0.5, d.Lots, 1e-9)
	assert.Greater(t, d.Confidence, 0.0)
	assert.Less(t, d.Confidence, 1.0)
}

const vetoedRiskJSON = `[
  {"action":"BUY","confidence":0.8,"reasoning":"strong uptrend"},
  {"approved":false,"confidence":0.7,"position_size_adjustment":1.0,"stop_loss_required":false,"veto_reason":"correlation limit breached"},
  {"regime":"TRENDING","regime_confidence":0.9,"signal_regime_fit":0.85},
  {"final_decision":{"action":"BUY","lots":0.5,"confidence":0.75,"reasoning":"synthesis agrees"}}
]`

func TestOrchestrator_Decide_RiskRejectionForcesHold(t *testing.T) {
	server := mockLLMServer(t, vetoedRiskJSON)
	defer server.Close()

	o := NewOrchestrator(Config{Client: ClientConfig{Endpoint: server.URL}}, nil)

	d, err := o.Decide(context.Background(), FusedContext{Symbol: "EURUSD"}, memory.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
	assert.True(t, d.Vetoed)
	assert.Equal(t, "correlation limit breached", d.VetoReason)
	assert.Equal(t, 0.0, d.Lots)
}

func TestOrchestrator_Decide_MalformedOutputFallsBackToSafeHold(t *testing.T) {
	server := mockLLMServer(t, "not json at all, sorry")
	defer server.Close()

	o := NewOrchestrator(Config{Client: ClientConfig{Endpoint: server.URL}, MaxAttempts: 2}, nil)

	d, err := o.Decide(context.Background(), FusedContext{Symbol: "EURUSD"}, memory.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
	assert.True(t, d.Vetoed)
	assert.Equal(t, "reasoning failure", d.VetoReason)
}

func TestOrchestrator_Decide_BudgetExceeded(t *testing.T) {
	server := mockLLMServer(t, validDecisionJSON)
	defer server.Close()

	o := NewOrchestrator(Config{
		Client: ClientConfig{Endpoint: server.URL},
		Budget: BudgetConfig{MaxDecisionsPerDay: 1},
	}, nil)

	_, err := o.Decide(context.Background(), FusedContext{Symbol: "EURUSD"}, memory.MemorySnapshot{})
	require.NoError(t, err)

	_, err = o.Decide(context.Background(), FusedContext{Symbol: "EURUSD"}, memory.MemorySnapshot{})
	require.Error(t, err)

	var budgetErr *errs.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "decisions_per_day", budgetErr.Quota)
}
