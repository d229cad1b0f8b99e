package inot

import (
	"fmt"
	"strings"

	"github.com/inot-trading/core/internal/memory"
)

// memorySummaryTokenBudget and approxCharsPerToken implement the §4.5
// "token-budgeted memory summary (<= 1000 tokens)" requirement without a
// real tokenizer: four characters per token is a conservative average for
// the short, numeric-heavy lines this summary renders.
const (
	memorySummaryTokenBudget = 1000
	approxCharsPerToken      = 4
)

const orchestratorPreamble = `You are the reasoning core of an automated trading decision pipeline.
Given the market CONTEXT and MEMORY SUMMARY below, reason through four
sections in a fixed order — SIGNAL, RISK, CONTEXT, SYNTHESIS — and respond
with exactly one JSON array containing one object per section, in that
order. Use only the fields each section specifies. Do not include markdown
fences or any prose outside the JSON array.`

const signalSectionSpec = `SIGNAL object fields: action ("BUY"|"SELL"|"HOLD"), confidence (0.0-1.0), reasoning (string).`
const riskSectionSpec = `RISK object fields: approved (bool), confidence (0.0-1.0), position_size_adjustment (0.0-2.0), stop_loss_required (bool), veto_reason (string, present only when approved is false).`
const contextSectionSpec = `CONTEXT object fields: regime (string), regime_confidence (0.0-1.0), signal_regime_fit (0.0-1.0).`
const synthesisSectionSpec = `SYNTHESIS object fields: final_decision { action, lots, stop_loss (optional), take_profit (optional), confidence, reasoning }.`

// buildPrompt assembles the deterministic template spec.md §4.5 requires:
// a fixed instruction preamble, a context block, a token-budgeted memory
// summary, and the four agent section specs, in that order. postscript is
// appended only on a stricter-prompt retry after a ValidationError.
func buildPrompt(fc FusedContext, snap memory.MemorySnapshot, postscript string) string {
	var b strings.Builder
	b.WriteString(orchestratorPreamble)
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(formatFusedContext(fc))
	b.WriteString("\n\nMEMORY SUMMARY:\n")
	b.WriteString(formatMemorySummary(snap))
	b.WriteString("\n\n")
	b.WriteString(signalSectionSpec)
	b.WriteString("\n")
	b.WriteString(riskSectionSpec)
	b.WriteString("\n")
	b.WriteString(contextSectionSpec)
	b.WriteString("\n")
	b.WriteString(synthesisSectionSpec)
	if postscript != "" {
		b.WriteString("\n\n")
		b.WriteString(postscript)
	}
	return b.String()
}

func formatFusedContext(fc FusedContext) string {
	lines := []string{
		fmt.Sprintf("symbol: %s", fc.Symbol),
		fmt.Sprintf("price: %.5f", fc.Price),
		fmt.Sprintf("rsi: %.2f", fc.RSI),
		fmt.Sprintf("macd: %.5f signal_line: %.5f histogram: %.5f", fc.MACD, fc.MACDSignalLine, fc.MACDHistogram),
		fmt.Sprintf("bollinger: upper=%.5f middle=%.5f lower=%.5f position=%.2f", fc.BBUpper, fc.BBMiddle, fc.BBLower, fc.BBPosition),
		fmt.Sprintf("regime: %s volatility: %.2f", fc.Regime, fc.Volatility),
		fmt.Sprintf("composite_signal: %.2f agreement_score: %.2f", fc.CompositeSignal, fc.AgreementScore),
		fmt.Sprintf("account: balance=%.2f equity=%.2f open_positions=%d", fc.Account.Balance, fc.Account.Equity, fc.Account.OpenPositions),
		fmt.Sprintf("risk_parameters: risk_per_trade=%.4f max_spread_pips=%.1f max_open_lots=%.2f", fc.Risk.RiskPerTrade, fc.Risk.MaxSpreadPips, fc.Risk.MaxOpenLots),
	}

	if len(fc.LatestNews) == 0 {
		lines = append(lines, "latest_news: none")
	} else {
		lines = append(lines, "latest_news:")
		for _, n := range fc.LatestNews {
			lines = append(lines, fmt.Sprintf("  - %q sentiment=%.2f major=%t", n.Title, n.SentimentScore, n.IsMajorEvent))
		}
	}

	if len(fc.UpcomingEvents) == 0 {
		lines = append(lines, "upcoming_events: none")
	} else {
		lines = append(lines, "upcoming_events:")
		for _, e := range fc.UpcomingEvents {
			lines = append(lines, fmt.Sprintf("  - %s impact=%s in=%s", e.Category, e.Impact, e.ScheduledIn))
		}
	}

	return strings.Join(lines, "\n")
}

// formatMemorySummary renders a MemorySnapshot, clipped to roughly
// memorySummaryTokenBudget tokens, per spec.md §4.5.
func formatMemorySummary(snap memory.MemorySnapshot) string {
	lines := []string{
		fmt.Sprintf("current_regime: %s", snap.CurrentRegime),
		fmt.Sprintf("win_rate_30d: %.2f total_trades_30d: %d", snap.WinRate30d, snap.TotalTrades30d),
		fmt.Sprintf("avg_win_pips: %.1f avg_loss_pips: %.1f", snap.AvgWinPips, snap.AvgLossPips),
	}

	if len(snap.SimilarPatterns) > 0 {
		lines = append(lines, "similar_patterns:")
		for _, p := range snap.SimilarPatterns {
			lines = append(lines, fmt.Sprintf("  - %s win_rate=%.2f avg_pips=%.1f n=%d", p.PatternID, p.WinRate, p.AvgPips, p.SampleSize))
		}
	}

	if len(snap.RecentDecisions) > 0 {
		lines = append(lines, "recent_decisions:")
		for _, d := range snap.RecentDecisions {
			lines = append(lines, fmt.Sprintf("  - %s %s conf=%.2f vetoed=%t", d.Symbol, d.Action, d.Confidence, d.Vetoed))
		}
	}

	return clipToTokenBudget(strings.Join(lines, "\n"), memorySummaryTokenBudget)
}

func clipToTokenBudget(s string, tokenBudget int) string {
	maxChars := tokenBudget * approxCharsPerToken
	if len(s) <= maxChars {
		return s
	}
	clipped := s[:maxChars]
	if idx := strings.LastIndex(clipped, "\n"); idx > 0 {
		clipped = clipped[:idx]
	}
	return clipped + "\n... (memory summary truncated to token budget)"
}
