// Package indicators implements the Tool Stack (spec.md §2 component E):
// pure deterministic analytics — RSI, MACD, Bollinger Bands, a hand-rolled
// ADX-driven regime detector, a composite signal, risk sizing, and the
// order builder — consumed by the Input Fusion Engine when assembling a
// FusedContext and by the Decision Engine when turning a Decision into an
// execution Signal. Unlike the teacher's LLM-tool-calling Service (each
// indicator invoked ad hoc via a JSON args map), the orchestrator here is a
// single structured completion (§4.5), so every analytic runs ahead of time
// against a plain price series instead of being dispatched per tool call.
package indicators

import "github.com/rs/zerolog/log"

// Service holds no state today but is kept as the stable construction point
// for every analytic below, grounded on the teacher's indicators.Service.
type Service struct{}

// NewService constructs the Tool Stack service.
func NewService() *Service {
	log.Info().Msg("tool stack indicator service initialized")
	return &Service{}
}

// toChannel feeds a price series into a channel, the shape cinar/indicator's
// streaming Compute() API expects.
func toChannel(prices []float64) <-chan float64 {
	ch := make(chan float64, len(prices))
	for _, p := range prices {
		ch <- p
	}
	close(ch)
	return ch
}

// drain collects every value a streaming indicator channel yields.
func drain(ch <-chan float64) []float64 {
	var out []float64
	for v := range ch {
		out = append(out, v)
	}
	return out
}
