package indicators

import "fmt"

// SizingInput is the account/risk context the risk-sizing tool needs to
// convert a stop-loss distance into a lot size (spec.md §2 component E).
type SizingInput struct {
	AccountBalance float64
	RiskPerTrade   float64 // fraction of balance risked, e.g. 0.01 for 1%
	RiskPerLot     float64 // monetary risk of one lot moving the stop-loss distance (symbol.Normalizer.RiskUnits)
}

// SuggestedLots computes a raw (unrounded) lot size that risks exactly
// RiskPerTrade of AccountBalance if the stop-loss is hit. Callers round the
// result through the Symbol Normalizer before using it as an order size.
func (s *Service) SuggestedLots(in SizingInput) (float64, error) {
	if in.AccountBalance <= 0 {
		return 0, fmt.Errorf("account balance must be positive, got %f", in.AccountBalance)
	}
	if in.RiskPerTrade <= 0 || in.RiskPerTrade > 1 {
		return 0, fmt.Errorf("risk per trade must be in (0, 1], got %f", in.RiskPerTrade)
	}
	if in.RiskPerLot <= 0 {
		return 0, fmt.Errorf("risk per lot must be positive, got %f", in.RiskPerLot)
	}

	riskBudget := in.AccountBalance * in.RiskPerTrade
	return riskBudget / in.RiskPerLot, nil
}
