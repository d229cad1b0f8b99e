package indicators

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction is the order-builder's execution intent direction.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// OrderIntent is the order-builder tool's output — a deterministic
// translation of a non-vetoed decision into the shape the Execution Bridge
// consumes (spec.md §3's Signal entity). It is a plain value type here
// rather than the Bridge's own type so the Tool Stack never imports the
// bridge package.
type OrderIntent struct {
	Symbol     string
	Direction  Direction
	Lots       float64
	Confidence float64
	StopLoss   *float64
	TakeProfit *float64
	Reasoning  string
	DecisionID uuid.UUID
}

// BuildOrderIntent deterministically maps a BUY/SELL action and its sized
// lots into an OrderIntent. action must be "BUY" or "SELL" — a HOLD or
// vetoed decision never reaches the order builder.
func (s *Service) BuildOrderIntent(decisionID uuid.UUID, symbol, action string, lots, confidence float64, stopLoss, takeProfit *float64, reasoning string) (OrderIntent, error) {
	var direction Direction
	switch action {
	case "BUY":
		direction = DirectionLong
	case "SELL":
		direction = DirectionShort
	default:
		return OrderIntent{}, fmt.Errorf("order builder: action must be BUY or SELL, got %q", action)
	}
	if lots <= 0 {
		return OrderIntent{}, fmt.Errorf("order builder: lots must be positive, got %f", lots)
	}

	return OrderIntent{
		Symbol:     symbol,
		Direction:  direction,
		Lots:       lots,
		Confidence: confidence,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Reasoning:  reasoning,
		DecisionID: decisionID,
	}, nil
}
