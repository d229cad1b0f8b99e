package symbol

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/errs"
)

func errUnknown(sym string) error { return &errs.UnknownSymbolError{Symbol: sym} }

// Normalizer implements spec.md §4.1: risk_units, round_lot, info. It caches
// broker-provided NormalizedSymbolInfo in Redis with a provider-chosen TTL,
// grounded on market/redis_cache.go's RedisPriceCache shape — cache misses
// and Redis errors degrade gracefully to a live provider lookup rather than
// failing the call.
type Normalizer struct {
	provider Provider
	redis    *redis.Client
	ttl      time.Duration
}

// NewNormalizer builds a Normalizer. redisClient may be nil, in which case
// every lookup goes straight to the provider (no caching).
func NewNormalizer(provider Provider, redisClient *redis.Client, ttl time.Duration) *Normalizer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Normalizer{provider: provider, redis: redisClient, ttl: ttl}
}

func (n *Normalizer) cacheKey(sym string) string {
	return "inot:symbol_info:" + sym
}

// Info returns NormalizedSymbolInfo for sym, consulting the cache first.
func (n *Normalizer) Info(ctx context.Context, sym string) (Info, error) {
	if n.redis != nil {
		if cached, ok := n.getCached(ctx, sym); ok {
			return cached, nil
		}
	}

	info, err := n.provider.SymbolInfo(ctx, sym)
	if err != nil {
		return Info{}, err
	}
	info.FetchedAt = time.Now()

	if n.redis != nil {
		n.setCached(ctx, info)
	}
	return info, nil
}

func (n *Normalizer) getCached(ctx context.Context, sym string) (Info, bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := n.redis.Get(cacheCtx, n.cacheKey(sym)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("symbol", sym).Msg("symbol info cache error, falling back to provider")
		}
		return Info{}, false
	}

	var info Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("failed to unmarshal cached symbol info")
		return Info{}, false
	}
	return info, true
}

func (n *Normalizer) setCached(ctx context.Context, info Info) {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := n.redis.Set(cacheCtx, n.cacheKey(info.Symbol), data, n.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", info.Symbol).Msg("failed to cache symbol info")
	}
}

// RiskUnits converts a distance expressed in unit into monetary risk per one
// lot, per §4.1's semantics: FX pip = 1e-4 of price, FX_JPY pip = 1e-2;
// CRYPTO/CFD resolve through tick_size x tick_value since pip is undefined
// there.
func (n *Normalizer) RiskUnits(ctx context.Context, sym string, distance float64, unit Unit) (float64, error) {
	info, err := n.Info(ctx, sym)
	if err != nil {
		return 0, err
	}

	priceDistance, err := toPriceDistance(info, distance, unit)
	if err != nil {
		return 0, err
	}

	if info.TickSize <= 0 {
		return 0, &errs.InvalidUnitError{Symbol: sym, Unit: string(unit)}
	}

	ticks := priceDistance / info.TickSize
	return ticks * info.TickValueQuote, nil
}

// toPriceDistance converts distance in the given unit to a raw price delta.
func toPriceDistance(info Info, distance float64, unit Unit) (float64, error) {
	switch unit {
	case UnitPrice:
		return distance, nil
	case UnitTicks, UnitPoint:
		if info.TickSize <= 0 {
			return 0, &errs.InvalidUnitError{Symbol: info.Symbol, Unit: string(unit)}
		}
		return distance * info.TickSize, nil
	case UnitPips:
		pip := info.pipSize()
		if pip == 0 {
			// CRYPTO/CFD: pip undefined, resolve through tick size directly.
			if info.TickSize <= 0 {
				return 0, &errs.InvalidUnitError{Symbol: info.Symbol, Unit: string(unit)}
			}
			return distance * info.TickSize, nil
		}
		return distance * pip, nil
	default:
		return 0, &errs.InvalidUnitError{Symbol: info.Symbol, Unit: string(unit)}
	}
}

// RoundLot clamps rawSize to [min_lot, max_lot] and snaps down to the
// nearest lower multiple of lot_step, per §4.1 and the §8 invariant
// `round_lot(x) ∈ [min_lot, max_lot] ∧ (round_lot(x) − min_lot) mod lot_step = 0`.
func (n *Normalizer) RoundLot(ctx context.Context, sym string, rawSize float64) (float64, error) {
	info, err := n.Info(ctx, sym)
	if err != nil {
		return 0, err
	}
	return RoundLotWithInfo(info, rawSize), nil
}

// RoundLotWithInfo applies the rounding rule against already-resolved Info,
// letting callers who already hold an Info (e.g. the Execution Bridge
// mid-validation) avoid a redundant lookup.
func RoundLotWithInfo(info Info, rawSize float64) float64 {
	if rawSize < info.MinLot {
		return info.MinLot
	}
	if rawSize > info.MaxLot {
		return clampToStepFloor(info, info.MaxLot)
	}
	return clampToStepFloor(info, rawSize)
}

func clampToStepFloor(info Info, size float64) float64 {
	if info.LotStep <= 0 {
		return size
	}
	steps := math.Floor((size - info.MinLot) / info.LotStep)
	rounded := info.MinLot + steps*info.LotStep
	if rounded < info.MinLot {
		return info.MinLot
	}
	return rounded
}
