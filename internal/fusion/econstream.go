package fusion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// EconomicCalendarFetcher retrieves scheduled macro releases in
// [windowStart, windowEnd]. Concrete providers implement this; the stream
// stays provider-agnostic.
type EconomicCalendarFetcher interface {
	FetchWindow(ctx context.Context, windowStart, windowEnd time.Time) ([]EconomicEvent, error)
}

// EconomicCalendarStream polls an EconomicCalendarFetcher for a rolling
// lookahead window, the same rate-limited poll-loop shape as NewsStream —
// calendars change far less often than news, so the default interval and
// rate are both coarser.
type EconomicCalendarStream struct {
	*baseStream
	fetcher   EconomicCalendarFetcher
	interval  time.Duration
	lookahead time.Duration
	limiter   *rate.Limiter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEconomicCalendarStream constructs a stream polling fetcher every
// interval (default 5m) for events within lookahead (default 24h),
// rate-limited to ratePerMinute requests/minute (default 2).
func NewEconomicCalendarStream(id string, fetcher EconomicCalendarFetcher, interval, lookahead time.Duration, ratePerMinute int, queueCap int) *EconomicCalendarStream {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 2
	}
	return &EconomicCalendarStream{
		baseStream: newBaseStream(id, queueCap),
		fetcher:    fetcher,
		interval:   interval,
		lookahead:  lookahead,
		limiter:    rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
	}
}

func (e *EconomicCalendarStream) Connect(ctx context.Context) error {
	e.setStatus(StatusConnecting)
	if e.fetcher == nil {
		e.setStatus(StatusError)
		return fmt.Errorf("economic calendar stream %s: no fetcher configured", e.id)
	}
	return nil
}

func (e *EconomicCalendarStream) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	e.setStatus(StatusActive)
	go e.pollLoop(runCtx)
	return nil
}

func (e *EconomicCalendarStream) pollLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *EconomicCalendarStream) poll(ctx context.Context) {
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}

	now := time.Now().UTC()
	events, err := e.fetcher.FetchWindow(ctx, now, now.Add(e.lookahead))
	if err != nil {
		log.Warn().Err(err).Str("stream", e.id).Msg("economic calendar stream: fetch failed")
		e.setStatus(StatusError)
		return
	}
	e.setStatus(StatusActive)

	for _, ev := range events {
		e.push(ev)
	}
}

func (e *EconomicCalendarStream) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		<-e.done
	}
	e.setStatus(StatusPaused)
}

func (e *EconomicCalendarStream) Close() error {
	e.Stop()
	e.setStatus(StatusClosed)
	return nil
}
