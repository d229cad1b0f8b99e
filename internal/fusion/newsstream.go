package fusion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// NewsFetcher retrieves news published since the given time. Concrete
// providers (a headline API, an RSS aggregator) implement this; NewsStream
// itself stays provider-agnostic, the same Provider-interface decision
// made for the Symbol Normalizer.
type NewsFetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]NewsEvent, error)
}

// NewsStream polls a NewsFetcher on a fixed interval, rate-limited so a
// slow or misconfigured provider can never be hammered — grounded on the
// pack's adapter rate-limiting convention (golang.org/x/time/rate.Limiter
// guarding outbound calls) applied here to a polling producer instead of a
// request/response adapter.
type NewsStream struct {
	*baseStream
	fetcher  NewsFetcher
	interval time.Duration
	limiter  *rate.Limiter

	since  time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNewsStream constructs a NewsStream polling fetcher every interval
// (default 30s), rate-limited to ratePerMinute requests/minute (default 10).
func NewNewsStream(id string, fetcher NewsFetcher, interval time.Duration, ratePerMinute int, queueCap int) *NewsStream {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &NewsStream{
		baseStream: newBaseStream(id, queueCap),
		fetcher:    fetcher,
		interval:   interval,
		limiter:    rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		since:      time.Now().UTC(),
	}
}

func (n *NewsStream) Connect(ctx context.Context) error {
	n.setStatus(StatusConnecting)
	if n.fetcher == nil {
		n.setStatus(StatusError)
		return fmt.Errorf("news stream %s: no fetcher configured", n.id)
	}
	return nil
}

func (n *NewsStream) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})

	n.setStatus(StatusActive)
	go n.pollLoop(runCtx)
	return nil
}

func (n *NewsStream) pollLoop(ctx context.Context) {
	defer close(n.done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.poll(ctx)
		}
	}
}

func (n *NewsStream) poll(ctx context.Context) {
	if err := n.limiter.Wait(ctx); err != nil {
		return
	}

	events, err := n.fetcher.FetchSince(ctx, n.since)
	if err != nil {
		log.Warn().Err(err).Str("stream", n.id).Msg("news stream: fetch failed")
		n.setStatus(StatusError)
		return
	}
	n.setStatus(StatusActive)

	for _, e := range events {
		n.push(e)
		if e.Timestamp.After(n.since) {
			n.since = e.Timestamp
		}
	}
}

func (n *NewsStream) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	if n.done != nil {
		<-n.done
	}
	n.setStatus(StatusPaused)
}

func (n *NewsStream) Close() error {
	n.Stop()
	n.setStatus(StatusClosed)
	return nil
}
