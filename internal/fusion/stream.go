package fusion

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DataStream is one async event producer (§4.4). Connect establishes the
// underlying transport; Start begins pushing events into the stream's own
// bounded queue; Stop halts production without closing the transport;
// Close releases the transport. GetEvent drains the oldest queued event for
// a consumer (the Temporal Aligner); GetStats reports lifetime counters.
type DataStream interface {
	ID() string
	Status() StreamStatus
	Connect(ctx context.Context) error
	Start(ctx context.Context) error
	Stop()
	Close() error
	GetEvent() (Event, bool)
	GetStats() StreamStats
}

// baseStream implements the bounded-queue, status-lifecycle, and
// drop-counting machinery shared by every concrete stream, grounded on the
// teacher's Hub (cmd/api/websocket.go): a buffered channel feeding a single
// consumer, with an explicit drop-oldest policy when the channel is full
// rather than blocking the producer.
type baseStream struct {
	id string

	mu       sync.RWMutex
	status   StreamStatus
	dropped  int64
	lastTime Event

	queue chan Event
	cap   int
}

func newBaseStream(id string, queueCap int) *baseStream {
	if queueCap <= 0 {
		queueCap = 1000
	}
	return &baseStream{
		id:     id,
		status: StatusIdle,
		queue:  make(chan Event, queueCap),
		cap:    queueCap,
	}
}

func (s *baseStream) ID() string { return s.id }

func (s *baseStream) Status() StreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *baseStream) setStatus(status StreamStatus) {
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.mu.Unlock()

	if prev != status {
		log.Info().Str("stream", s.id).Str("from", string(prev)).Str("to", string(status)).Msg("stream status transition")
	}
}

// push enqueues an event, dropping the oldest queued event (not the new
// one) when the queue is full, per §4.4's "when full, the oldest event is
// dropped" rule.
func (s *baseStream) push(e Event) {
	for {
		select {
		case s.queue <- e:
			s.mu.Lock()
			s.lastTime = e
			s.mu.Unlock()
			return
		default:
			select {
			case <-s.queue:
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
			default:
			}
		}
	}
}

// GetEvent drains the oldest queued event, non-blocking.
func (s *baseStream) GetEvent() (Event, bool) {
	select {
	case e := <-s.queue:
		return e, true
	default:
		return nil, false
	}
}

func (s *baseStream) GetStats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := StreamStats{
		Status:       s.status,
		EventsQueued: len(s.queue),
		Dropped:      s.dropped,
	}
	if s.lastTime != nil {
		stats.LastEventAt = s.lastTime.EventTime()
	}
	return stats
}
