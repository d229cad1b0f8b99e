package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	priceReadWait  = 60 * time.Second
	pricePingEvery = (priceReadWait * 9) / 10
)

// tickMessage is the wire shape a price feed publishes per tick.
type tickMessage struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Bid       *float64  `json:"bid,omitempty"`
	Ask       *float64  `json:"ask,omitempty"`
}

// PriceStream is a DataStream backed by a gorilla/websocket connection to a
// real-time price feed, grounded on the teacher's Hub/Client read pump
// (cmd/api/websocket.go): a read goroutine pushing decoded messages into a
// bounded channel, with ping/pong keepalive and graceful close-on-error.
type PriceStream struct {
	*baseStream
	url  string
	conn *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPriceStream constructs a PriceStream that will dial url on Connect.
func NewPriceStream(id, url string, queueCap int) *PriceStream {
	return &PriceStream{
		baseStream: newBaseStream(id, queueCap),
		url:        url,
	}
}

func (p *PriceStream) Connect(ctx context.Context) error {
	p.setStatus(StatusConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, nil)
	if err != nil {
		p.setStatus(StatusError)
		return fmt.Errorf("price stream %s: dial: %w", p.id, err)
	}
	p.conn = conn
	return nil
}

func (p *PriceStream) Start(ctx context.Context) error {
	if p.conn == nil {
		return fmt.Errorf("price stream %s: Start called before Connect", p.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.setStatus(StatusActive)
	go p.readLoop(runCtx)
	return nil
}

func (p *PriceStream) readLoop(ctx context.Context) {
	defer close(p.done)

	_ = p.conn.SetReadDeadline(time.Now().Add(priceReadWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(priceReadWait))
	})

	go p.pingLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("stream", p.id).Msg("price stream read error")
			}
			p.setStatus(StatusError)
			return
		}

		var msg tickMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Str("stream", p.id).Msg("price stream: malformed tick, dropping")
			continue
		}

		p.push(PriceTick{
			Symbol:    msg.Symbol,
			Timestamp: msg.Timestamp.UTC(),
			Open:      msg.Open,
			High:      msg.High,
			Low:       msg.Low,
			Close:     msg.Close,
			Volume:    msg.Volume,
			Bid:       msg.Bid,
			Ask:       msg.Ask,
		})
	}
}

func (p *PriceStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pricePingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *PriceStream) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	p.setStatus(StatusPaused)
}

func (p *PriceStream) Close() error {
	p.Stop()
	p.setStatus(StatusClosed)
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
