package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/service"
	"CarbonPulse/pkg/fixed"
)

// Feed keeps a live price over the oracle's WebSocket stream and serves it
// from cache. Price() never blocks on the network; if no frame has arrived
// yet it falls through to the HTTP client.
type Feed struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	fallback       service.PriceOracle
	log            zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	last      fixed.Num
	lastAt    time.Time
}

// NewFeed creates a streaming price feed. fallback may be nil; then Price
// fails until the first frame arrives.
func NewFeed(websocketURL string, reconnectDelay, pingInterval time.Duration, fallback service.PriceOracle, log zerolog.Logger) *Feed {
	return &Feed{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		fallback:       fallback,
		log:            log.With().Str("component", "oracle_feed").Logger(),
	}
}

// Connect establishes the WebSocket connection.
func (f *Feed) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("oracle connect: %w", err)
	}
	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()
	f.log.Info().Str("url", f.websocketURL).Msg("oracle feed connected")
	return nil
}

type priceFrame struct {
	Type  string    `json:"type"`
	Price fixed.Num `json:"price"`
	TS    int64     `json:"ts"` // ms
}

// Run reads price frames until the context ends, reconnecting after errors.
// Intended to run in its own goroutine.
func (f *Feed) Run(ctx context.Context) {
	go f.pingLoop(ctx)
	if !f.IsConnected() {
		if err := f.Connect(ctx); err != nil {
			f.log.Error().Err(err).Msg("oracle feed connect failed")
		}
	}
	for {
		if err := f.readLoop(ctx); err != nil {
			f.log.Error().Err(err).Msg("oracle feed read failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
		if err := f.Connect(ctx); err != nil {
			f.log.Error().Err(err).Msg("oracle feed reconnect failed")
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return fmt.Errorf("oracle feed not connected")
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return fmt.Errorf("oracle read: %w", err)
		}
		var frame priceFrame
		if err := json.Unmarshal(b, &frame); err != nil {
			// ignore non-price frames
			continue
		}
		if frame.Type != "price" {
			continue
		}
		f.mu.Lock()
		f.last = frame.Price
		f.lastAt = time.UnixMilli(frame.TS)
		f.mu.Unlock()
	}
}

// Price returns the last streamed price, or the fallback's quote before the
// first frame. No staleness cutoff is applied; Age exposes the frame age
// for observability.
func (f *Feed) Price(ctx context.Context) (fixed.Num, error) {
	f.mu.RLock()
	last, seeded := f.last, !f.lastAt.IsZero()
	f.mu.RUnlock()
	if seeded {
		return last, nil
	}
	if f.fallback != nil {
		return f.fallback.Price(ctx)
	}
	return fixed.Zero(), fmt.Errorf("oracle feed: no price received")
}

// Age returns how old the cached price is; zero duration when none arrived.
func (f *Feed) Age() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastAt.IsZero() {
		return 0
	}
	return time.Since(f.lastAt)
}

// IsConnected indicates status.
func (f *Feed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Close closes the WS connection.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

var _ service.PriceOracle = (*Feed)(nil)
