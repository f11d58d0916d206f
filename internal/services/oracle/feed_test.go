package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"CarbonPulse/pkg/fixed"
)

func TestRunConnectsImmediately(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(priceFrame{Type: "price", Price: fixed.FromInt(42), TS: time.Now().UnixMilli()})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	// The reconnect delay is deliberately huge: the first frame has to
	// arrive through the initial connection attempt, not a retry.
	f := NewFeed(url, time.Hour, time.Hour, nil, zerolog.Nop())
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, err := f.Price(ctx); err == nil && p.Equal(fixed.FromInt(42)) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no price received through the initial connection")
}
