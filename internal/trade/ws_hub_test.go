package trade_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gameoftrades/engine/internal/metrics"
	"github.com/gameoftrades/engine/internal/model"
	"github.com/gameoftrades/engine/internal/trade"
)

// The hub must upgrade through the same middleware chain main.go installs;
// a response writer wrapper that hides http.Hijacker breaks the handshake.
func TestHandleWS_UpgradesThroughMetricsMiddleware(t *testing.T) {
	hub := trade.NewWSHub()
	go hub.Run()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/api/v1/ws", hub.HandleWS)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101 Switching Protocols, got %d", resp.StatusCode)
	}
}

func TestHandleWS_ReceivesTickBroadcast(t *testing.T) {
	hub := trade.NewWSHub()
	go hub.Run()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/api/v1/ws", hub.HandleWS)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Broadcast repeatedly: registration happens on the hub goroutine and
	// may land after the dial returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				hub.BroadcastTick(model.Stock{
					Symbol:    "TATA",
					Price:     d(980),
					PrevPrice: d(1000),
				})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg trade.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %q: %v", data, err)
	}
	if msg.Type != "tick" || msg.Symbol != "TATA" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.PctChange != "-2" {
		t.Errorf("expected pct change -2, got %q", msg.PctChange)
	}
}
