package binance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTrade(t *testing.T) {
	w := NewWorker("wss://stream.binance.com:9443", []string{"BTCUSDT"})

	t.Run("valid trade event", func(t *testing.T) {
		msg := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"50123.45","T":1700000000000}}`)
		tick, ok := w.parseTrade(msg)
		if !ok {
			t.Fatal("expected parse to succeed")
		}
		if tick.Symbol != "BTCUSDT" {
			t.Errorf("symbol = %s, want BTCUSDT", tick.Symbol)
		}
		if !tick.Price.Equal(decimal.NewFromFloat(50123.45)) {
			t.Errorf("price = %v, want 50123.45", tick.Price)
		}
		if tick.Ts.UnixMilli() != 1700000000000 {
			t.Errorf("ts = %d, want 1700000000000", tick.Ts.UnixMilli())
		}
	})

	t.Run("non-trade event ignored", func(t *testing.T) {
		msg := []byte(`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","s":"BTCUSDT"}}`)
		if _, ok := w.parseTrade(msg); ok {
			t.Error("expected non-trade event to be skipped")
		}
	})

	t.Run("malformed json ignored", func(t *testing.T) {
		if _, ok := w.parseTrade([]byte("{not json")); ok {
			t.Error("expected malformed message to be skipped")
		}
	})

	t.Run("non-positive price ignored", func(t *testing.T) {
		msg := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"0","T":1700000000000}}`)
		if _, ok := w.parseTrade(msg); ok {
			t.Error("expected zero price to be skipped")
		}
	})
}

func TestPingLoopExitsWithReader(t *testing.T) {
	w := NewWorker("wss://stream.binance.com:9443", []string{"BTCUSDT"})

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		w.pingLoop(context.Background(), done)
		close(finished)
	}()

	// Closing done is what readLoop's defer does on exit; the pinger must
	// not park on its ticker until process shutdown.
	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("ping loop still running after the reader exited")
	}
}
