// Package binance streams live trade ticks from the Binance combined
// websocket feed.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	maxRetries       = 10
)

// streamEnvelope is one combined-stream message.
type streamEnvelope struct {
	Stream string       `json:"stream"`
	Data   tradeMessage `json:"data"`
}

// tradeMessage is a Binance @trade event.
type tradeMessage struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"` // milliseconds
}

// Worker handles the Binance websocket connection lifecycle: dial,
// subscribe, read, and reconnect with exponential backoff.
type Worker struct {
	baseURL string
	symbols []string
	out     chan domain.RawTick

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a Binance feed worker for the given symbols.
func NewWorker(baseURL string, symbols []string) *Worker {
	return &Worker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		symbols: symbols,
		out:     make(chan domain.RawTick, 256),
	}
}

// Start begins the connection loop.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// Stop tears the connection down and waits for the loops to exit.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

// Ticks is the outbound stream of live observations.
func (w *Worker) Ticks() <-chan domain.RawTick {
	return w.out
}

// IsConnected reports whether the websocket is currently up.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Binance connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.ReconnectDelay(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

// connect dials the combined stream for all configured symbols.
func (w *Worker) connect(ctx context.Context) error {
	streams := make([]string, len(w.symbols))
	for i, sym := range w.symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", w.baseURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Binance connected", slog.Int("streams", len(streams)))
	return nil
}

func (w *Worker) readLoop(ctx context.Context) {
	defer w.closeConnection()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go w.pingLoop(ctx, done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("Binance read failed", slog.Any("error", err))
			return
		}

		tick, ok := w.parseTrade(message)
		if !ok {
			continue
		}
		select {
		case w.out <- tick:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive until the reader exits. done is
// closed by readLoop so no pinger outlives its connection across
// reconnects.
func (w *Worker) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c == nil {
				return
			}
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// parseTrade converts one @trade event into a raw tick.
func (w *Worker) parseTrade(message []byte) (domain.RawTick, bool) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return domain.RawTick{}, false
	}
	if env.Data.EventType != "trade" || env.Data.Symbol == "" {
		return domain.RawTick{}, false
	}

	price, err := decimal.NewFromString(env.Data.Price)
	if err != nil || !price.IsPositive() {
		return domain.RawTick{}, false
	}

	return domain.RawTick{
		Symbol: env.Data.Symbol,
		Price:  price,
		Ts:     time.UnixMilli(env.Data.TradeTime),
	}, true
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}
