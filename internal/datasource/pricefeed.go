package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// bybitPublicWSURL is the spot public stream endpoint.
const bybitPublicWSURL = "wss://stream.bybit.com/v5/public/spot"

// PriceFeed maintains a live last-traded price per crypto pair over the
// Bybit public ticker stream. The trade tracker prefers this price over
// the last candle close when the feed is connected. Non-crypto symbols
// are not served; callers fall back to candle closes.
type PriceFeed struct {
	url  string
	log  zerolog.Logger
	conn *websocket.Conn

	mu     sync.RWMutex
	prices map[string]float64 // pair -> last price
	live   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPriceFeed creates an unconnected price feed.
func NewPriceFeed(log zerolog.Logger) *PriceFeed {
	return &PriceFeed{
		url:    bybitPublicWSURL,
		log:    log,
		prices: make(map[string]float64),
	}
}

// Start dials the stream and subscribes to tickers for the given pairs.
// The reader goroutine runs until Stop or a read failure; on failure the
// feed goes stale rather than erroring the scanner.
func (f *PriceFeed) Start(ctx context.Context, pairs []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial price feed: %w", err)
	}
	f.conn = conn

	args := make([]string, len(pairs))
	for i, pair := range pairs {
		args[i] = "tickers." + pair
	}
	sub := map[string]interface{}{"op": "subscribe", "args": args}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe price feed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	f.mu.Lock()
	f.live = true
	f.mu.Unlock()

	go f.readLoop(runCtx)
	go f.pingLoop(runCtx)
	return nil
}

// LastPrice returns the latest streamed price for the pair. ok is false
// when the feed is down or the pair has not ticked yet.
func (f *PriceFeed) LastPrice(pair string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.live {
		return 0, false
	}
	price, ok := f.prices[pair]
	return price, ok
}

// LastPriceFor resolves the instrument's pair and returns its live price.
func (f *PriceFeed) LastPriceFor(inst Instrument) (float64, bool) {
	if inst.Class != types.AssetCrypto {
		return 0, false
	}
	return f.LastPrice(inst.Pair)
}

// Stop closes the stream and waits for the reader to exit.
func (f *PriceFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.conn != nil {
		f.conn.Close()
	}
	if f.done != nil {
		<-f.done
	}
}

func (f *PriceFeed) readLoop(ctx context.Context) {
	defer close(f.done)
	defer func() {
		f.mu.Lock()
		f.live = false
		f.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn().Err(err).Msg("price feed read failed, going stale")
			}
			return
		}

		var msg struct {
			Topic string `json:"topic"`
			Data  struct {
				Symbol    string `json:"symbol"`
				LastPrice string `json:"lastPrice"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Data.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
		if err != nil || price <= 0 {
			continue
		}

		f.mu.Lock()
		f.prices[msg.Data.Symbol] = price
		f.mu.Unlock()
	}
}

func (f *PriceFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := map[string]string{"op": "ping"}
			if err := f.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
