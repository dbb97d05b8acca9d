// Package ingest receives trading signals over WebSocket and feeds them to
// the signal bus. The producer sends JSON frames:
//
//	{"symbol": "EURUSD", "timeframe": "M1", "direction": 1,
//	 "indicator": "ConnorsRSI", "datetime": "...", "next_datetime": "..."}
//
// direction arrives as 1/2 or as the spellings up/down/buy/sell.
package ingest

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

type frame struct {
	Symbol       string          `json:"symbol"`
	Timeframe    string          `json:"timeframe"`
	Direction    json.RawMessage `json:"direction"`
	Indicator    string          `json:"indicator"`
	Datetime     string          `json:"datetime"`
	NextDatetime string          `json:"next_datetime"`
}

// Client maintains one producer connection with reconnect and backoff.
type Client struct {
	URL   string
	Token string
	Bus   *signal.Bus
	// MaxAge drops frames whose candle time is already too old to trade.
	MaxAge time.Duration
	Log    zerolog.Logger
}

// Run connects and consumes until ctx ends. Disconnects reconnect with
// exponential backoff capped at 30s.
func (c *Client) Run(ctx context.Context) error {
	if c.MaxAge <= 0 {
		c.MaxAge = 2 * time.Minute
	}
	log := c.Log.With().Str("component", "ingest").Logger()

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := c.consume(ctx, log)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("signal feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (c *Client) consume(ctx context.Context, log zerolog.Logger) error {
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Str("url", c.URL).Msg("connected to signal feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				conn.Close() // unblocks ReadMessage
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		c.handle(raw, log)
	}
}

func (c *Client) handle(raw []byte, log zerolog.Logger) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn().Err(err).Msg("bad signal frame")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(f.Symbol))
	tf := timeframe.Normalize(f.Timeframe)
	if symbol == "" || !timeframe.Known(tf) {
		log.Debug().Str("symbol", f.Symbol).Str("timeframe", f.Timeframe).Msg("frame ignored")
		return
	}

	candleTime, ok := parseTime(f.Datetime)
	if !ok {
		log.Debug().Str("datetime", f.Datetime).Msg("frame has unparseable candle time")
		return
	}
	nextCandle, _ := parseTime(f.NextDatetime)

	dir := parseDirection(f.Direction)
	if !dir.Usable() {
		log.Debug().Str("symbol", symbol).Str("direction", string(f.Direction)).Msg("frame without usable direction")
		return
	}
	if !c.Bus.PushIfFresh(symbol, tf, dir, f.Indicator, candleTime, nextCandle, c.MaxAge) {
		metrics.SignalsDroppedStale.Inc()
		return
	}
	metrics.SignalsReceived.WithLabelValues(symbol, tf).Inc()
}

// parseDirection accepts both the numeric and the string wire spellings.
func parseDirection(raw json.RawMessage) signal.Direction {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	return signal.ParseDirection(strings.ToLower(s))
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
