package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qqdanya/intradevor-sub000/internal/api"
	"github.com/qqdanya/intradevor-sub000/internal/bot"
	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/executor"
	"github.com/qqdanya/intradevor-sub000/internal/ingest"
	"github.com/qqdanya/intradevor-sub000/internal/journal"
	"github.com/qqdanya/intradevor-sub000/internal/limits"
	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/payout"
	"github.com/qqdanya/intradevor-sub000/internal/queue"
	sig "github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/pkg/config"
)

const version = "1.0.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)
	log.Info().Str("version", version).Msg("starting execution engine")

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trade journal
	var jrnl *journal.Journal
	if !cfg.JournalOff {
		jrnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.JournalPath).Msg("open journal")
		}
		defer jrnl.Close()
	}

	// Broker: paper venue wrapped with a rate limiter and a circuit breaker.
	paper := broker.NewPaper(decimal.NewFromFloat(cfg.DemoBalance), cfg.DemoCurrency, cfg.DemoPayout, cfg.DemoWinRate, log)
	var gw broker.Gateway = broker.NewBreaking(broker.NewRateLimited(paper, cfg.BrokerRateRPS, cfg.BrokerBurst), "paper")

	// Shared execution infrastructure
	bus := sig.NewBus(log)
	payouts := payout.NewCache(payout.DefaultTTL)
	slots := limits.NewSlotLimiter(cfg.MaxOpenTrades)
	placing := queue.NewSerial[string](64, log)
	settling := executor.NewSettlementQueue(cfg.MaxOpenTrades, 64, log)
	defer placing.Stop()
	defer settling.Stop()

	deps := bot.Deps{
		Bus:                 bus,
		Gateway:             gw,
		Payouts:             payouts,
		Slots:               slots,
		Placing:             placing,
		Settling:            settling,
		GlobalLock:          &sync.Mutex{},
		AllowParallelTrades: cfg.AllowParallelTrades,
		Journal:             jrnl,
		Log:                 log,
	}

	obs := executor.Observers{
		OnStatus: func(text string) {
			log.Info().Msg(text)
		},
		OnTradePending: func(p executor.PendingTrade) {
			log.Info().
				Str("trade_id", p.TradeID).
				Str("bot", p.Bot).
				Str("symbol", p.Symbol).
				Str("direction", p.Direction).
				Str("stake", p.Stake.String()).
				Int("payout", p.PayoutPercent).
				Msg("trade pending")
		},
		OnTradeResult: func(r executor.TradeResult) {
			log.Info().
				Str("trade_id", r.TradeID).
				Str("bot", r.Bot).
				Str("profit", r.Profit.String()).
				Bool("known", r.Known).
				Msg("trade settled")
		},
	}

	// Bots
	mgr := bot.NewManager()
	defs, err := bot.LoadDefinitions(cfg.BotsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BotsFile).Msg("load bot definitions")
	}
	for _, def := range defs {
		b := bot.New(def, deps, obs)
		if err := mgr.Add(b); err != nil {
			log.Fatal().Err(err).Str("bot", def.ID).Msg("register bot")
		}
		if def.Autostart {
			if err := b.Start(); err != nil {
				log.Error().Err(err).Str("bot", def.ID).Msg("autostart failed")
			}
		}
	}
	log.Info().Int("bots", len(defs)).Msg("bots loaded")

	// Signal feed
	if cfg.UseMockFeed {
		mock := &ingest.Mock{
			Bus:      bus,
			Symbols:  cfg.MockSymbols,
			Interval: time.Duration(cfg.MockIntervalSec) * time.Second,
			Log:      log,
		}
		go func() {
			if err := mock.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("mock feed stopped")
			}
		}()
	} else {
		client := &ingest.Client{
			URL:   cfg.SignalWSURL,
			Token: cfg.SignalWSToken,
			Bus:   bus,
			Log:   log,
		}
		go func() {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("signal feed stopped")
			}
		}()
	}

	// HTTP API
	meta := api.SystemMeta{DemoMode: true, MockFeed: cfg.UseMockFeed, Version: version}
	srv := api.NewServer(mgr, bus, slots, gw, jrnl, meta, log)
	go func() {
		if err := srv.Serve(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancel()
	mgr.StopAll()
	log.Info().Msg("stopped")
}
