// Package api exposes the engine's control surface: bot lifecycle, signal
// state, slot usage, the trade journal, and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/bot"
	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/journal"
	"github.com/qqdanya/intradevor-sub000/internal/limits"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
)

// Server wires HTTP endpoints around the engine.
type Server struct {
	Router  *gin.Engine
	Bots    *bot.Manager
	Bus     *signal.Bus
	Slots   *limits.SlotLimiter
	Gateway broker.Gateway
	Journal *journal.Journal // optional
	Meta    SystemMeta
	log     zerolog.Logger
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	DemoMode bool
	MockFeed bool
	Version  string
}

func NewServer(bots *bot.Manager, bus *signal.Bus, slots *limits.SlotLimiter, gw broker.Gateway, jrnl *journal.Journal, meta SystemMeta, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Bots:    bots,
		Bus:     bus,
		Slots:   slots,
		Gateway: gw,
		Journal: jrnl,
		Meta:    meta,
		log:     log.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.systemStatus)
		api.GET("/balance", s.balance)
		api.GET("/slots", s.slots)
		api.GET("/signals/:symbol/:timeframe", s.peekSignal)

		bots := api.Group("/bots")
		{
			bots.GET("", s.listBots)
			bots.POST("/:id/start", s.startBot)
			bots.POST("/:id/pause", s.pauseBot)
			bots.POST("/:id/resume", s.resumeBot)
			bots.POST("/:id/stop", s.stopBot)
			bots.GET("/:id/trades", s.botTrades)
			bots.GET("/:id/stats", s.botStats)
		}
	}
}

// Serve runs the HTTP server until it fails.
func (s *Server) Serve(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("api listening")
	return srv.ListenAndServe()
}
