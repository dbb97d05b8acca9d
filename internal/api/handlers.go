package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qqdanya/intradevor-sub000/internal/bot"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) systemStatus(c *gin.Context) {
	running := 0
	for _, b := range s.Bots.All() {
		if b.State().String() == "running" {
			running++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"demo_mode":    s.Meta.DemoMode,
		"mock_feed":    s.Meta.MockFeed,
		"version":      s.Meta.Version,
		"bots_total":   len(s.Bots.All()),
		"bots_running": running,
		"slots_used":   s.Slots.Used(),
		"slots_max":    s.Slots.Max(),
	})
}

func (s *Server) balance(c *gin.Context) {
	bal, err := s.Gateway.GetBalance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": bal.Amount.String(), "currency": bal.Currency})
}

func (s *Server) slots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"used": s.Slots.Used(), "max": s.Slots.Max()})
}

func (s *Server) peekSignal(c *gin.Context) {
	symbol := c.Param("symbol")
	tf := timeframe.Normalize(c.Param("timeframe"))
	snap := s.Bus.Peek(symbol, tf)
	c.JSON(http.StatusOK, gin.H{
		"symbol":       symbol,
		"timeframe":    tf,
		"version":      snap.Version,
		"direction":    snap.Direction.String(),
		"indicator":    snap.Indicator,
		"last_arrival": snap.LastArrival,
	})
}

type botView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	TradeType string `json:"trade_type"`
	Stake     string `json:"stake"`
	Currency  string `json:"currency"`
	State     string `json:"state"`
}

func (s *Server) listBots(c *gin.Context) {
	bots := s.Bots.All()
	out := make([]botView, 0, len(bots))
	for _, b := range bots {
		d := b.Definition()
		out = append(out, botView{
			ID:        d.ID,
			Name:      d.Name,
			Symbol:    d.Symbol,
			Timeframe: d.Timeframe,
			TradeType: d.TradeType,
			Stake:     d.Stake,
			Currency:  d.Currency,
			State:     b.State().String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"bots": out})
}

func (s *Server) withBot(c *gin.Context) (*bot.Bot, bool) {
	b, err := s.Bots.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return nil, false
	}
	return b, true
}

func (s *Server) startBot(c *gin.Context) {
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	if err := b.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": b.State().String()})
}

func (s *Server) pauseBot(c *gin.Context) {
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	b.Pause()
	c.JSON(http.StatusOK, gin.H{"state": b.State().String()})
}

func (s *Server) resumeBot(c *gin.Context) {
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	b.Resume()
	c.JSON(http.StatusOK, gin.H{"state": b.State().String()})
}

func (s *Server) stopBot(c *gin.Context) {
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	b.Stop()
	c.JSON(http.StatusOK, gin.H{"state": b.State().String()})
}

func (s *Server) botTrades(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	entries, err := s.Journal.Recent(c.Request.Context(), b.ID(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": entries})
}

func (s *Server) botStats(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	b, ok := s.withBot(c)
	if !ok {
		return
	}
	stats, err := s.Journal.BotStats(c.Request.Context(), b.ID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trades": stats.Trades,
		"wins":   stats.Wins,
		"losses": stats.Losses,
		"profit": stats.Profit.String(),
	})
}
