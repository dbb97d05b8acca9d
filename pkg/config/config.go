package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the execution engine.
type Config struct {
	Port string

	// Signal feed
	UseMockFeed     bool
	SignalWSURL     string
	SignalWSToken   string
	MockSymbols     []string
	MockIntervalSec int

	// Broker
	DemoBalance   float64
	DemoCurrency  string
	DemoPayout    int     // percent
	DemoWinRate   float64 // 0..1, paper venue only
	BrokerRateRPS float64
	BrokerBurst   int

	// Execution
	MaxOpenTrades       int
	AllowParallelTrades bool

	// Bots
	BotsFile string

	// Trade journal
	JournalPath string
	JournalOff  bool

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		UseMockFeed:         getEnv("USE_MOCK_FEED", "true") == "true",
		SignalWSURL:         getEnv("SIGNAL_WS_URL", "ws://localhost:8765/signals"),
		SignalWSToken:       os.Getenv("SIGNAL_WS_TOKEN"),
		MockSymbols:         splitAndTrim(getEnv("MOCK_SYMBOLS", "")),
		MockIntervalSec:     getEnvInt("MOCK_INTERVAL_SEC", 5),
		DemoBalance:         getEnvFloat("DEMO_BALANCE", 10000.0),
		DemoCurrency:        strings.ToUpper(getEnv("DEMO_CURRENCY", "RUB")),
		DemoPayout:          getEnvInt("DEMO_PAYOUT", 85),
		DemoWinRate:         getEnvFloat("DEMO_WIN_RATE", 0.55),
		BrokerRateRPS:       getEnvFloat("BROKER_RATE_RPS", 5),
		BrokerBurst:         getEnvInt("BROKER_BURST", 5),
		MaxOpenTrades:       getEnvInt("MAX_OPEN_TRADES", 5),
		AllowParallelTrades: getEnv("ALLOW_PARALLEL_TRADES", "false") == "true",
		BotsFile:            getEnv("BOTS_FILE", "./bots.yaml"),
		JournalPath:         getEnv("JOURNAL_PATH", "./data/trades.db"),
		JournalOff:          getEnv("JOURNAL_OFF", "false") == "true",
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:           getEnv("LOG_PRETTY", "true") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
