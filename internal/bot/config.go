package bot

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/executor"
	"github.com/qqdanya/intradevor-sub000/pkg/symbols"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

// Definition is one bot entry in YAML.
type Definition struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	TradeType string `yaml:"trade_type"` // sprint | classic
	Minutes   int    `yaml:"minutes"`
	Stake     string `yaml:"stake"`
	Currency  string `yaml:"currency"`
	Policy    string `yaml:"policy"` // only "fixed" is built in
	// PayoutFloor refuses trades quoted below this percent.
	PayoutFloor int `yaml:"payout_floor"`
	// BalanceFloor refuses trades that would drop the balance below it.
	BalanceFloor string `yaml:"balance_floor"`
	// IndicatorFilter, when set, only reacts to signals from this indicator.
	IndicatorFilter string `yaml:"indicator_filter"`
	// SignalMaxAgeSec overrides the wait-side freshness window.
	SignalMaxAgeSec int  `yaml:"signal_max_age_sec"`
	Autostart       bool `yaml:"autostart"`
}

// DefinitionsFile is the top-level YAML structure.
type DefinitionsFile struct {
	Bots []Definition `yaml:"bots"`
}

// LoadDefinitions reads bot definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions parses and validates bot definitions from YAML bytes.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file DefinitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i := range file.Bots {
		if err := file.Bots[i].validate(); err != nil {
			return nil, fmt.Errorf("bot %q: %w", file.Bots[i].ID, err)
		}
	}
	return file.Bots, nil
}

func (d *Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if d.Symbol != symbols.Any {
		d.Symbol = symbols.API(d.Symbol)
	}
	if d.Timeframe == "" {
		d.Timeframe = timeframe.Any
	}
	if d.Timeframe != timeframe.Any {
		d.Timeframe = timeframe.Normalize(d.Timeframe)
		if !timeframe.Valid(d.Timeframe) {
			return fmt.Errorf("unknown timeframe %q", d.Timeframe)
		}
	}
	switch d.TradeType {
	case "", string(broker.Sprint):
		d.TradeType = string(broker.Sprint)
		m, ok := broker.NormalizeSprint(d.Symbol, d.Minutes)
		if !ok {
			return fmt.Errorf("sprint duration %d not offered for %s", d.Minutes, d.Symbol)
		}
		d.Minutes = m
	case string(broker.Classic):
		if d.Timeframe != timeframe.Any && !executor.ClassicTimeframeAllowed(d.Timeframe) {
			return fmt.Errorf("timeframe %s has no classic expiry", d.Timeframe)
		}
	default:
		return fmt.Errorf("unknown trade type %q", d.TradeType)
	}
	if d.Currency == "" {
		d.Currency = "RUB"
	}
	if d.Policy == "" {
		d.Policy = "fixed"
	}
	if d.Policy != "fixed" {
		return fmt.Errorf("unknown stake policy %q", d.Policy)
	}
	if d.Stake == "" {
		return fmt.Errorf("stake is required")
	}
	if _, err := decimal.NewFromString(d.Stake); err != nil {
		return fmt.Errorf("bad stake %q: %w", d.Stake, err)
	}
	if d.BalanceFloor != "" {
		if _, err := decimal.NewFromString(d.BalanceFloor); err != nil {
			return fmt.Errorf("bad balance floor %q: %w", d.BalanceFloor, err)
		}
	}
	return nil
}

// StakeAmount returns the parsed stake. validate has already checked it.
func (d Definition) StakeAmount() decimal.Decimal {
	v, _ := decimal.NewFromString(d.Stake)
	return v
}

// BalanceFloorAmount returns the parsed balance floor, zero when unset.
func (d Definition) BalanceFloorAmount() decimal.Decimal {
	if d.BalanceFloor == "" {
		return decimal.Zero
	}
	v, _ := decimal.NewFromString(d.BalanceFloor)
	return v
}

// SignalMaxAge returns the wait-side freshness window, falling back to the
// trade type's placement window.
func (d Definition) SignalMaxAge() time.Duration {
	if d.SignalMaxAgeSec > 0 {
		return time.Duration(d.SignalMaxAgeSec) * time.Second
	}
	if d.TradeType == string(broker.Classic) {
		return executor.ClassicMaxAge
	}
	return executor.SprintMaxAge
}
