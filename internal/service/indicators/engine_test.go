package indicators

import (
	"math"
	"testing"
	"time"

	"StockSage/internal/domain/models"
)

func flatCandles(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{
			Bucket: t.AddDate(0, 0, i),
			Open:   price, High: price, Low: price, Close: price,
			Volume: 1000,
		}
	}
	return out
}

func trendCandles(n int, start, step float64) []models.Candle {
	out := make([]models.Candle, n)
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := start
	for i := range out {
		out[i] = models.Candle{
			Bucket: t.AddDate(0, 0, i),
			Open:   p, High: p + 1, Low: p - 1, Close: p,
			Volume: 1000,
		}
		p += step
	}
	return out
}

func TestComputeInsufficientHistory(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.Compute(flatCandles(10, 100)); err == nil {
		t.Fatal("expected error for short candle series")
	}
}

func TestComputeFlatSeries(t *testing.T) {
	e := NewEngine()
	ind, signals, err := e.Compute(flatCandles(250, 100))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if ind.Price != 100 {
		t.Fatalf("price = %v, want 100", ind.Price)
	}
	for name, got := range map[string]float64{
		"sma20": ind.SMA20, "sma50": ind.SMA50, "sma200": ind.SMA200,
		"ema12": ind.EMA12, "ema26": ind.EMA26, "bb_middle": ind.BBMiddle,
	} {
		if math.Abs(got-100) > 1e-9 {
			t.Fatalf("%s = %v, want 100", name, got)
		}
	}
	if math.Abs(ind.MACD) > 1e-9 {
		t.Fatalf("macd = %v, want 0", ind.MACD)
	}
	if signals["overall"] != "neutral" && signals["overall"] != "bearish" {
		// Flat price pins MACD to zero; overall must not read bullish.
		t.Fatalf("overall = %q on flat series", signals["overall"])
	}
}

func TestComputeUptrend(t *testing.T) {
	e := NewEngine()
	ind, signals, err := e.Compute(trendCandles(250, 50, 0.5))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if ind.Price <= ind.SMA200 {
		t.Fatalf("price %v should exceed sma200 %v in uptrend", ind.Price, ind.SMA200)
	}
	if signals["long_term_trend"] != "bullish" {
		t.Fatalf("long_term_trend = %q, want bullish", signals["long_term_trend"])
	}
	if signals["ma_crossover"] != "golden_cross" {
		t.Fatalf("ma_crossover = %q, want golden_cross", signals["ma_crossover"])
	}
	if signals["macd_signal"] != "bullish" {
		t.Fatalf("macd_signal = %q, want bullish", signals["macd_signal"])
	}
	if signals["overall"] != "bullish" {
		t.Fatalf("overall = %q, want bullish", signals["overall"])
	}
	if ind.RSI < 50 {
		t.Fatalf("rsi = %v, want >= 50 in steady uptrend", ind.RSI)
	}
}

func TestComputeDowntrend(t *testing.T) {
	e := NewEngine()
	ind, signals, err := e.Compute(trendCandles(250, 200, -0.5))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if signals["long_term_trend"] != "bearish" {
		t.Fatalf("long_term_trend = %q, want bearish", signals["long_term_trend"])
	}
	if signals["overall"] != "bearish" {
		t.Fatalf("overall = %q, want bearish", signals["overall"])
	}
	if ind.RSI > 50 {
		t.Fatalf("rsi = %v, want <= 50 in steady downtrend", ind.RSI)
	}
}

func TestSupportResistance(t *testing.T) {
	candles := trendCandles(100, 100, 1)
	lo, hi := supportResistance(candles, 20)
	if lo >= hi {
		t.Fatalf("support %v not below resistance %v", lo, hi)
	}
	last := candles[len(candles)-1]
	if hi != last.High {
		t.Fatalf("resistance = %v, want %v", hi, last.High)
	}
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 60)
	for i := range up {
		up[i] = float64(i)
	}
	if got := RSI(up, 14); got != 100 {
		t.Fatalf("rsi of strict uptrend = %v, want 100", got)
	}
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Fatalf("rsi with short history = %v, want neutral 50", got)
	}
}

func TestConfluenceScoreBullish(t *testing.T) {
	c := ConfluenceScore(map[string]string{
		"long_term_trend": "bullish",
		"ma_crossover":    "golden_cross",
		"macd_signal":     "bullish",
		"rsi_signal":      "oversold_buy",
		"volume":          "high",
	})
	if c.Label != "strong_buy" {
		t.Fatalf("label = %q, want strong_buy", c.Label)
	}
	if c.Score < 0.9 || c.Score > 1 {
		t.Fatalf("score = %v, want near 1", c.Score)
	}
	if c.Bonus <= 0 {
		t.Fatalf("bonus = %v, want positive for four aligned signals", c.Bonus)
	}
}

func TestConfluenceScoreBearish(t *testing.T) {
	c := ConfluenceScore(map[string]string{
		"long_term_trend": "bearish",
		"ma_crossover":    "death_cross",
		"macd_signal":     "bearish",
		"rsi_signal":      "overbought_sell",
		"volume":          "normal",
	})
	if c.Label != "strong_sell" {
		t.Fatalf("label = %q, want strong_sell", c.Label)
	}
	if c.Bonus >= 0 {
		t.Fatalf("bonus = %v, want negative for bearish agreement", c.Bonus)
	}
}

func TestConfluenceScoreMixedAndEmpty(t *testing.T) {
	mixed := ConfluenceScore(map[string]string{
		"long_term_trend": "bullish",
		"ma_crossover":    "death_cross",
		"macd_signal":     "bearish",
		"rsi_signal":      "neutral",
		"volume":          "normal",
	})
	if mixed.Bonus != 0 {
		t.Fatalf("bonus = %v, want 0 for split signals", mixed.Bonus)
	}
	if mixed.Label == "strong_buy" || mixed.Label == "strong_sell" {
		t.Fatalf("label = %q, want a moderate call for split signals", mixed.Label)
	}
	if c := ConfluenceScore(nil); c.Score != 0.5 || c.Label != "neutral" {
		t.Fatalf("empty map = %+v, want neutral 0.5", c)
	}
}
