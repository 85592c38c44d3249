package indicators

import (
	"fmt"
	"math"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
)

// Engine computes the technical indicator snapshot from daily candles.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

const minCandles = 30

// Compute derives the full indicator snapshot and its signal
// interpretations. Requires at least minCandles bars; longer-window
// indicators (SMA200) fall back to the available history.
func (e *Engine) Compute(candles []models.Candle) (models.TechnicalIndicators, map[string]string, error) {
	var ind models.TechnicalIndicators
	if len(candles) < minCandles {
		return ind, nil, fmt.Errorf("insufficient candles: have %d, need %d", len(candles), minCandles)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := candles[len(candles)-1]

	ind.Price = last.Close
	ind.SMA20 = SMA(closes, 20)
	ind.SMA50 = SMA(closes, 50)
	ind.SMA200 = SMA(closes, 200)
	ind.EMA12 = EMA(closes, 12)
	ind.EMA26 = EMA(closes, 26)
	ind.RSI = RSI(closes, 14)

	macdLine := macdSeries(closes)
	ind.MACD = macdLine[len(macdLine)-1]
	ind.MACDSignal = EMA(macdLine, 9)
	ind.MACDHistogram = ind.MACD - ind.MACDSignal

	mid, dev := meanStd(tail(closes, 20))
	ind.BBMiddle = mid
	ind.BBUpper = mid + 2*dev
	ind.BBLower = mid - 2*dev

	ind.ATR = ATR(candles, 14)
	ind.Volume = int64(last.Volume)
	ind.VolumeAvg = int64(avgVolume(candles, 20))
	ind.Support, ind.Resistance = supportResistance(candles, 20)

	return ind, Signals(ind), nil
}

var _ domsvc.IndicatorEngine = (*Engine)(nil)

// Signals interprets an indicator snapshot into named buy/sell signals.
func Signals(ind models.TechnicalIndicators) map[string]string {
	signals := make(map[string]string)

	switch {
	case ind.Price > ind.SMA200:
		signals["long_term_trend"] = "bullish"
	case ind.Price < ind.SMA200:
		signals["long_term_trend"] = "bearish"
	default:
		signals["long_term_trend"] = "neutral"
	}

	switch {
	case ind.SMA20 > ind.SMA50:
		signals["ma_crossover"] = "golden_cross"
	case ind.SMA20 < ind.SMA50:
		signals["ma_crossover"] = "death_cross"
	default:
		signals["ma_crossover"] = "neutral"
	}

	switch {
	case ind.RSI < 30:
		signals["rsi_signal"] = "oversold_buy"
	case ind.RSI > 70:
		signals["rsi_signal"] = "overbought_sell"
	default:
		signals["rsi_signal"] = "neutral"
	}

	if ind.MACDHistogram > 0 {
		signals["macd_signal"] = "bullish"
	} else {
		signals["macd_signal"] = "bearish"
	}

	if ind.VolumeAvg > 0 && float64(ind.Volume) > float64(ind.VolumeAvg)*1.2 {
		signals["volume"] = "high"
	} else {
		signals["volume"] = "normal"
	}

	// Overall: majority vote across trend, crossover and momentum.
	score := 0
	if signals["long_term_trend"] == "bullish" {
		score++
	} else if signals["long_term_trend"] == "bearish" {
		score--
	}
	if signals["ma_crossover"] == "golden_cross" {
		score++
	} else if signals["ma_crossover"] == "death_cross" {
		score--
	}
	if signals["macd_signal"] == "bullish" {
		score++
	} else {
		score--
	}
	if signals["rsi_signal"] == "oversold_buy" {
		score++
	} else if signals["rsi_signal"] == "overbought_sell" {
		score--
	}

	switch {
	case score >= 2:
		signals["overall"] = "bullish"
	case score <= -2:
		signals["overall"] = "bearish"
	default:
		signals["overall"] = "neutral"
	}

	return signals
}

// Signal weights for the confluence score. Volume confirms but does
// not set direction, so it carries the smallest weight.
var confluenceWeights = map[string]float64{
	"long_term_trend": 0.25,
	"ma_crossover":    0.25,
	"macd_signal":     0.20,
	"rsi_signal":      0.20,
	"volume":          0.10,
}

var (
	bullishSignals = map[string]bool{"bullish": true, "golden_cross": true, "oversold_buy": true}
	bearishSignals = map[string]bool{"bearish": true, "death_cross": true, "overbought_sell": true}
)

// Confluence condenses the signal map into one weighted score in
// [0, 1], where 1 is maximally bullish. Bonus rewards agreement: when
// most signals point the same way the score moves further in that
// direction.
type Confluence struct {
	Score float64 `json:"score"`
	Bonus float64 `json:"bonus"`
	Label string  `json:"label"` // strong_buy, buy, neutral, sell, strong_sell
}

// ConfluenceScore computes the weighted confluence of a signal map.
func ConfluenceScore(signals map[string]string) Confluence {
	var score, weight float64
	bullish, bearish, counted := 0, 0, 0
	for name, w := range confluenceWeights {
		sig, ok := signals[name]
		if !ok {
			continue
		}
		dir := 0.5
		switch {
		case bullishSignals[sig]:
			dir = 1
			bullish++
		case bearishSignals[sig]:
			dir = 0
			bearish++
		}
		score += w * dir
		weight += w
		counted++
	}
	if weight == 0 {
		return Confluence{Score: 0.5, Label: "neutral"}
	}
	score /= weight

	var bonus float64
	if counted >= 3 {
		ratio := float64(bullish) / float64(counted)
		sign := 1.0
		if bearish > bullish {
			ratio = float64(bearish) / float64(counted)
			sign = -1
		}
		switch {
		case ratio > 0.8:
			bonus = 0.15 * sign
		case ratio > 0.7:
			bonus = 0.10 * sign
		case ratio > 0.6:
			bonus = 0.05 * sign
		}
	}
	score = math.Min(1, math.Max(0, score+bonus))

	return Confluence{Score: score, Bonus: bonus, Label: confluenceLabel(score)}
}

func confluenceLabel(score float64) string {
	switch {
	case score >= 0.70:
		return "strong_buy"
	case score >= 0.55:
		return "buy"
	case score <= 0.30:
		return "strong_sell"
	case score <= 0.45:
		return "sell"
	default:
		return "neutral"
	}
}

// SMA computes a simple moving average over the trailing window. Falls
// back to the full series when history is shorter than the window.
func SMA(xs []float64, window int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if window > len(xs) {
		window = len(xs)
	}
	sum := 0.0
	for _, v := range xs[len(xs)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// EMA computes an exponential moving average seeded with the SMA of
// the first window values.
func EMA(xs []float64, window int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if window >= len(xs) {
		return SMA(xs, window)
	}
	k := 2.0 / (float64(window) + 1.0)
	ema := SMA(xs[:window], window)
	for _, v := range xs[window:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI computes the relative strength index using Wilder smoothing.
func RSI(xs []float64, period int) float64 {
	if len(xs) <= period {
		return 50 // not enough history, treat as neutral
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the average true range over the trailing period.
func ATR(candles []models.Candle, period int) float64 {
	if len(candles) < 2 {
		return 0
	}
	start := len(candles) - period
	if start < 1 {
		start = 1
	}
	sum := 0.0
	n := 0
	for i := start; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		sum += math.Max(hl, math.Max(hc, lc))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func macdSeries(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 26; i <= len(closes); i++ {
		out = append(out, EMA(closes[:i], 12)-EMA(closes[:i], 26))
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum, sum2 := 0.0, 0.0
	for _, v := range xs {
		sum += v
		sum2 += v * v
	}
	n := float64(len(xs))
	mean := sum / n
	variance := sum2/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

func avgVolume(candles []models.Candle, window int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if window > len(candles) {
		window = len(candles)
	}
	sum := 0.0
	for _, c := range candles[len(candles)-window:] {
		sum += c.Volume
	}
	return sum / float64(window)
}

func supportResistance(candles []models.Candle, window int) (float64, float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if window > len(candles) {
		window = len(candles)
	}
	low := math.Inf(1)
	high := math.Inf(-1)
	for _, c := range candles[len(candles)-window:] {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	return low, high
}

func tail(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}
