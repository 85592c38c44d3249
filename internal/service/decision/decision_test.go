package decision

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"StockSage/internal/domain/models"
	"StockSage/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type stubGen struct {
	out string
	err error
}

func (s *stubGen) Generate(ctx context.Context, system, user string) (string, error) {
	return s.out, s.err
}

const taggedResponse = `RECOMMENDATION: BUY
CONFIDENCE: 0.8
HORIZON: 6-9 months

KEY REASONS:
- Strong revenue growth despite rate pressure
- Golden cross on the daily chart
- Positive news flow

MACRO IMPACT:
Elevated rates are a headwind but cooling inflation helps.

ENTRY PRICE: $180.00
TARGET PRICES: $210.00 (6mo), $230.00 (12mo)
STOP LOSS: $165.00

REASONING:
The balance of evidence favors accumulation at current levels.

TECHNICAL SIGNALS:
- SMA Analysis: price above all major averages
- RSI: 61, room to run
- MACD: bullish crossover`

func TestParseTaggedFormat(t *testing.T) {
	p := Parse(taggedResponse)
	if p.Fallback {
		t.Fatal("tagged parse should not fall back")
	}
	if p.Action != "BUY" || p.Confidence != 0.8 || p.Horizon != "6-9 months" {
		t.Fatalf("parsed header = %q %v %q", p.Action, p.Confidence, p.Horizon)
	}
	if len(p.KeyReasons) != 3 {
		t.Fatalf("key reasons = %v", p.KeyReasons)
	}
	if p.EntryPrice != 180 || p.StopLoss != 165 {
		t.Fatalf("prices = %v / %v", p.EntryPrice, p.StopLoss)
	}
	if len(p.TargetPrices) != 2 || p.TargetPrices[0] != 210 || p.TargetPrices[1] != 230 {
		t.Fatalf("targets = %v", p.TargetPrices)
	}
	if !strings.Contains(p.MacroImpact, "cooling inflation") {
		t.Fatalf("macro impact = %q", p.MacroImpact)
	}
	if p.TechnicalSignals["RSI"] != "61, room to run" {
		t.Fatalf("signals = %v", p.TechnicalSignals)
	}
}

func TestParseConfidenceClamped(t *testing.T) {
	p := Parse("RECOMMENDATION: SELL\nCONFIDENCE: 7.5")
	if p.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamped 1", p.Confidence)
	}
}

func TestParseKeywordFallback(t *testing.T) {
	p := Parse("Given the setup I would buy here. My confidence is about 70%.\n- momentum is strong\n- volume confirms")
	if p.Fallback {
		t.Fatal("keyword extraction should not be terminal fallback")
	}
	if p.Action != "BUY" {
		t.Fatalf("action = %q", p.Action)
	}
	if math.Abs(p.Confidence-0.7) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.7", p.Confidence)
	}
	if len(p.KeyReasons) != 2 {
		t.Fatalf("reasons = %v", p.KeyReasons)
	}
}

func TestParseUnusableTextNeverFails(t *testing.T) {
	p := Parse("the weather is nice today")
	if !p.Fallback {
		t.Fatal("expected terminal fallback")
	}
	if p.Action != "HOLD" || p.Confidence != 0 {
		t.Fatalf("fallback = %q %v, want HOLD 0", p.Action, p.Confidence)
	}
	if p.KeyReasons == nil || p.TechnicalSignals == nil {
		t.Fatal("fallback fields must be non-nil")
	}
}

func TestWeightsSumToOne(t *testing.T) {
	tables := map[string]map[string]float64{
		"ai":           AIWeights(),
		"conservative": StyleWeights(models.StyleConservative),
		"balanced":     StyleWeights(models.StyleBalanced),
		"aggressive":   StyleWeights(models.StyleAggressive),
	}
	for name, w := range tables {
		sum := 0.0
		for _, f := range models.Factors {
			sum += w[f]
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("%s weights sum to %v", name, sum)
		}
	}
}

func TestAggressiveWeightsFavorTechnical(t *testing.T) {
	w := StyleWeights(models.StyleAggressive)
	if w[models.FactorTechnical] < 0.5 {
		t.Fatalf("aggressive technical weight = %v, want >= 0.5", w[models.FactorTechnical])
	}
	if c := StyleWeights(models.StyleConservative); c[models.FactorFundamentals] < 0.5 {
		t.Fatalf("conservative fundamentals weight = %v, want >= 0.5", c[models.FactorFundamentals])
	}
}

func TestWeightsPureFunctionOfStyle(t *testing.T) {
	a := StyleWeights(models.StyleAggressive)
	b := StyleWeights(models.StyleAggressive)
	for _, f := range models.Factors {
		if a[f] != b[f] {
			t.Fatalf("weights differ between calls: %v vs %v", a, b)
		}
	}
	// Mutating a returned table must not leak into the next call.
	a[models.FactorTechnical] = 0
	if StyleWeights(models.StyleAggressive)[models.FactorTechnical] == 0 {
		t.Fatal("returned weight table aliases the internal constant")
	}
}

func mergedResult(style models.InvestmentStyle) *models.AnalysisResult {
	r := &models.AnalysisResult{Symbol: "AAPL", Style: string(style)}
	r.Merge(&models.Fragment{
		Agent: models.AgentFundamentals,
		Fundamentals: &models.FundamentalsFragment{
			Summary:    "Healthy growth.",
			Financials: models.CompanyFinancials{RevenueGrowth: 8, ProfitMargin: 22},
		},
	})
	r.Merge(&models.Fragment{
		Agent: models.AgentTechnical,
		Technical: &models.TechnicalFragment{
			Signals: map[string]string{"overall": "bullish", "rsi_signal": "neutral"},
			Indicators: models.TechnicalIndicators{
				Price: 180, Support: 165, Resistance: 195,
			},
		},
	})
	r.Merge(&models.Fragment{
		Agent:     models.AgentSentiment,
		Sentiment: &models.SentimentFragment{Summary: "Upbeat coverage.", Score: 0.4},
	})
	r.Merge(&models.Fragment{
		Agent: models.AgentMacro,
		Macro: &models.MacroFragment{Summary: "Calm markets.", RiskLevel: "low"},
	})
	return r
}

func TestSynthesizeAIWeightsIgnoreStyle(t *testing.T) {
	for _, style := range []models.InvestmentStyle{models.StyleConservative, models.StyleBalanced, models.StyleAggressive} {
		s := NewSynthesizer(&stubGen{out: taggedResponse}, testLogger(t))
		r := mergedResult(style)
		if err := s.Synthesize(context.Background(), r); err != nil {
			t.Fatalf("synthesize(%s): %v", style, err)
		}
		for _, f := range models.Factors {
			if r.AIRecommendation.AgentWeights[f] != 0.25 {
				t.Fatalf("style %s: ai weights = %v, want equal 0.25", style, r.AIRecommendation.AgentWeights)
			}
		}
	}
}

func TestSynthesizeGeneratorFailureFallsBack(t *testing.T) {
	s := NewSynthesizer(&stubGen{err: errors.New("unreachable")}, testLogger(t))
	r := mergedResult(models.StyleBalanced)
	if err := s.Synthesize(context.Background(), r); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	rec := r.UserRecommendation
	if rec == nil {
		t.Fatal("user recommendation missing")
	}
	// Bullish technicals, positive sentiment and low macro risk should
	// blend into a BUY under equal weights.
	if rec.Action != models.ActionBuy {
		t.Fatalf("rule-based action = %s, want BUY", rec.Action)
	}
	if rec.EntryPrice != 180 || rec.StopLoss != 165 {
		t.Fatalf("rule-based levels = %v / %v", rec.EntryPrice, rec.StopLoss)
	}
	sum := 0.0
	for _, f := range models.Factors {
		sum += rec.AgentWeights[f]
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("fallback weights sum to %v", sum)
	}
}

func TestSynthesizeUnparseableOutputStillCompletes(t *testing.T) {
	s := NewSynthesizer(&stubGen{out: "complete gibberish with no structure"}, testLogger(t))
	r := mergedResult(models.StyleAggressive)
	if err := s.Synthesize(context.Background(), r); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if r.UserRecommendation.Action != models.ActionHold {
		t.Fatalf("action = %s, want neutral HOLD", r.UserRecommendation.Action)
	}
	if r.UserRecommendation.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", r.UserRecommendation.Confidence)
	}
	if r.UserRecommendation.Horizon != StyleHorizon(models.StyleAggressive) {
		t.Fatalf("horizon = %q", r.UserRecommendation.Horizon)
	}
}

func TestSynthesizeRejectsUnknownStyle(t *testing.T) {
	s := NewSynthesizer(&stubGen{out: taggedResponse}, testLogger(t))
	r := &models.AnalysisResult{Symbol: "AAPL", Style: "yolo"}
	if err := s.Synthesize(context.Background(), r); err == nil {
		t.Fatal("expected error for unknown style")
	}
}

func TestComparisonNamesDominantFactorOnDivergence(t *testing.T) {
	ai := &models.Recommendation{Kind: models.KindAI, Action: models.ActionBuy, Confidence: 0.8, AgentWeights: AIWeights()}
	user := &models.Recommendation{Kind: models.KindUser, Action: models.ActionSell, Confidence: 0.6, AgentWeights: StyleWeights(models.StyleAggressive)}
	note := ComparisonInsight(ai, user, models.StyleAggressive)
	if !strings.Contains(note, models.FactorTechnical) {
		t.Fatalf("divergence note must name the technical factor: %q", note)
	}
}

func TestComparisonAgreement(t *testing.T) {
	ai := &models.Recommendation{Action: models.ActionBuy, Confidence: 0.75, AgentWeights: AIWeights()}
	user := &models.Recommendation{Action: models.ActionBuy, Confidence: 0.78, AgentWeights: StyleWeights(models.StyleBalanced)}
	note := ComparisonInsight(ai, user, models.StyleBalanced)
	if !strings.Contains(note, "agree") {
		t.Fatalf("agreement note = %q", note)
	}
}

func TestDominantFactor(t *testing.T) {
	got := DominantFactor(AIWeights(), StyleWeights(models.StyleConservative))
	if got != models.FactorFundamentals {
		t.Fatalf("dominant factor = %q, want fundamentals", got)
	}
}
