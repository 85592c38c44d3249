package decision

import (
	"context"
	"fmt"
	"strings"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

const recommendationFormat = `Provide your analysis in this EXACT format:

RECOMMENDATION: [BUY/HOLD/SELL]
CONFIDENCE: [0.0-1.0]
HORIZON: [specific timeframe like "2-5 years", "6-9 months", or "4-8 weeks"]

KEY REASONS:
- [Reason 1 - must include at least one macro factor]
- [Reason 2]
- [Reason 3]

MACRO IMPACT:
[1-2 sentences on how the macro environment affects this decision]

ENTRY PRICE: $[price]
TARGET PRICES: $[price1], $[price2]
STOP LOSS: $[price]

REASONING:
[2-3 paragraphs explaining your decision and horizon]

TECHNICAL SIGNALS:
- SMA Analysis: [interpretation]
- RSI: [interpretation]
- MACD: [interpretation]`

const aiSystemPrompt = `You are an expert stock analyst providing an objective, data-driven recommendation. Weigh fundamentals, technicals, sentiment and the macro environment evenly, and cite the macro indicators explicitly.

` + recommendationFormat

var styleDescriptions = map[models.InvestmentStyle]string{
	models.StyleConservative: "long-term, risk-averse, focused on fundamentals and capital preservation",
	models.StyleBalanced:     "moderate risk, balanced timeframe, considering all factors equally",
	models.StyleAggressive:   "short-term trading, risk-tolerant, focused on momentum and technical signals",
}

// Synthesizer produces the dual AI/user recommendations from a merged
// analysis result. It runs strictly after fan-in and never aborts the
// request: when the text generator is unreachable or its output is
// unusable it falls back to a rule-based recommendation computed from
// the numeric fragments.
type Synthesizer struct {
	gen domsvc.TextGenerator
	log *logger.Logger
}

func NewSynthesizer(gen domsvc.TextGenerator, log *logger.Logger) *Synthesizer {
	return &Synthesizer{gen: gen, log: log}
}

// Synthesize fills in AIRecommendation, UserRecommendation and
// ComparisonInsight on the result. The only error condition is an
// unusable request (nil result or unknown style).
func (s *Synthesizer) Synthesize(ctx context.Context, r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("nil analysis result")
	}
	style := models.InvestmentStyle(r.Style)
	if !style.Valid() {
		return fmt.Errorf("unknown investment style %q", r.Style)
	}

	promptContext := buildContext(r)

	ai := s.recommend(ctx, models.KindAI, aiSystemPrompt,
		fmt.Sprintf("Analyze %s:\n\n%s", r.Symbol, promptContext),
		AIWeights(), StyleHorizon(models.StyleBalanced), r)

	user := s.recommend(ctx, models.KindUser, userSystemPrompt(style),
		fmt.Sprintf("Analyze %s for a %s investor:\n\n%s", r.Symbol, style, promptContext),
		StyleWeights(style), StyleHorizon(style), r)

	r.AIRecommendation = ai
	r.UserRecommendation = user
	r.ComparisonInsight = ComparisonInsight(ai, user, style)
	return nil
}

func userSystemPrompt(style models.InvestmentStyle) string {
	return fmt.Sprintf(`You are a personalized investment advisor. The user has a %s investment style: %s. Tailor the recommendation, horizon and risk framing to that style, and explain how the macro environment aligns with or conflicts with it.

%s`, strings.ToUpper(string(style)), styleDescriptions[style], recommendationFormat)
}

// recommend generates one recommendation. Weights come from the style
// tables, never from model output, so identical styles always yield
// identical weights.
func (s *Synthesizer) recommend(ctx context.Context, kind models.RecommendationKind, system, user string, weights map[string]float64, defaultHorizon string, r *models.AnalysisResult) *models.Recommendation {
	raw, err := s.gen.Generate(ctx, system, user)
	if err != nil {
		s.log.Warn("text generation failed, using rule-based recommendation",
			logger.String("kind", string(kind)), logger.Error(err))
		return s.ruleBased(kind, weights, defaultHorizon, r)
	}

	p := Parse(raw)
	if p.Fallback {
		s.log.Warn("model output unparseable, neutral recommendation",
			logger.String("kind", string(kind)))
	}

	rec := &models.Recommendation{
		Kind:             kind,
		Action:           models.Action(p.Action),
		Confidence:       p.Confidence,
		Horizon:          p.Horizon,
		KeyReasons:       p.KeyReasons,
		Reasoning:        p.Reasoning,
		MacroImpact:      p.MacroImpact,
		AgentWeights:     weights,
		TechnicalSignals: p.TechnicalSignals,
		EntryPrice:       p.EntryPrice,
		TargetPrices:     p.TargetPrices,
		StopLoss:         p.StopLoss,
	}
	if p.Fallback || rec.Horizon == "Medium-term" {
		rec.Horizon = defaultHorizon
	}
	if len(rec.TechnicalSignals) == 0 && r.Technical != nil {
		rec.TechnicalSignals = r.Technical.Signals
	}
	return rec
}

// Per-factor direction scores in [-1, 1] for the rule-based fallback.

func fundamentalsScore(f *models.FundamentalsFragment) float64 {
	if f == nil {
		return 0
	}
	score := 0.0
	if f.Financials.RevenueGrowth > 0 {
		score += 0.5
	}
	if f.Financials.ProfitMargin > 0 {
		score += 0.5
	}
	if f.Financials.DebtRatio > 2 {
		score -= 0.5
	}
	if score > 1 {
		score = 1
	}
	return score
}

func technicalScore(t *models.TechnicalFragment) float64 {
	if t == nil {
		return 0
	}
	switch t.Signals["overall"] {
	case "bullish":
		return 1
	case "bearish":
		return -1
	}
	return 0
}

func sentimentScore(s *models.SentimentFragment) float64 {
	if s == nil {
		return 0
	}
	return s.Score
}

func macroScore(m *models.MacroFragment) float64 {
	if m == nil {
		return 0
	}
	switch m.RiskLevel {
	case "low":
		return 0.5
	case "high":
		return -0.5
	}
	return 0
}

const actionThreshold = 0.15

// ruleBased derives a recommendation purely from the numeric fragments:
// a weighted blend of per-factor direction scores mapped onto
// BUY/HOLD/SELL. Confidence is deliberately modest.
func (s *Synthesizer) ruleBased(kind models.RecommendationKind, weights map[string]float64, horizon string, r *models.AnalysisResult) *models.Recommendation {
	scores := map[string]float64{
		models.FactorFundamentals: fundamentalsScore(r.Fundamentals),
		models.FactorTechnical:    technicalScore(r.Technical),
		models.FactorSentiment:    sentimentScore(r.Sentiment),
		models.FactorMacro:        macroScore(r.Macro),
	}
	blended := 0.0
	for _, f := range models.Factors {
		blended += weights[f] * scores[f]
	}

	action := models.ActionHold
	switch {
	case blended >= actionThreshold:
		action = models.ActionBuy
	case blended <= -actionThreshold:
		action = models.ActionSell
	}

	confidence := 0.3 + 0.3*min1(abs(blended))

	reasons := []string{}
	if r.Technical != nil {
		if overall := r.Technical.Signals["overall"]; overall != "" {
			reasons = append(reasons, fmt.Sprintf("Technical signals read %s overall", overall))
		}
	}
	if r.Sentiment != nil {
		reasons = append(reasons, fmt.Sprintf("News sentiment score is %.2f", r.Sentiment.Score))
	}
	if r.Macro != nil && r.Macro.RiskLevel != "" {
		reasons = append(reasons, fmt.Sprintf("Macro risk level is %s", r.Macro.RiskLevel))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "No analysis data available; defaulting to a neutral stance")
	}

	rec := &models.Recommendation{
		Kind:         kind,
		Action:       action,
		Confidence:   confidence,
		Horizon:      horizon,
		KeyReasons:   reasons,
		Reasoning:    fmt.Sprintf("Derived from numeric signals with a weighted score of %.2f; the analysis text generator was unavailable.", blended),
		AgentWeights: weights,
	}
	if r.Technical != nil {
		rec.TechnicalSignals = r.Technical.Signals
		if r.CurrentPrice > 0 {
			rec.EntryPrice = r.CurrentPrice
		}
		if res := r.Technical.Indicators.Resistance; res > 0 {
			rec.TargetPrices = []float64{res}
		}
		if sup := r.Technical.Indicators.Support; sup > 0 {
			rec.StopLoss = sup
		}
	} else {
		rec.TechnicalSignals = map[string]string{}
	}
	return rec
}

// ComparisonInsight explains agreement or divergence between the two
// recommendations. When actions differ it names the factor with the
// largest weight delta between the two schemes.
func ComparisonInsight(ai, user *models.Recommendation, style models.InvestmentStyle) string {
	confDelta := abs(ai.Confidence - user.Confidence)

	if ai.Action == user.Action {
		if confDelta < 0.1 {
			return fmt.Sprintf("The neutral AI view and the %s profile agree on %s with similar conviction, suggesting the signal is consistent across factor weightings.", style, ai.Action)
		}
		return fmt.Sprintf("Both views recommend %s, but conviction differs by %.0f%%; the %s weighting amplifies factors the neutral view treats evenly, so size the position accordingly.", ai.Action, confDelta*100, style)
	}

	dominant := DominantFactor(ai.AgentWeights, user.AgentWeights)
	return fmt.Sprintf("The neutral AI view says %s while the %s profile says %s. The divergence is driven by the %s factor, which the %s weighting emphasizes differently (%.0f%% vs the neutral 25%%); decide how much that factor matters to your plan.",
		ai.Action, style, user.Action, dominant, style, user.AgentWeights[dominant]*100)
}

// buildContext flattens the merged fragments into the prompt context
// shared by both recommendation calls. Missing fragments render as
// explicit absences rather than being skipped, so the model knows what
// it does not know.
func buildContext(r *models.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "STOCK: %s\nCURRENT PRICE: $%.2f\n", r.Symbol, r.CurrentPrice)

	sb.WriteString("\n=== FUNDAMENTAL RESEARCH ===\n")
	if f := r.Fundamentals; f != nil {
		sb.WriteString(f.Summary)
		sb.WriteString("\n\nFinancial Metrics:\n")
		fmt.Fprintf(&sb, "- Market Cap: $%.0f\n", f.Financials.MarketCap)
		fmt.Fprintf(&sb, "- P/E Ratio: %.2f\n", f.Financials.PERatio)
		fmt.Fprintf(&sb, "- Revenue Growth: %.2f%%\n", f.Financials.RevenueGrowth)
		fmt.Fprintf(&sb, "- Profit Margin: %.2f%%\n", f.Financials.ProfitMargin)
	} else {
		sb.WriteString("No research data available\n")
	}

	sb.WriteString("\n=== TECHNICAL ANALYSIS ===\n")
	if t := r.Technical; t != nil {
		fmt.Fprintf(&sb, "Trend: %s\n", t.Signals["long_term_trend"])
		fmt.Fprintf(&sb, "MA Crossover: %s\n", t.Signals["ma_crossover"])
		fmt.Fprintf(&sb, "Overall Signal: %s\n", t.Signals["overall"])
		fmt.Fprintf(&sb, "\nKey Indicators:\n")
		fmt.Fprintf(&sb, "- SMA(20): $%.2f\n", t.Indicators.SMA20)
		fmt.Fprintf(&sb, "- SMA(50): $%.2f\n", t.Indicators.SMA50)
		fmt.Fprintf(&sb, "- SMA(200): $%.2f\n", t.Indicators.SMA200)
		fmt.Fprintf(&sb, "- RSI(14): %.1f - %s\n", t.Indicators.RSI, t.Signals["rsi_signal"])
		fmt.Fprintf(&sb, "- MACD: %s\n", t.Signals["macd_signal"])
		fmt.Fprintf(&sb, "- Support: $%.2f\n", t.Indicators.Support)
		fmt.Fprintf(&sb, "- Resistance: $%.2f\n", t.Indicators.Resistance)
	} else {
		sb.WriteString("No technical data available\n")
	}

	sb.WriteString("\n=== SENTIMENT ANALYSIS ===\n")
	if s := r.Sentiment; s != nil {
		sb.WriteString(s.Summary)
		fmt.Fprintf(&sb, "\n\nSentiment Score: %.2f (-1 = very negative, +1 = very positive)\n", s.Score)
	} else {
		sb.WriteString("No sentiment data available\n")
	}

	sb.WriteString("\n=== MACROECONOMIC ENVIRONMENT ===\n")
	if m := r.Macro; m != nil {
		sb.WriteString(m.Summary)
		sb.WriteString("\n\nKey Macro Indicators:\n")
		fmt.Fprintf(&sb, "- VIX (Market Volatility): %.1f\n", m.Indicators.VIX)
		fmt.Fprintf(&sb, "- Federal Funds Rate: %.2f%%\n", m.Indicators.FedRate)
		fmt.Fprintf(&sb, "- GDP Growth: %.1f%%\n", m.Indicators.GDPGrowth)
		fmt.Fprintf(&sb, "- CPI Inflation: %.1f%%\n", m.Indicators.InflationCPI)
		fmt.Fprintf(&sb, "- Unemployment Rate: %.1f%%\n", m.Indicators.Unemployment)
		fmt.Fprintf(&sb, "- Overall Market Risk Level: %s\n", strings.ToUpper(m.RiskLevel))
	} else {
		sb.WriteString("No macro data available\n")
	}

	return sb.String()
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
