package models

// RecommendationKind distinguishes the neutral AI view from the
// style-personalized user view.
type RecommendationKind string

const (
	KindAI   RecommendationKind = "AI"
	KindUser RecommendationKind = "USER"
)

// Action is the recommended position change.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
	ActionSell Action = "SELL"
)

// Weight factor keys. User weights per style and the fixed AI weights
// are keyed by these; values always sum to 1.0.
const (
	FactorFundamentals = "fundamentals"
	FactorTechnical    = "technical"
	FactorSentiment    = "sentiment"
	FactorMacro        = "macro"
)

// Factors lists the weighting factors in presentation order.
var Factors = []string{FactorFundamentals, FactorTechnical, FactorSentiment, FactorMacro}

// Recommendation is one synthesized recommendation with full detail.
type Recommendation struct {
	Kind             RecommendationKind `json:"kind"`
	Action           Action             `json:"action"`
	Confidence       float64            `json:"confidence"` // [0, 1]
	Horizon          string             `json:"horizon"`
	KeyReasons       []string           `json:"key_reasons"`
	Reasoning        string             `json:"reasoning"`
	MacroImpact      string             `json:"macro_impact,omitempty"`
	AgentWeights     map[string]float64 `json:"agent_weights"`
	TechnicalSignals map[string]string  `json:"technical_signals"`
	EntryPrice       float64            `json:"entry_price,omitempty"`
	TargetPrices     []float64          `json:"target_prices,omitempty"`
	StopLoss         float64            `json:"stop_loss,omitempty"`
}
