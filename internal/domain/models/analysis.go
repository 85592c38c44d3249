package models

import "time"

// AgentName identifies one of the parallel analysis agents, or the
// decision step that runs after all of them have settled.
type AgentName string

const (
	AgentFundamentals AgentName = "fundamentals"
	AgentTechnical    AgentName = "technical"
	AgentSentiment    AgentName = "sentiment"
	AgentMacro        AgentName = "macro"
	AgentDecision     AgentName = "decision"
)

// AnalysisAgents lists the four agents that run concurrently per request.
var AnalysisAgents = []AgentName{AgentFundamentals, AgentTechnical, AgentSentiment, AgentMacro}

// AgentStatus is the per-agent state machine. Transitions only move
// forward; an agent never regresses from a terminal status.
type AgentStatus string

const (
	StatusPending    AgentStatus = "pending"
	StatusStarted    AgentStatus = "started"
	StatusInProgress AgentStatus = "in_progress"
	StatusCompleted  AgentStatus = "completed"
	StatusFailed     AgentStatus = "failed"
)

// Rank returns the ordinal of a status for monotonicity checks.
func (s AgentStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStarted:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	}
	return -1
}

// Terminal reports whether the status settles an agent.
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InvestmentStyle selects the user-side weighting scheme.
type InvestmentStyle string

const (
	StyleConservative InvestmentStyle = "conservative"
	StyleBalanced     InvestmentStyle = "balanced"
	StyleAggressive   InvestmentStyle = "aggressive"
)

// Valid reports whether the style is one of the known tiers.
func (s InvestmentStyle) Valid() bool {
	switch s {
	case StyleConservative, StyleBalanced, StyleAggressive:
		return true
	}
	return false
}

// Source is a citation attached to a fragment.
type Source struct {
	Type      string `json:"type"` // "news", "filing", "data"
	Title     string `json:"title"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CompanyFinancials holds the fundamental metrics fetched for a symbol.
type CompanyFinancials struct {
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	MarketCap     float64 `json:"market_cap"`
	PERatio       float64 `json:"pe_ratio"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ProfitMargin  float64 `json:"profit_margin"`
	DebtRatio     float64 `json:"debt_ratio"`
	Description   string  `json:"description,omitempty"`
}

// TechnicalIndicators is the indicator snapshot computed from candles.
type TechnicalIndicators struct {
	Price         float64 `json:"price"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	SMA200        float64 `json:"sma_200"`
	EMA12         float64 `json:"ema_12"`
	EMA26         float64 `json:"ema_26"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
	Volume        int64   `json:"volume"`
	VolumeAvg     int64   `json:"volume_avg"`
	ATR           float64 `json:"atr"`
	Support       float64 `json:"support,omitempty"`
	Resistance    float64 `json:"resistance,omitempty"`
}

// MacroIndicators holds the macroeconomic snapshot. Zero values mean
// the series was unavailable.
type MacroIndicators struct {
	VIX          float64 `json:"vix,omitempty"`
	FedRate      float64 `json:"fed_rate,omitempty"`
	GDPGrowth    float64 `json:"gdp_growth,omitempty"`
	InflationCPI float64 `json:"inflation_cpi,omitempty"`
	Unemployment float64 `json:"unemployment,omitempty"`
}

// Candle represents an OHLCV record used for indicator computation.
type Candle struct {
	Bucket time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// FundamentalsFragment is the research agent's output.
type FundamentalsFragment struct {
	Summary    string            `json:"summary"`
	Financials CompanyFinancials `json:"financials"`
	Sources    []Source          `json:"sources"`
}

// TechnicalFragment is the technical agent's output.
type TechnicalFragment struct {
	Signals    map[string]string   `json:"signals"`
	Indicators TechnicalIndicators `json:"indicators"`
	Sources    []Source            `json:"sources"`
}

// SentimentFragment is the sentiment agent's output. Score is in [-1, 1].
type SentimentFragment struct {
	Summary string   `json:"summary"`
	Score   float64  `json:"score"`
	Sources []Source `json:"sources"`
}

// MacroFragment is the macro agent's output.
type MacroFragment struct {
	Summary    string          `json:"summary"`
	Indicators MacroIndicators `json:"indicators"`
	RiskLevel  string          `json:"risk_level"` // "low", "medium", "high"
	Sources    []Source        `json:"sources"`
}

// Fragment is the tagged union an agent settles with. Exactly one of
// the category pointers is set, matching Agent.
type Fragment struct {
	Agent        AgentName             `json:"agent"`
	Fundamentals *FundamentalsFragment `json:"fundamentals,omitempty"`
	Technical    *TechnicalFragment    `json:"technical,omitempty"`
	Sentiment    *SentimentFragment    `json:"sentiment,omitempty"`
	Macro        *MacroFragment        `json:"macro,omitempty"`
}

// Neutral default fragments, merged when an agent fails or times out.
// They must never break the decision synthesizer: maps and slices are
// non-nil, sentiment is neutral, macro risk defaults to medium.

func DefaultFundamentalsFragment(reason string) *Fragment {
	return &Fragment{
		Agent: AgentFundamentals,
		Fundamentals: &FundamentalsFragment{
			Summary: "Fundamental data unavailable: " + reason,
			Sources: []Source{},
		},
	}
}

func DefaultTechnicalFragment(reason string) *Fragment {
	return &Fragment{
		Agent: AgentTechnical,
		Technical: &TechnicalFragment{
			Signals: map[string]string{"overall": "neutral"},
			Sources: []Source{},
		},
	}
}

func DefaultSentimentFragment(reason string) *Fragment {
	return &Fragment{
		Agent: AgentSentiment,
		Sentiment: &SentimentFragment{
			Summary: "Sentiment data unavailable: " + reason,
			Score:   0.0,
			Sources: []Source{},
		},
	}
}

func DefaultMacroFragment(reason string) *Fragment {
	return &Fragment{
		Agent: AgentMacro,
		Macro: &MacroFragment{
			Summary:   "Macroeconomic data unavailable: " + reason,
			RiskLevel: "medium",
			Sources:   []Source{},
		},
	}
}

// DefaultFragment returns the documented neutral fragment for an agent.
func DefaultFragment(agent AgentName, reason string) *Fragment {
	switch agent {
	case AgentFundamentals:
		return DefaultFundamentalsFragment(reason)
	case AgentTechnical:
		return DefaultTechnicalFragment(reason)
	case AgentSentiment:
		return DefaultSentimentFragment(reason)
	case AgentMacro:
		return DefaultMacroFragment(reason)
	}
	return nil
}

// AnalysisResult is the single shared accumulation for one request.
// It is owned exclusively by the orchestrator: agents return fragments
// and never read or write it directly.
type AnalysisResult struct {
	Symbol       string    `json:"symbol"`
	Style        string    `json:"style"`
	CurrentPrice float64   `json:"current_price"`
	GeneratedAt  time.Time `json:"generated_at"`

	Fundamentals *FundamentalsFragment `json:"fundamentals,omitempty"`
	Technical    *TechnicalFragment    `json:"technical,omitempty"`
	Sentiment    *SentimentFragment    `json:"sentiment,omitempty"`
	Macro        *MacroFragment        `json:"macro,omitempty"`

	AIRecommendation   *Recommendation `json:"ai_recommendation,omitempty"`
	UserRecommendation *Recommendation `json:"user_recommendation,omitempty"`
	ComparisonInsight  string          `json:"comparison_insight,omitempty"`

	Sources []Source `json:"sources"`
}

// Merge applies one settled fragment. Called only from the
// orchestrator's single merge loop, so no locking is needed.
func (r *AnalysisResult) Merge(f *Fragment) {
	if f == nil {
		return
	}
	switch f.Agent {
	case AgentFundamentals:
		r.Fundamentals = f.Fundamentals
		r.Sources = append(r.Sources, f.Fundamentals.Sources...)
	case AgentTechnical:
		r.Technical = f.Technical
		if f.Technical.Indicators.Price > 0 {
			r.CurrentPrice = f.Technical.Indicators.Price
		}
		r.Sources = append(r.Sources, f.Technical.Sources...)
	case AgentSentiment:
		r.Sentiment = f.Sentiment
		r.Sources = append(r.Sources, f.Sentiment.Sources...)
	case AgentMacro:
		r.Macro = f.Macro
		r.Sources = append(r.Sources, f.Macro.Sources...)
	}
}

// ProgressEvent is one message on the progress stream. Data is set
// only on the terminal decision event.
type ProgressEvent struct {
	Agent   AgentName       `json:"agent"`
	Status  AgentStatus     `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    *AnalysisResult `json:"data,omitempty"`
}
