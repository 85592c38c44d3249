package decision

import "StockSage/internal/domain/models"

// Weight tables are fixed per style and independent of fragment
// content: two runs with the same style always produce the same
// weights. Each table sums to 1.0.

var aiWeights = map[string]float64{
	models.FactorFundamentals: 0.25,
	models.FactorTechnical:    0.25,
	models.FactorSentiment:    0.25,
	models.FactorMacro:        0.25,
}

var styleWeights = map[models.InvestmentStyle]map[string]float64{
	models.StyleConservative: {
		models.FactorFundamentals: 0.55,
		models.FactorTechnical:    0.10,
		models.FactorSentiment:    0.10,
		models.FactorMacro:        0.25,
	},
	models.StyleBalanced: {
		models.FactorFundamentals: 0.25,
		models.FactorTechnical:    0.25,
		models.FactorSentiment:    0.25,
		models.FactorMacro:        0.25,
	},
	models.StyleAggressive: {
		models.FactorFundamentals: 0.10,
		models.FactorTechnical:    0.60,
		models.FactorSentiment:    0.20,
		models.FactorMacro:        0.10,
	},
}

var styleHorizons = map[models.InvestmentStyle]string{
	models.StyleConservative: "1-5 years",
	models.StyleBalanced:     "3-12 months",
	models.StyleAggressive:   "weeks to 3 months",
}

// AIWeights returns the fixed equal-weight table used for the neutral
// AI recommendation regardless of style.
func AIWeights() map[string]float64 { return copyWeights(aiWeights) }

// StyleWeights returns the weight table for a style tier. Unknown
// styles fall back to balanced.
func StyleWeights(style models.InvestmentStyle) map[string]float64 {
	if w, ok := styleWeights[style]; ok {
		return copyWeights(w)
	}
	return copyWeights(styleWeights[models.StyleBalanced])
}

// StyleHorizon returns the default horizon bias for a style tier.
func StyleHorizon(style models.InvestmentStyle) string {
	if h, ok := styleHorizons[style]; ok {
		return h
	}
	return styleHorizons[models.StyleBalanced]
}

// DominantFactor returns the factor with the largest absolute weight
// difference between two tables. Used to explain why the AI and user
// recommendations diverge.
func DominantFactor(a, b map[string]float64) string {
	best, bestDelta := models.FactorFundamentals, -1.0
	for _, f := range models.Factors {
		d := abs(a[f] - b[f])
		if d > bestDelta {
			best, bestDelta = f, d
		}
	}
	return best
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
