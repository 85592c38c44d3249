package decision

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the structured form of one model-generated recommendation.
// Produced by Parse, which never fails: the zero-information terminal
// case is a HOLD with confidence 0.
type Parsed struct {
	Action           string
	Confidence       float64
	Horizon          string
	KeyReasons       []string
	Reasoning        string
	MacroImpact      string
	EntryPrice       float64
	TargetPrices     []float64
	StopLoss         float64
	TechnicalSignals map[string]string

	// Fallback reports that neither the tagged format nor keyword
	// extraction recovered an action.
	Fallback bool
}

var (
	actionRe     = regexp.MustCompile(`(?i)RECOMMENDATION:\s*(BUY|HOLD|SELL)`)
	confidenceRe = regexp.MustCompile(`(?i)CONFIDENCE:\s*([0-9.]+)`)
	horizonRe    = regexp.MustCompile(`(?i)HORIZON:\s*([^\n]+)`)
	entryRe      = regexp.MustCompile(`(?i)ENTRY PRICE:\s*\$?([0-9.]+)`)
	targetsRe    = regexp.MustCompile(`(?i)TARGET PRICES?:\s*([^\n]+)`)
	stopRe       = regexp.MustCompile(`(?i)STOP LOSS:\s*\$?([0-9.]+)`)
	priceRe      = regexp.MustCompile(`\$?([0-9]+\.?[0-9]*)`)

	reasonsSectionRe   = regexp.MustCompile(`(?is)KEY REASONS:(.*?)(?:MACRO IMPACT:|ENTRY PRICE:|TARGET PRICES?:|REASONING:|$)`)
	macroImpactRe      = regexp.MustCompile(`(?is)MACRO IMPACT:(.*?)(?:ENTRY PRICE:|TARGET PRICES?:|REASONING:|$)`)
	reasoningSectionRe = regexp.MustCompile(`(?is)REASONING:(.*?)(?:TECHNICAL SIGNALS:|$)`)
	signalsSectionRe   = regexp.MustCompile(`(?is)TECHNICAL SIGNALS:(.*)$`)

	// Keyword fallback when the tagged format is absent.
	looseActionRe     = regexp.MustCompile(`(?i)\b(STRONG BUY|BUY|SELL|HOLD)\b`)
	looseConfidenceRe = regexp.MustCompile(`(?i)confidence[^0-9]{0,16}([0-9.]+)\s*%?`)
	bulletRe          = regexp.MustCompile(`(?m)^\s*[-*•]\s*(.+)$`)
)

const maxKeyReasons = 4

// Parse normalizes free-form model output into a Parsed record. It
// first attempts the tagged field format, then falls back to keyword
// extraction, and finally returns a neutral HOLD record when neither
// recovers an action.
func Parse(raw string) Parsed {
	p := Parsed{
		Action:           "HOLD",
		Confidence:       0.5,
		Horizon:          "Medium-term",
		KeyReasons:       []string{},
		TechnicalSignals: map[string]string{},
	}

	actionFound := false
	if m := actionRe.FindStringSubmatch(raw); m != nil {
		p.Action = strings.ToUpper(m[1])
		actionFound = true
	}
	if m := confidenceRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Confidence = clamp01(v)
		}
	}
	if m := horizonRe.FindStringSubmatch(raw); m != nil {
		p.Horizon = strings.TrimSpace(m[1])
	}
	if m := reasonsSectionRe.FindStringSubmatch(raw); m != nil {
		p.KeyReasons = extractBullets(m[1], maxKeyReasons)
	}
	if m := macroImpactRe.FindStringSubmatch(raw); m != nil {
		p.MacroImpact = strings.TrimSpace(m[1])
	}
	if m := entryRe.FindStringSubmatch(raw); m != nil {
		p.EntryPrice, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := targetsRe.FindStringSubmatch(raw); m != nil {
		p.TargetPrices = extractTargets(m[1], p.EntryPrice)
	}
	if m := stopRe.FindStringSubmatch(raw); m != nil {
		p.StopLoss, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reasoningSectionRe.FindStringSubmatch(raw); m != nil {
		p.Reasoning = strings.TrimSpace(m[1])
	}
	if m := signalsSectionRe.FindStringSubmatch(raw); m != nil {
		p.TechnicalSignals = extractSignals(m[1])
	}

	if actionFound {
		return p
	}

	// Tagged format absent: scavenge the free text.
	if m := looseActionRe.FindStringSubmatch(raw); m != nil {
		a := strings.ToUpper(m[1])
		if a == "STRONG BUY" {
			a = "BUY"
		}
		p.Action = a
		if m := looseConfidenceRe.FindStringSubmatch(raw); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				if v > 1 {
					v /= 100 // percentage form
				}
				p.Confidence = clamp01(v)
			}
		}
		if len(p.KeyReasons) == 0 {
			p.KeyReasons = extractBullets(raw, maxKeyReasons)
		}
		if p.Reasoning == "" {
			p.Reasoning = strings.TrimSpace(raw)
		}
		return p
	}

	// Nothing usable: deterministic neutral record.
	return Parsed{
		Action:           "HOLD",
		Confidence:       0,
		Horizon:          "Medium-term",
		KeyReasons:       []string{"Analysis text could not be parsed"},
		Reasoning:        "The generated analysis did not match any recognized format; defaulting to a neutral stance.",
		TechnicalSignals: map[string]string{},
		Fallback:         true,
	}
}

func extractBullets(section string, max int) []string {
	out := []string{}
	for _, m := range bulletRe.FindAllStringSubmatch(section, -1) {
		r := strings.TrimSpace(m[1])
		if r == "" {
			continue
		}
		out = append(out, r)
		if len(out) >= max {
			break
		}
	}
	return out
}

// extractTargets pulls price levels from a targets line, skipping
// small numbers that are usually timeframes ("(3 years)") and values
// indistinguishable from the entry price.
func extractTargets(line string, entry float64) []float64 {
	var out []float64
	for _, m := range priceRe.FindAllStringSubmatch(line, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 10 {
			continue
		}
		if entry > 0 && abs(v-entry)/entry <= 0.05 {
			continue
		}
		out = append(out, v)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func extractSignals(section string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(section, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(k), "-*• "))
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
