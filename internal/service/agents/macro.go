package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

const macroSystemPrompt = `You are a macroeconomic analyst. Assess how the current macro environment affects equity investing in general and the given stock's sector in particular. End your answer with a line of the form "RISK LEVEL: low", "RISK LEVEL: medium" or "RISK LEVEL: high".`

var riskLevelRe = regexp.MustCompile(`(?i)RISK LEVEL:\s*(low|medium|high)`)

// MacroAgent assesses the macroeconomic backdrop.
type MacroAgent struct {
	macro domsvc.MacroData
	gen   domsvc.TextGenerator
	log   *logger.Logger
}

func NewMacroAgent(macro domsvc.MacroData, gen domsvc.TextGenerator, log *logger.Logger) *MacroAgent {
	return &MacroAgent{macro: macro, gen: gen, log: log}
}

func (a *MacroAgent) Name() models.AgentName { return models.AgentMacro }

func (a *MacroAgent) Analyze(ctx context.Context, symbol string, report func(string)) (*models.Fragment, error) {
	report("Fetching macro indicators")
	ind, err := a.macro.Indicators(ctx)
	if err != nil {
		return nil, fmt.Errorf("macro: %w", err)
	}

	report("Assessing macro environment")
	raw, err := a.gen.Generate(ctx, macroSystemPrompt, a.buildPrompt(symbol, ind))
	if err != nil {
		// The snapshot is already in hand; degrade to a data-only
		// summary with an indicator-derived risk level.
		a.log.Warn("macro analysis degraded to data-only summary", logger.Error(err))
		risk := riskFromVIX(ind.VIX)
		return &models.Fragment{
			Agent: models.AgentMacro,
			Macro: &models.MacroFragment{
				Summary:    dataOnlySummary(ind, risk),
				Indicators: ind,
				RiskLevel:  risk,
				Sources: []models.Source{{
					Type:  "data",
					Title: "Federal Reserve economic data snapshot",
				}},
			},
		}, nil
	}

	risk, found := ExtractRiskLevel(raw)
	if !found {
		risk = riskFromVIX(ind.VIX)
		a.log.Warn("risk level missing from model output, derived from vix",
			logger.String("risk", risk), logger.Float64("vix", ind.VIX))
	}

	return &models.Fragment{
		Agent: models.AgentMacro,
		Macro: &models.MacroFragment{
			Summary:    strings.TrimSpace(stripRiskLine(raw)),
			Indicators: ind,
			RiskLevel:  risk,
			Sources: []models.Source{{
				Type:  "data",
				Title: "Federal Reserve economic data snapshot",
			}},
		},
	}, nil
}

func (a *MacroAgent) buildPrompt(symbol string, ind models.MacroIndicators) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current macro snapshot (evaluating %s):\n", symbol)
	if ind.VIX > 0 {
		fmt.Fprintf(&sb, "VIX: %.1f\n", ind.VIX)
	}
	if ind.FedRate > 0 {
		fmt.Fprintf(&sb, "Fed funds rate: %.2f%%\n", ind.FedRate)
	}
	if ind.GDPGrowth != 0 {
		fmt.Fprintf(&sb, "GDP growth (annualized): %.1f%%\n", ind.GDPGrowth)
	}
	if ind.InflationCPI != 0 {
		fmt.Fprintf(&sb, "CPI inflation YoY: %.1f%%\n", ind.InflationCPI)
	}
	if ind.Unemployment > 0 {
		fmt.Fprintf(&sb, "Unemployment: %.1f%%\n", ind.Unemployment)
	}
	sb.WriteString("\nSummarize the macro backdrop for equities in a short paragraph.")
	return sb.String()
}

// dataOnlySummary renders the fetched snapshot as prose when no model
// analysis is available.
func dataOnlySummary(ind models.MacroIndicators, risk string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The current macro environment reads as %s risk for equities.", risk)
	if ind.VIX > 0 {
		tone := "moderate"
		if ind.VIX > 20 {
			tone = "heightened"
		}
		fmt.Fprintf(&sb, " Market volatility (VIX %.1f) indicates %s uncertainty.", ind.VIX, tone)
	}
	if ind.FedRate > 0 {
		fmt.Fprintf(&sb, " The Fed funds rate stands at %.2f%%.", ind.FedRate)
	}
	if ind.InflationCPI != 0 {
		fmt.Fprintf(&sb, " CPI inflation is running at %.1f%% year over year.", ind.InflationCPI)
	}
	if ind.Unemployment > 0 {
		fmt.Fprintf(&sb, " Unemployment sits at %.1f%%.", ind.Unemployment)
	}
	return sb.String()
}

// ExtractRiskLevel pulls the RISK LEVEL value from model output.
func ExtractRiskLevel(raw string) (string, bool) {
	m := riskLevelRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// riskFromVIX is the algorithmic fallback when the model output omits
// a risk level. VIX above 30 reads as stressed markets, above 20 as
// elevated; a missing VIX defaults to medium.
func riskFromVIX(vix float64) string {
	switch {
	case vix <= 0:
		return "medium"
	case vix >= 30:
		return "high"
	case vix >= 20:
		return "medium"
	default:
		return "low"
	}
}

func stripRiskLine(raw string) string {
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, l := range lines {
		if riskLevelRe.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
