package agents

import (
	"context"
	"errors"
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

type stubMarket struct {
	profile models.CompanyFinancials
	candles []models.Candle
	err     error
}

func (s *stubMarket) Profile(ctx context.Context, symbol string) (models.CompanyFinancials, error) {
	return s.profile, s.err
}
func (s *stubMarket) Quote(ctx context.Context, symbol string) (float64, error) { return 0, s.err }
func (s *stubMarket) Candles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	return s.candles, s.err
}

type stubNews struct {
	company []models.Source
	market  []models.Source
	err     error
}

func (s *stubNews) CompanyNews(ctx context.Context, symbol string, max int) ([]models.Source, error) {
	return s.company, s.err
}
func (s *stubNews) MarketNews(ctx context.Context, max int) ([]models.Source, error) {
	return s.market, s.err
}

type stubMacro struct {
	ind models.MacroIndicators
	err error
}

func (s *stubMacro) Indicators(ctx context.Context) (models.MacroIndicators, error) {
	return s.ind, s.err
}

func noReport(string) {}

func TestExtractSentimentScore(t *testing.T) {
	cases := []struct {
		raw   string
		want  float64
		found bool
	}{
		{"all good\nSENTIMENT_SCORE: 0.7", 0.7, true},
		{"SENTIMENT_SCORE: -0.25 trailing", -0.25, true},
		{"SENTIMENT_SCORE: 5.0", 1, true},
		{"SENTIMENT_SCORE: -3", -1, true},
		{"no score here", 0, false},
	}
	for _, c := range cases {
		got, found := ExtractSentimentScore(c.raw)
		if got != c.want || found != c.found {
			t.Fatalf("ExtractSentimentScore(%q) = (%v, %v), want (%v, %v)", c.raw, got, found, c.want, c.found)
		}
	}
}

func TestExtractRiskLevel(t *testing.T) {
	if r, ok := ExtractRiskLevel("blah\nRISK LEVEL: High"); !ok || r != "high" {
		t.Fatalf("got (%q, %v)", r, ok)
	}
	if _, ok := ExtractRiskLevel("no level"); ok {
		t.Fatal("expected not found")
	}
}

func TestRiskFromVIX(t *testing.T) {
	cases := map[float64]string{0: "medium", 12: "low", 25: "medium", 35: "high"}
	for vix, want := range cases {
		if got := riskFromVIX(vix); got != want {
			t.Fatalf("riskFromVIX(%v) = %q, want %q", vix, got, want)
		}
	}
}

func TestSentimentAgentScoresAndStripsMarker(t *testing.T) {
	a := NewSentimentAgent(
		&stubNews{company: []models.Source{{Type: "news", Title: "Company beats estimates"}}},
		&stubGen{out: "Coverage is upbeat.\nSENTIMENT_SCORE: 0.6"},
		testLogger(t),
	)
	f, err := a.Analyze(context.Background(), "AAPL", noReport)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f.Agent != models.AgentSentiment || f.Sentiment == nil {
		t.Fatal("wrong fragment shape")
	}
	if f.Sentiment.Score != 0.6 {
		t.Fatalf("score = %v, want 0.6", f.Sentiment.Score)
	}
	if strings.Contains(f.Sentiment.Summary, "SENTIMENT_SCORE") {
		t.Fatalf("marker not stripped: %q", f.Sentiment.Summary)
	}
}

func TestSentimentAgentFallsBackToMarketNews(t *testing.T) {
	a := NewSentimentAgent(
		&stubNews{market: []models.Source{{Type: "news", Title: "Markets rally"}}},
		&stubGen{out: "SENTIMENT_SCORE: 0.1"},
		testLogger(t),
	)
	f, err := a.Analyze(context.Background(), "XYZ", noReport)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(f.Sentiment.Sources) != 1 || f.Sentiment.Sources[0].Title != "Markets rally" {
		t.Fatalf("sources = %+v", f.Sentiment.Sources)
	}
}

func TestFundamentalsAgentPropagatesFetchError(t *testing.T) {
	a := NewFundamentalsAgent(
		&stubMarket{err: errors.New("boom")},
		&stubNews{},
		&stubGen{out: "unused"},
		testLogger(t),
	)
	if _, err := a.Analyze(context.Background(), "AAPL", noReport); err == nil {
		t.Fatal("expected error")
	}
}

func TestFundamentalsAgentBuildsFragment(t *testing.T) {
	a := NewFundamentalsAgent(
		&stubMarket{profile: models.CompanyFinancials{Name: "Apple Inc", PERatio: 28}},
		&stubNews{company: []models.Source{{Type: "news", Title: "iPhone demand strong"}}},
		&stubGen{out: "  Solid balance sheet.  "},
		testLogger(t),
	)
	f, err := a.Analyze(context.Background(), "AAPL", noReport)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f.Fundamentals.Summary != "Solid balance sheet." {
		t.Fatalf("summary = %q", f.Fundamentals.Summary)
	}
	if f.Fundamentals.Financials.Name != "Apple Inc" {
		t.Fatalf("financials = %+v", f.Fundamentals.Financials)
	}
	// Data citation plus the news headline.
	if len(f.Fundamentals.Sources) != 2 {
		t.Fatalf("sources = %+v", f.Fundamentals.Sources)
	}
}

func TestMacroAgentUsesVIXFallback(t *testing.T) {
	a := NewMacroAgent(
		&stubMacro{ind: models.MacroIndicators{VIX: 34}},
		&stubGen{out: "Volatile environment, no marker line."},
		testLogger(t),
	)
	f, err := a.Analyze(context.Background(), "AAPL", noReport)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f.Macro.RiskLevel != "high" {
		t.Fatalf("risk = %q, want high from vix fallback", f.Macro.RiskLevel)
	}
}

func TestMacroAgentDegradesWhenGenerationFails(t *testing.T) {
	a := NewMacroAgent(
		&stubMacro{ind: models.MacroIndicators{VIX: 34, FedRate: 5.25}},
		&stubGen{err: errors.New("llm down")},
		testLogger(t),
	)
	f, err := a.Analyze(context.Background(), "AAPL", noReport)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	// The fetched snapshot survives; only the model commentary is lost.
	if f.Macro.Indicators.VIX != 34 || f.Macro.Indicators.FedRate != 5.25 {
		t.Fatalf("indicators = %+v", f.Macro.Indicators)
	}
	if f.Macro.RiskLevel != "high" {
		t.Fatalf("risk = %q, want high from vix", f.Macro.RiskLevel)
	}
	if !strings.Contains(f.Macro.Summary, "high risk") {
		t.Fatalf("summary = %q", f.Macro.Summary)
	}
	if len(f.Macro.Sources) != 1 {
		t.Fatalf("sources = %+v", f.Macro.Sources)
	}
}

func TestTechnicalAgentReportsProgress(t *testing.T) {
	var msgs []string
	a := NewTechnicalAgent(&stubMarket{err: errors.New("no candles")}, nil, testLogger(t))
	_, err := a.Analyze(context.Background(), "AAPL", func(m string) { msgs = append(msgs, m) })
	if err == nil {
		t.Fatal("expected error")
	}
	if len(msgs) != 1 || msgs[0] != "Fetching price history" {
		t.Fatalf("progress messages = %v", msgs)
	}
}
