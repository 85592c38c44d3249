package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockSage/internal/domain/models"
	"StockSage/internal/service/agents"
	"StockSage/internal/service/decision"
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

type fakeAgent struct {
	name  models.AgentName
	frag  *models.Fragment
	err   error
	block bool
	panic bool
	delay time.Duration
}

func (f *fakeAgent) Name() models.AgentName { return f.name }

func (f *fakeAgent) Analyze(ctx context.Context, symbol string, report func(string)) (*models.Fragment, error) {
	if f.panic {
		panic("agent blew up")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.frag, nil
}

type fakeGen struct {
	out string
	err error
}

func (f *fakeGen) Generate(ctx context.Context, system, user string) (string, error) {
	return f.out, f.err
}

const goodDecision = `RECOMMENDATION: BUY
CONFIDENCE: 0.8
HORIZON: 6-9 months

KEY REASONS:
- Strong setup

REASONING:
Looks good.`

func healthyAgents() []agents.Agent {
	return []agents.Agent{
		&fakeAgent{name: models.AgentFundamentals, frag: &models.Fragment{
			Agent:        models.AgentFundamentals,
			Fundamentals: &models.FundamentalsFragment{Summary: "ok", Sources: []models.Source{{Type: "data", Title: "profile"}}},
		}},
		&fakeAgent{name: models.AgentTechnical, frag: &models.Fragment{
			Agent: models.AgentTechnical,
			Technical: &models.TechnicalFragment{
				Signals:    map[string]string{"overall": "bullish"},
				Indicators: models.TechnicalIndicators{Price: 123.45},
			},
		}},
		&fakeAgent{name: models.AgentSentiment, frag: &models.Fragment{
			Agent:     models.AgentSentiment,
			Sentiment: &models.SentimentFragment{Score: 0.3},
		}},
		&fakeAgent{name: models.AgentMacro, frag: &models.Fragment{
			Agent: models.AgentMacro,
			Macro: &models.MacroFragment{RiskLevel: "low"},
		}},
	}
}

func newOrchestrator(t *testing.T, ag []agents.Agent, gen *fakeGen) *Orchestrator {
	t.Helper()
	synth := decision.NewSynthesizer(gen, testLogger(t))
	return NewOrchestrator(ag, synth, nil, testLogger(t), time.Second, 5*time.Second)
}

func collect(t *testing.T, ch <-chan models.ProgressEvent) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestRunAllAgentsComplete(t *testing.T) {
	o := newOrchestrator(t, healthyAgents(), &fakeGen{out: goodDecision})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "aapl", Style: "balanced"}))

	last := events[len(events)-1]
	if last.Agent != models.AgentDecision || last.Status != models.StatusCompleted {
		t.Fatalf("terminal event = %+v", last)
	}
	if last.Data == nil {
		t.Fatal("terminal event missing payload")
	}
	if last.Data.Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want uppercased AAPL", last.Data.Symbol)
	}
	if last.Data.CurrentPrice != 123.45 {
		t.Fatalf("current price = %v", last.Data.CurrentPrice)
	}

	completed := map[models.AgentName]bool{}
	for _, ev := range events[:len(events)-1] {
		if ev.Data != nil {
			t.Fatalf("non-terminal event carries payload: %+v", ev)
		}
		if ev.Status == models.StatusCompleted && ev.Agent != models.AgentDecision {
			completed[ev.Agent] = true
		}
	}
	if len(completed) != 4 {
		t.Fatalf("completed agents = %v, want all four", completed)
	}

	for _, f := range models.Factors {
		if last.Data.AIRecommendation.AgentWeights[f] != 0.25 {
			t.Fatalf("ai weights = %v", last.Data.AIRecommendation.AgentWeights)
		}
	}
}

func TestRunStatusesMonotonicPerAgent(t *testing.T) {
	ag := healthyAgents()
	// Give one agent a report-heavy run to interleave events.
	ag[0] = &fakeAgent{name: models.AgentFundamentals, delay: 10 * time.Millisecond, frag: &models.Fragment{
		Agent:        models.AgentFundamentals,
		Fundamentals: &models.FundamentalsFragment{Summary: "ok"},
	}}
	o := newOrchestrator(t, ag, &fakeGen{out: goodDecision})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "MSFT", Style: "balanced"}))

	lastRank := map[models.AgentName]int{}
	for _, ev := range events {
		if r, ok := lastRank[ev.Agent]; ok && ev.Status.Rank() < r {
			t.Fatalf("agent %s regressed from rank %d to %d", ev.Agent, r, ev.Status.Rank())
		}
		lastRank[ev.Agent] = ev.Status.Rank()
	}
	if events[len(events)-1].Agent != models.AgentDecision {
		t.Fatal("decision event is not last")
	}
}

func TestRunOneAgentFailureUsesDefaultFragment(t *testing.T) {
	ag := healthyAgents()
	ag[2] = &fakeAgent{name: models.AgentSentiment, err: errors.New("news feed down")}
	o := newOrchestrator(t, ag, &fakeGen{out: goodDecision})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", Style: "balanced"}))

	sawFailed := false
	for _, ev := range events {
		if ev.Agent == models.AgentSentiment && ev.Status == models.StatusFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Fatal("no failed event for sentiment agent")
	}

	last := events[len(events)-1]
	if last.Status != models.StatusCompleted {
		t.Fatalf("terminal = %+v, one failure must not abort the request", last)
	}
	if last.Data.Sentiment == nil || last.Data.Sentiment.Score != 0 {
		t.Fatalf("sentiment fragment = %+v, want neutral default", last.Data.Sentiment)
	}
}

func TestRunTechnicalTimeoutAggressiveWeights(t *testing.T) {
	ag := healthyAgents()
	ag[1] = &fakeAgent{name: models.AgentTechnical, block: true}
	synth := decision.NewSynthesizer(&fakeGen{out: goodDecision}, testLogger(t))
	o := NewOrchestrator(ag, synth, nil, testLogger(t), 50*time.Millisecond, 5*time.Second)
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "XYZ", Style: "aggressive"}))

	var technicalSeq []models.AgentStatus
	for _, ev := range events {
		if ev.Agent == models.AgentTechnical {
			technicalSeq = append(technicalSeq, ev.Status)
		}
	}
	if len(technicalSeq) != 2 || technicalSeq[0] != models.StatusStarted || technicalSeq[1] != models.StatusFailed {
		t.Fatalf("technical sequence = %v, want [started failed]", technicalSeq)
	}

	last := events[len(events)-1]
	if last.Status != models.StatusCompleted {
		t.Fatalf("terminal = %+v", last)
	}
	if last.Data.Technical == nil || last.Data.Technical.Signals["overall"] != "neutral" {
		t.Fatalf("technical fragment = %+v, want neutral default", last.Data.Technical)
	}
	// Weights come from the style table, not from the degraded data.
	if w := last.Data.UserRecommendation.AgentWeights[models.FactorTechnical]; w < 0.5 {
		t.Fatalf("aggressive technical weight = %v, want >= 0.5", w)
	}
}

func TestRunAgentPanicIsContained(t *testing.T) {
	ag := healthyAgents()
	ag[3] = &fakeAgent{name: models.AgentMacro, panic: true}
	o := newOrchestrator(t, ag, &fakeGen{out: goodDecision})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", Style: "balanced"}))

	last := events[len(events)-1]
	if last.Status != models.StatusCompleted {
		t.Fatalf("terminal = %+v", last)
	}
	if last.Data.Macro == nil || last.Data.Macro.RiskLevel != "medium" {
		t.Fatalf("macro fragment = %+v, want medium-risk default", last.Data.Macro)
	}
}

func TestRunInvalidSymbolIsFatal(t *testing.T) {
	o := newOrchestrator(t, healthyAgents(), &fakeGen{out: goodDecision})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "  ", Style: "balanced"}))

	if len(events) != 1 {
		t.Fatalf("events = %+v, want single fatal event", events)
	}
	if events[0].Agent != models.AgentDecision || events[0].Status != models.StatusFailed {
		t.Fatalf("fatal event = %+v", events[0])
	}
	if events[0].Data != nil {
		t.Fatal("fatal event must not carry payload")
	}
}

func TestRunUnparseableDecisionStillCompletes(t *testing.T) {
	o := newOrchestrator(t, healthyAgents(), &fakeGen{out: "nonsense with no structure"})
	events := collect(t, o.Run(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", Style: "balanced"}))

	last := events[len(events)-1]
	if last.Status != models.StatusCompleted {
		t.Fatalf("terminal = %+v, unparseable text must not be fatal", last)
	}
	if last.Data.UserRecommendation.Action != models.ActionHold {
		t.Fatalf("action = %s, want neutral HOLD", last.Data.UserRecommendation.Action)
	}
}

func TestRunSync(t *testing.T) {
	o := newOrchestrator(t, healthyAgents(), &fakeGen{out: goodDecision})
	res, err := o.RunSync(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", Style: "conservative"})
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if res.AIRecommendation == nil || res.UserRecommendation == nil {
		t.Fatal("recommendations missing")
	}
	if res.ComparisonInsight == "" {
		t.Fatal("comparison insight missing")
	}
	if _, err := o.RunSync(context.Background(), models.AnalyzeRequest{Symbol: "", Style: "balanced"}); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}
