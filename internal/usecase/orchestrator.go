package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"StockSage/internal/domain/models"
	"StockSage/internal/domain/repository"
	"StockSage/internal/service/agents"
	"StockSage/internal/service/decision"
	"StockSage/pkg/logger"
)

// eventBuffer bounds the in-flight event backlog. It comfortably
// exceeds the maximum events one request can produce (four agents with
// a handful of transitions each, plus the decision pair), so task
// completion never blocks on a slow consumer; the consumer-facing
// delivery is what stalls instead.
const eventBuffer = 32

// Orchestrator fans out the four analysis agents, merges their
// fragments into the single shared result, and runs the decision
// synthesizer once all of them have settled. One Run per request; the
// returned stream is finite and not restartable.
type Orchestrator struct {
	agents      []agents.Agent
	synth       *decision.Synthesizer
	metrics     repository.Metrics
	log         *logger.Logger
	taskTimeout time.Duration
	decTimeout  time.Duration
}

func NewOrchestrator(ag []agents.Agent, synth *decision.Synthesizer, metrics repository.Metrics, log *logger.Logger, taskTimeout, decisionTimeout time.Duration) *Orchestrator {
	if taskTimeout <= 0 {
		taskTimeout = 60 * time.Second
	}
	if decisionTimeout <= 0 {
		decisionTimeout = 120 * time.Second
	}
	return &Orchestrator{
		agents:      ag,
		synth:       synth,
		metrics:     metrics,
		log:         log,
		taskTimeout: taskTimeout,
		decTimeout:  decisionTimeout,
	}
}

// Run starts one orchestration and returns its progress stream. Events
// arrive in transition order, each agent's own events never regress,
// and the terminal decision event is always last. The channel is
// closed after the terminal event.
func (o *Orchestrator) Run(ctx context.Context, req models.AnalyzeRequest) <-chan models.ProgressEvent {
	out := make(chan models.ProgressEvent, eventBuffer)

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	style := models.InvestmentStyle(req.Style)
	if style == "" {
		style = models.StyleBalanced
	}

	go func() {
		defer close(out)

		emit := func(ev models.ProgressEvent) {
			if o.metrics != nil {
				o.metrics.RecordEventEmitted(string(ev.Agent), string(ev.Status))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// Caller gone; keep settling quietly.
			}
		}

		// The only request-fatal condition: unusable input.
		if symbol == "" || !style.Valid() {
			emit(models.ProgressEvent{
				Agent:   models.AgentDecision,
				Status:  models.StatusFailed,
				Message: fmt.Sprintf("invalid request: symbol %q, style %q", req.Symbol, req.Style),
			})
			return
		}

		if o.metrics != nil {
			o.metrics.RecordAnalysis(string(style))
		}
		o.log.Info("analysis started",
			logger.String("symbol", symbol), logger.String("style", string(style)))

		// Fan out. Tasks return fragments through the settled channel;
		// they never see the shared result.
		settled := make(chan *models.Fragment, len(o.agents))
		var wg sync.WaitGroup
		for _, a := range o.agents {
			wg.Add(1)
			go func(a agents.Agent) {
				defer wg.Done()
				settled <- o.runAgent(ctx, a, symbol, emit)
			}(a)
		}
		go func() { wg.Wait(); close(settled) }()

		// Single-writer merge: only this loop touches the result.
		result := &models.AnalysisResult{
			Symbol:  symbol,
			Style:   string(style),
			Sources: []models.Source{},
		}
		for f := range settled {
			result.Merge(f)
		}

		// Fan-in complete; the decision step runs alone.
		emit(models.ProgressEvent{Agent: models.AgentDecision, Status: models.StatusStarted, Message: "Synthesizing recommendations"})

		decCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.decTimeout)
		defer cancel()
		if err := o.synth.Synthesize(decCtx, result); err != nil {
			o.log.Error("decision synthesis failed", logger.String("symbol", symbol), logger.Error(err))
			emit(models.ProgressEvent{
				Agent:   models.AgentDecision,
				Status:  models.StatusFailed,
				Message: "recommendation synthesis failed: " + err.Error(),
			})
			return
		}

		result.GeneratedAt = time.Now().UTC()
		o.log.Info("analysis completed",
			logger.String("symbol", symbol),
			logger.String("ai_action", string(result.AIRecommendation.Action)),
			logger.String("user_action", string(result.UserRecommendation.Action)))

		emit(models.ProgressEvent{
			Agent:   models.AgentDecision,
			Status:  models.StatusCompleted,
			Message: "Analysis complete",
			Data:    result,
		})
	}()

	return out
}

// runAgent drives one agent through its lifecycle. Any fault, whether
// error, timeout or panic, converts to a failed status plus that
// category's default fragment; raw errors never propagate upward.
func (o *Orchestrator) runAgent(ctx context.Context, a agents.Agent, symbol string, emit func(models.ProgressEvent)) (frag *models.Fragment) {
	name := a.Name()
	start := time.Now()

	defer func() {
		if o.metrics != nil {
			o.metrics.RecordAgentDuration(string(name), time.Since(start).Seconds())
		}
		if r := recover(); r != nil {
			o.log.Error("agent panicked",
				logger.String("agent", string(name)), logger.Any("panic", r))
			if o.metrics != nil {
				o.metrics.RecordAgentFailure(string(name), "panic")
			}
			emit(models.ProgressEvent{Agent: name, Status: models.StatusFailed, Message: "internal error"})
			frag = models.DefaultFragment(name, "internal error")
		}
	}()

	emit(models.ProgressEvent{Agent: name, Status: models.StatusStarted})

	taskCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	report := func(msg string) {
		emit(models.ProgressEvent{Agent: name, Status: models.StatusInProgress, Message: msg})
	}

	f, err := a.Analyze(taskCtx, symbol, report)
	if err != nil {
		kind := "error"
		if taskCtx.Err() == context.DeadlineExceeded {
			kind = "timeout"
		}
		o.log.Warn("agent failed",
			logger.String("agent", string(name)),
			logger.String("kind", kind),
			logger.Error(err))
		if o.metrics != nil {
			o.metrics.RecordAgentFailure(string(name), kind)
		}
		emit(models.ProgressEvent{Agent: name, Status: models.StatusFailed, Message: err.Error()})
		return models.DefaultFragment(name, err.Error())
	}

	emit(models.ProgressEvent{Agent: name, Status: models.StatusCompleted})
	return f
}

// RunSync drives one orchestration to completion and returns only the
// final result. The intermediate events are consumed internally.
func (o *Orchestrator) RunSync(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	var terminal *models.ProgressEvent
	for ev := range o.Run(ctx, req) {
		if ev.Agent == models.AgentDecision && ev.Status.Terminal() {
			ev := ev
			terminal = &ev
		}
	}
	if terminal == nil {
		return nil, fmt.Errorf("analysis aborted: %w", ctx.Err())
	}
	if terminal.Status == models.StatusFailed {
		return nil, fmt.Errorf("analysis failed: %s", terminal.Message)
	}
	return terminal.Data, nil
}
