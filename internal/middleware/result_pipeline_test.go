package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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

type fakeProc struct {
	mu    sync.Mutex
	fails int
	seen  []string
}

func (f *fakeProc) Process(ctx context.Context, r *models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("downstream down")
	}
	f.seen = append(f.seen, r.Symbol)
	return nil
}

func (f *fakeProc) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func result(symbol string) *models.AnalysisResult {
	return &models.AnalysisResult{Symbol: symbol, Style: "balanced", GeneratedAt: time.Now()}
}

func TestPipelineRejectsInvalidResult(t *testing.T) {
	p := NewResultPipeline(&fakeProc{}, testLogger(t))
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil result")
	}
	if err := p.Process(context.Background(), &models.AnalysisResult{Symbol: ""}); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}

func TestPipelinePassThrough(t *testing.T) {
	proc := &fakeProc{}
	p := NewResultPipeline(proc, testLogger(t))
	if err := p.Process(context.Background(), result("AAPL")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := proc.processed(); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("processed = %v", got)
	}
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &fakeProc{fails: 2} // first direct attempt plus first retry fail
	p := NewResultPipeline(proc, testLogger(t), WithFlushBackoff(time.Millisecond))
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Process(context.Background(), result("MSFT")); err == nil {
		t.Fatal("expected downstream error")
	}

	deadline := time.After(2 * time.Second)
	for {
		if got := proc.processed(); len(got) == 1 && got[0] == "MSFT" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("result never flushed, processed = %v", proc.processed())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
