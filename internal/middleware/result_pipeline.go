package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockSage/internal/domain/models"
	"StockSage/pkg/logger"
)

// ResultProc is the minimal downstream interface the pipeline needs.
type ResultProc interface {
	Process(ctx context.Context, r *models.AnalysisResult) error
}

// ResultPipeline sits between the orchestrator and the archive
// backend. Archiving is best-effort: a failed write buffers the result
// and a background loop retries with exponential backoff, so a
// downstream outage never delays the response to the caller.
type ResultPipeline struct {
	proc    ResultProc
	log     *logger.Logger
	bufCh   chan *models.AnalysisResult
	stopCh  chan struct{}
	backoff time.Duration
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*ResultPipeline)

// WithBufferSize sets how many results can wait for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.AnalysisResult, n)
		}
	}
}

// WithFlushBackoff sets the initial retry backoff.
func WithFlushBackoff(d time.Duration) PipelineOption {
	return func(p *ResultPipeline) {
		if d > 0 {
			p.backoff = d
		}
	}
}

func NewResultPipeline(proc ResultProc, log *logger.Logger, opts ...PipelineOption) *ResultPipeline {
	p := &ResultPipeline{
		proc:    proc,
		log:     log,
		bufCh:   make(chan *models.AnalysisResult, 64),
		stopCh:  make(chan struct{}),
		backoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const maxBackoff = 2 * time.Second

// Start launches the background retry loop.
func (p *ResultPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := p.backoff
		for {
			select {
			case <-p.stopCh:
				return
			case r := <-p.bufCh:
				if r == nil {
					continue
				}
				if err := p.proc.Process(ctx, r); err != nil {
					if backoff < maxBackoff {
						backoff *= 2
					}
					p.log.Warn("archive retry failed",
						logger.String("symbol", r.Symbol),
						logger.Duration("backoff", backoff),
						logger.Error(err))
					time.Sleep(backoff)
					select {
					case p.bufCh <- r:
					default:
						p.log.Error("archive buffer full, dropping result",
							logger.String("symbol", r.Symbol))
					}
				} else {
					backoff = p.backoff
				}
			}
		}
	}()
}

// Stop halts the retry loop. Buffered results are abandoned.
func (p *ResultPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards one result, buffering on downstream
// failure.
func (p *ResultPipeline) Process(ctx context.Context, r *models.AnalysisResult) error {
	if err := validateResult(r); err != nil {
		return err
	}

	if err := p.proc.Process(ctx, r); err != nil {
		select {
		case p.bufCh <- r:
			p.log.Warn("archive unavailable, result buffered",
				logger.String("symbol", r.Symbol),
				logger.Int("buffered", len(p.bufCh)))
		default:
			p.log.Error("archive buffer full, dropping result",
				logger.String("symbol", r.Symbol))
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateResult(r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("result nil")
	}
	if r.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if r.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at unset")
	}
	return nil
}
