package usecase

import (
	"context"
	"fmt"

	"StockSage/internal/domain/models"
	drepo "StockSage/internal/domain/repository"
	"StockSage/pkg/logger"
)

// ResultProcessor routes frozen analysis results to the configured
// archive backend. "none" turns archiving into a no-op, which is the
// default for local development.
type ResultProcessor struct {
	pub     drepo.Publisher
	archive drepo.Archive
	backend string
	log     *logger.Logger
}

func NewResultProcessor(pub drepo.Publisher, archive drepo.Archive, backend string, log *logger.Logger) *ResultProcessor {
	return &ResultProcessor{pub: pub, archive: archive, backend: backend, log: log}
}

func (p *ResultProcessor) Process(ctx context.Context, r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}

	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, r)
	case "clickhouse":
		err = p.archive.Store(ctx, r)
	case "none":
		return nil
	default:
		err = fmt.Errorf("unknown archive backend: %s", p.backend)
	}
	if err != nil {
		return fmt.Errorf("archive result: %w", err)
	}

	p.log.Debug("result archived",
		logger.String("symbol", r.Symbol), logger.String("backend", p.backend))
	return nil
}

func (p *ResultProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.archive != nil {
		_ = p.archive.Close()
	}
}
