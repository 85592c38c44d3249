package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"StockSage/internal/domain/models"
	drepo "StockSage/internal/domain/repository"
	pkgch "StockSage/pkg/clickhouse"
	applogger "StockSage/pkg/logger"
)

// CHArchive persists frozen analysis results in ClickHouse. Header
// columns carry the queryable fields; the full result rides along as a
// JSON payload column.
type CHArchive struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHArchive(ch *pkgch.Client, l *applogger.Logger) drepo.Archive {
	return &CHArchive{db: ch.DB(), l: l}
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
    symbol          String,
    style           String,
    current_price   Float64,
    generated_at    DateTime64(3),
    ai_action       String,
    ai_confidence   Float64,
    user_action     String,
    user_confidence Float64,
    payload         String
) ENGINE = MergeTree()
ORDER BY (symbol, generated_at)
TTL toDateTime(generated_at) + INTERVAL 180 DAY
`

func (a *CHArchive) Init(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("init archive schema: %w", err)
	}
	return nil
}

func (a *CHArchive) Store(ctx context.Context, r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var aiAction, userAction string
	var aiConf, userConf float64
	if r.AIRecommendation != nil {
		aiAction, aiConf = string(r.AIRecommendation.Action), r.AIRecommendation.Confidence
	}
	if r.UserRecommendation != nil {
		userAction, userConf = string(r.UserRecommendation.Action), r.UserRecommendation.Confidence
	}

	const q = `
        INSERT INTO analysis_results
            (symbol, style, current_price, generated_at,
             ai_action, ai_confidence, user_action, user_confidence, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	if _, err := a.db.ExecContext(ctx, q,
		r.Symbol, r.Style, r.CurrentPrice, r.GeneratedAt,
		aiAction, aiConf, userAction, userConf, string(payload)); err != nil {
		if a.l != nil {
			a.l.Error("clickhouse store result error",
				applogger.String("symbol", r.Symbol), applogger.Error(err))
		}
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (a *CHArchive) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
        SELECT payload
        FROM analysis_results
        WHERE symbol = ? AND generated_at >= ? AND generated_at <= ?
        ORDER BY generated_at DESC
        LIMIT ?
    `
	rows, err := a.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AnalysisResult, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r models.AnalysisResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			if a.l != nil {
				a.l.Warn("skipping malformed archived result",
					applogger.String("symbol", symbol), applogger.Error(err))
			}
			continue
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (a *CHArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *CHArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
