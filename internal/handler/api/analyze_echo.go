package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"StockSage/internal/domain/models"
	drepo "StockSage/internal/domain/repository"
	"StockSage/internal/middleware"
	"StockSage/internal/usecase"
	xhttp "StockSage/pkg/http"
	xlogger "StockSage/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// AnalyzeEchoHandler exposes the analysis endpoints: a synchronous
// REST call, a streaming WebSocket variant, the chart series, and the
// archived-result history.
type AnalyzeEchoHandler struct {
	logger   *xlogger.Logger
	orch     *usecase.Orchestrator
	chart    *usecase.ChartUseCase
	pipeline *middleware.ResultPipeline
	archive  drepo.Archive // nil unless the clickhouse backend is configured
	grace    time.Duration
	upgrader websocket.Upgrader
}

func NewAnalyzeEchoHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, chart *usecase.ChartUseCase, pipeline *middleware.ResultPipeline, archive drepo.Archive, grace time.Duration) *AnalyzeEchoHandler {
	if grace <= 0 {
		grace = 500 * time.Millisecond
	}
	return &AnalyzeEchoHandler{
		logger:   logger,
		orch:     orch,
		chart:    chart,
		pipeline: pipeline,
		archive:  archive,
		grace:    grace,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *AnalyzeEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.GET("/stock/:symbol/chart", h.Chart)
	g.GET("/analysis/:symbol/history", h.History)
	e.GET("/ws/analyze/:symbol", h.AnalyzeStream)
}

// Analyze runs one orchestration to completion and returns only the
// final result.
func (h *AnalyzeEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.orch.RunSync(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("analyze usecase error",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()).WithError(err))
	}

	h.archiveResult(res)
	return xhttp.SuccessResponse(c, res)
}

// AnalyzeStream upgrades to WebSocket and relays progress events as
// one JSON object per message, closing shortly after the terminal
// event so the last frame is delivered before teardown.
func (h *AnalyzeEchoHandler) AnalyzeStream(c echo.Context) error {
	req := models.AnalyzeRequest{
		Symbol: c.Param("symbol"),
		Style:  c.QueryParam("style"),
	}
	if req.Style == "" {
		req.Style = "balanced"
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return xhttp.BadRequestResponse(c, "websocket upgrade failed")
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for ev := range h.orch.Run(ctx, req) {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Warn("websocket write failed, consumer gone",
				xlogger.String("symbol", req.Symbol), xlogger.Error(err))
			return nil
		}
		if ev.Agent == models.AgentDecision && ev.Status.Terminal() {
			if ev.Data != nil {
				h.archiveResult(ev.Data)
			}
		}
	}

	// Grace delay so the terminal frame flushes before close.
	time.Sleep(h.grace)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis complete"))
	return nil
}

// Chart returns the daily candle series and indicator snapshot for
// the price chart.
func (h *AnalyzeEchoHandler) Chart(c echo.Context) error {
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.chart.GetChart(c.Request().Context(), usecase.GetChartParams{
		Symbol: req.Symbol,
		Days:   req.Days,
	})
	if err != nil {
		h.logger.Error("chart usecase error",
			xlogger.String("symbol", c.Param("symbol")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// History returns archived analysis results for a symbol. Only
// available when the clickhouse archive backend is configured.
func (h *AnalyzeEchoHandler) History(c echo.Context) error {
	if h.archive == nil {
		return xhttp.NotFoundResponse(c, "result history requires the clickhouse archive backend")
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 20)
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.AddDate(0, -6, 0))

	rows, err := h.archive.Query(c.Request().Context(), symbol, from, to, limit)
	if err != nil {
		h.logger.Error("history query error",
			xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// archiveResult hands the frozen result to the archive pipeline.
// Best-effort: the response to the caller never waits on it.
func (h *AnalyzeEchoHandler) archiveResult(r *models.AnalysisResult) {
	if h.pipeline == nil || r == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.pipeline.Process(ctx, r); err != nil {
			h.logger.Warn("result archiving deferred",
				xlogger.String("symbol", r.Symbol), xlogger.Error(err))
		}
	}()
}
