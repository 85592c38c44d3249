package di

import (
	"context"
	"fmt"
	"time"

	drepo "StockSage/internal/domain/repository"
	domsvc "StockSage/internal/domain/service"
	"StockSage/internal/handler/api"
	mid "StockSage/internal/middleware"
	internalrepo "StockSage/internal/repository"
	"StockSage/internal/service/agents"
	"StockSage/internal/service/cache"
	"StockSage/internal/service/decision"
	"StockSage/internal/service/finnhub"
	"StockSage/internal/service/indicators"
	"StockSage/internal/service/llm"
	"StockSage/internal/service/macro"
	"StockSage/internal/service/ratelimit"
	"StockSage/internal/usecase"
	pkgch "StockSage/pkg/clickhouse"
	"StockSage/pkg/config"
	xhttp "StockSage/pkg/http"
	pkgkafka "StockSage/pkg/kafka"
	applogger "StockSage/pkg/logger"
	"StockSage/pkg/metrics"
	"StockSage/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideCache selects the response cache backend: Redis when
// configured, in-process TTL map otherwise.
func ProvideCache(cfg *config.Config) cache.BytesCache {
	if cfg.Analysis.Redis.Enabled {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Analysis.Redis.Addr,
			Password: cfg.Analysis.Redis.Password,
			DB:       cfg.Analysis.Redis.DB,
		})
	}
	return cache.NewTTLCache()
}

// ProvideRateLimiter creates the shared keyed token-bucket limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideFinnhubClient creates the Finnhub REST client.
func ProvideFinnhubClient(cfg *config.Config, c cache.BytesCache, lim *ratelimit.Limiter, l *applogger.Logger) *finnhub.Client {
	return finnhub.New(finnhub.Options{
		APIKey:   cfg.Finnhub.APIKey,
		BaseURL:  cfg.Finnhub.BaseURL,
		Timeout:  cfg.Finnhub.Timeout,
		QuoteTTL: cfg.Analysis.CacheTTL.Quote,
		NewsTTL:  cfg.Analysis.CacheTTL.News,
	}, c, lim, l)
}

// ProvideMarketData exposes the Finnhub client as market data source.
func ProvideMarketData(c *finnhub.Client) domsvc.MarketData { return c }

// ProvideNewsFeed exposes the Finnhub client as news source.
func ProvideNewsFeed(c *finnhub.Client) domsvc.NewsFeed { return c }

// ProvideMacroData creates the FRED macro snapshot client.
func ProvideMacroData(cfg *config.Config, c cache.BytesCache, l *applogger.Logger) domsvc.MacroData {
	return macro.NewFredClient(macro.Options{
		APIKey:  cfg.Fred.APIKey,
		BaseURL: cfg.Fred.BaseURL,
		Timeout: cfg.Fred.Timeout,
		TTL:     cfg.Analysis.CacheTTL.Macro,
	}, c, l)
}

// ProvideTextGenerator creates the configured LLM backend.
func ProvideTextGenerator(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) (domsvc.TextGenerator, error) {
	return llm.NewGenerator(cfg, m, l)
}

// ProvideIndicatorEngine creates the technical indicator engine.
func ProvideIndicatorEngine() domsvc.IndicatorEngine {
	return indicators.NewEngine()
}

// ProvideAgents assembles the four analysis agents in launch order.
func ProvideAgents(
	market domsvc.MarketData,
	news domsvc.NewsFeed,
	macroData domsvc.MacroData,
	engine domsvc.IndicatorEngine,
	gen domsvc.TextGenerator,
	l *applogger.Logger,
) []agents.Agent {
	return []agents.Agent{
		agents.NewFundamentalsAgent(market, news, gen, l),
		agents.NewTechnicalAgent(market, engine, l),
		agents.NewSentimentAgent(news, gen, l),
		agents.NewMacroAgent(macroData, gen, l),
	}
}

// ProvideSynthesizer creates the recommendation synthesizer.
func ProvideSynthesizer(gen domsvc.TextGenerator, l *applogger.Logger) *decision.Synthesizer {
	return decision.NewSynthesizer(gen, l)
}

// ProvideOrchestrator creates the fan-out analysis orchestrator.
func ProvideOrchestrator(
	ag []agents.Agent,
	synth *decision.Synthesizer,
	m drepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(ag, synth, m, l,
		cfg.Analysis.TaskTimeout, cfg.Analysis.DecisionTimeout)
}

// ProvideChartUseCase creates the chart series use case.
func ProvideChartUseCase(market domsvc.MarketData, engine domsvc.IndicatorEngine) *usecase.ChartUseCase {
	return usecase.NewChartUseCase(market, engine)
}

// ProvideKafkaProducer creates a Kafka producer when the kafka archive
// backend is selected; otherwise archiving never touches Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Archive.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client when the
// clickhouse archive backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Archive.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePublisher creates the Kafka result publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.Topic)
}

// ProvideArchive creates the ClickHouse result archive and ensures its
// schema exists.
func ProvideArchive(chClient *pkgch.Client, l *applogger.Logger) (drepo.Archive, error) {
	if chClient == nil {
		return nil, nil
	}
	archive := internalrepo.NewCHArchive(chClient, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return archive, nil
}

// ProvideResultProcessor creates the archive backend router.
func ProvideResultProcessor(pub drepo.Publisher, archive drepo.Archive, cfg *config.Config, l *applogger.Logger) *usecase.ResultProcessor {
	return usecase.NewResultProcessor(pub, archive, cfg.Archive.Backend, l)
}

// ProvideResultPipeline creates the buffering retry pipeline in front
// of the archive backend.
func ProvideResultPipeline(proc *usecase.ResultProcessor, cfg *config.Config, l *applogger.Logger) *mid.ResultPipeline {
	return mid.NewResultPipeline(proc, l,
		mid.WithBufferSize(cfg.Archive.BufferSize),
		mid.WithFlushBackoff(cfg.Archive.FlushBackoff),
	)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	orch *usecase.Orchestrator,
	chart *usecase.ChartUseCase,
	pipeline *mid.ResultPipeline,
	archive drepo.Archive,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewAnalyzeEchoHandler(l, orch, chart, pipeline, archive, cfg.Analysis.StreamGrace)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	pipeline *mid.ResultPipeline,
	processor *usecase.ResultProcessor,
	archive drepo.Archive,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, pipeline, processor, archive, chClient)
}
