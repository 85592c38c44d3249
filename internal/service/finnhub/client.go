package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/internal/service/cache"
	"StockSage/internal/service/ratelimit"
	xhttp "StockSage/pkg/http"
	"StockSage/pkg/logger"
)

// Finnhub free tier allows 60 calls/minute; stay under it.
const (
	limiterKey      = "finnhub"
	limiterCapacity = 30
	limiterRefill   = 0.5 // tokens per second
)

// Client is a Finnhub REST client implementing MarketData and NewsFeed.
// Responses are cached per endpoint with TTLs matching how fast each
// series actually moves.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	cache   cache.BytesCache
	limiter *ratelimit.Limiter
	log     *logger.Logger

	quoteTTL time.Duration
	newsTTL  time.Duration
}

type Options struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	QuoteTTL time.Duration
	NewsTTL  time.Duration
}

func New(opts Options, c cache.BytesCache, lim *ratelimit.Limiter, log *logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://finnhub.io/api/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  opts.BaseURL,
		http:     xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		cache:    c,
		limiter:  lim,
		log:      log,
		quoteTTL: opts.QuoteTTL,
		newsTTL:  opts.NewsTTL,
	}
}

var (
	_ domsvc.MarketData = (*Client)(nil)
	_ domsvc.NewsFeed   = (*Client)(nil)
)

type fhProfile struct {
	Name                 string  `json:"name"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	MarketCapitalization float64 `json:"marketCapitalization"` // millions
}

type fhMetrics struct {
	Metric struct {
		PE            float64 `json:"peTTM"`
		RevenueGrowth float64 `json:"revenueGrowthTTMYoy"`
		NetMargin     float64 `json:"netProfitMarginTTM"`
		DebtToEquity  float64 `json:"totalDebt/totalEquityQuarterly"`
	} `json:"metric"`
}

// Profile fetches company identity and fundamental ratios. Two calls
// behind one method; either may be partially empty on the free tier.
func (c *Client) Profile(ctx context.Context, symbol string) (models.CompanyFinancials, error) {
	var out models.CompanyFinancials

	var p fhProfile
	if err := c.get(ctx, "/stock/profile2", map[string][]string{"symbol": {symbol}}, 0, &p); err != nil {
		return out, fmt.Errorf("profile %s: %w", symbol, err)
	}
	if p.Name == "" {
		return out, fmt.Errorf("profile %s: unknown symbol", symbol)
	}

	out.Name = p.Name
	out.Sector = p.FinnhubIndustry
	out.Industry = p.FinnhubIndustry
	out.MarketCap = p.MarketCapitalization * 1e6

	var m fhMetrics
	if err := c.get(ctx, "/stock/metric", map[string][]string{"symbol": {symbol}, "metric": {"all"}}, 0, &m); err != nil {
		// Ratios are an enrichment; identity alone is still useful.
		c.log.Warn("finnhub metrics unavailable", logger.String("symbol", symbol), logger.Error(err))
		return out, nil
	}
	out.PERatio = m.Metric.PE
	out.RevenueGrowth = m.Metric.RevenueGrowth
	out.ProfitMargin = m.Metric.NetMargin
	out.DebtRatio = m.Metric.DebtToEquity
	return out, nil
}

type fhQuote struct {
	Current float64 `json:"c"`
}

// Quote returns the latest trade price.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	var q fhQuote
	if err := c.get(ctx, "/quote", map[string][]string{"symbol": {symbol}}, c.quoteTTL, &q); err != nil {
		return 0, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if q.Current <= 0 {
		return 0, fmt.Errorf("quote %s: no price", symbol)
	}
	return q.Current, nil
}

type fhCandles struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
}

// Candles fetches daily OHLCV bars for the trailing days window.
func (c *Client) Candles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -days)

	var r fhCandles
	params := map[string][]string{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(now.Unix(), 10)},
	}
	key := fmt.Sprintf("fh:candles:%s:%d:%s", symbol, days, now.Format("2006-01-02"))
	if err := c.getKeyed(ctx, key, "/stock/candle", params, c.quoteTTL, &r); err != nil {
		return nil, fmt.Errorf("candles %s: %w", symbol, err)
	}
	if r.Status != "ok" || len(r.Close) == 0 {
		return nil, fmt.Errorf("candles %s: no data (status %q)", symbol, r.Status)
	}

	out := make([]models.Candle, 0, len(r.Close))
	for i := range r.Close {
		candle := models.Candle{Close: r.Close[i]}
		if i < len(r.Open) {
			candle.Open = r.Open[i]
		}
		if i < len(r.High) {
			candle.High = r.High[i]
		}
		if i < len(r.Low) {
			candle.Low = r.Low[i]
		}
		if i < len(r.Volume) {
			candle.Volume = r.Volume[i]
		}
		if i < len(r.Time) {
			candle.Bucket = time.Unix(r.Time[i], 0).UTC()
		}
		out = append(out, candle)
	}
	return out, nil
}

type fhNews struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// CompanyNews fetches recent headlines for a symbol, newest first.
func (c *Client) CompanyNews(ctx context.Context, symbol string, max int) ([]models.Source, error) {
	now := time.Now()
	params := map[string][]string{
		"symbol": {symbol},
		"from":   {now.AddDate(0, 0, -7).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}
	var items []fhNews
	if err := c.get(ctx, "/company-news", params, c.newsTTL, &items); err != nil {
		return nil, fmt.Errorf("company news %s: %w", symbol, err)
	}
	return newsToSources(items, max), nil
}

// MarketNews fetches general market headlines.
func (c *Client) MarketNews(ctx context.Context, max int) ([]models.Source, error) {
	var items []fhNews
	if err := c.get(ctx, "/news", map[string][]string{"category": {"general"}}, c.newsTTL, &items); err != nil {
		return nil, fmt.Errorf("market news: %w", err)
	}
	return newsToSources(items, max), nil
}

func newsToSources(items []fhNews, max int) []models.Source {
	out := make([]models.Source, 0, max)
	for _, it := range items {
		if it.Headline == "" {
			continue
		}
		out = append(out, models.Source{
			Type:      "news",
			Title:     it.Headline,
			URL:       it.URL,
			Timestamp: time.Unix(it.Datetime, 0).UTC().Format(time.RFC3339),
		})
		if len(out) >= max {
			break
		}
	}
	return out
}

// get performs one cached, rate-limited GET. ttl <= 0 bypasses the cache.
func (c *Client) get(ctx context.Context, path string, params map[string][]string, ttl time.Duration, dest any) error {
	return c.getKeyed(ctx, cacheKey(path, params), path, params, ttl, dest)
}

func (c *Client) getKeyed(ctx context.Context, key, path string, params map[string][]string, ttl time.Duration, dest any) error {
	if ttl > 0 && c.cache != nil {
		if b, ok, err := c.cache.GetBytes(key); err == nil && ok {
			return json.Unmarshal(b, dest)
		}
	}

	if c.limiter != nil && !c.limiter.Allow(limiterKey, limiterCapacity, limiterRefill) {
		return fmt.Errorf("finnhub rate limit exceeded")
	}

	params["token"] = []string{c.apiKey}
	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, &raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if ttl > 0 && c.cache != nil {
		if err := c.cache.SetBytes(key, raw, ttl); err != nil {
			c.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return nil
}

func cacheKey(path string, params map[string][]string) string {
	key := "fh:" + path
	for _, k := range []string{"symbol", "resolution", "from", "to", "category", "metric"} {
		if vs, ok := params[k]; ok && len(vs) > 0 {
			key += ":" + vs[0]
		}
	}
	return key
}
