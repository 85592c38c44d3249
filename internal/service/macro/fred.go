package macro

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/internal/service/cache"
	xhttp "StockSage/pkg/http"
	"StockSage/pkg/logger"
)

// FRED series IDs for the macro snapshot.
const (
	seriesVIX          = "VIXCLS"
	seriesFedRate      = "FEDFUNDS"
	seriesGDPGrowth    = "A191RL1Q225SBEA"
	seriesCPI          = "CPIAUCSL"
	seriesUnemployment = "UNRATE"
)

const cacheKey = "macro:snapshot"

// FredClient fetches the macroeconomic snapshot from the St. Louis Fed
// FRED API. The whole snapshot is cached as one unit since the series
// update monthly at most (VIX daily, which is close enough here).
type FredClient struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	cache   cache.BytesCache
	ttl     time.Duration
	log     *logger.Logger
}

type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
}

func NewFredClient(opts Options, c cache.BytesCache, log *logger.Logger) *FredClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.stlouisfed.org/fred"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 72 * time.Hour
	}
	return &FredClient{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		cache:   c,
		ttl:     opts.TTL,
		log:     log,
	}
}

var _ domsvc.MacroData = (*FredClient)(nil)

// Indicators returns the current macro snapshot. Individual series
// failures leave their field zero rather than failing the whole call;
// an error is returned only when every series is unavailable.
func (f *FredClient) Indicators(ctx context.Context) (models.MacroIndicators, error) {
	var out models.MacroIndicators

	if f.cache != nil {
		if b, ok, err := f.cache.GetBytes(cacheKey); err == nil && ok {
			if err := json.Unmarshal(b, &out); err == nil {
				return out, nil
			}
		}
	}

	got := 0
	fetch := func(series string, dst *float64) {
		v, err := f.latest(ctx, series)
		if err != nil {
			f.log.Warn("fred series unavailable", logger.String("series", series), logger.Error(err))
			return
		}
		*dst = v
		got++
	}

	fetch(seriesVIX, &out.VIX)
	fetch(seriesFedRate, &out.FedRate)
	fetch(seriesGDPGrowth, &out.GDPGrowth)
	fetch(seriesUnemployment, &out.Unemployment)

	if cpi, err := f.cpiYoY(ctx); err != nil {
		f.log.Warn("fred series unavailable", logger.String("series", seriesCPI), logger.Error(err))
	} else {
		out.InflationCPI = cpi
		got++
	}

	if got == 0 {
		return out, fmt.Errorf("no macro series available")
	}

	if f.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := f.cache.SetBytes(cacheKey, b, f.ttl); err != nil {
				f.log.Warn("cache write failed", logger.String("key", cacheKey), logger.Error(err))
			}
		}
	}
	return out, nil
}

type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// latest returns the most recent non-missing observation of a series.
func (f *FredClient) latest(ctx context.Context, series string) (float64, error) {
	obs, err := f.observations(ctx, series, 5)
	if err != nil {
		return 0, err
	}
	for _, o := range obs.Observations {
		if v, err := strconv.ParseFloat(o.Value, 64); err == nil {
			return v, nil
		}
		// FRED marks missing values with "."
	}
	return 0, fmt.Errorf("series %s: no numeric observations", series)
}

// cpiYoY derives year-over-year inflation from the CPI index level.
func (f *FredClient) cpiYoY(ctx context.Context) (float64, error) {
	obs, err := f.observations(ctx, seriesCPI, 14)
	if err != nil {
		return 0, err
	}
	vals := make([]float64, 0, len(obs.Observations))
	for i := len(obs.Observations) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(obs.Observations[i].Value, 64); err == nil {
			vals = append(vals, v)
		}
	}
	if len(vals) < 13 {
		return 0, fmt.Errorf("series %s: need 13 months, have %d", seriesCPI, len(vals))
	}
	latest, yearAgo := vals[len(vals)-1], vals[len(vals)-13]
	if yearAgo == 0 {
		return 0, fmt.Errorf("series %s: zero base", seriesCPI)
	}
	return (latest/yearAgo - 1) * 100, nil
}

func (f *FredClient) observations(ctx context.Context, series string, limit int) (*fredObservations, error) {
	var out fredObservations
	err := f.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    f.baseURL + "/series/observations",
		QueryParams: map[string][]string{
			"series_id":  {series},
			"api_key":    {f.apiKey},
			"file_type":  {"json"},
			"sort_order": {"desc"},
			"limit":      {strconv.Itoa(limit)},
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
