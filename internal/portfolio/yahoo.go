package portfolio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adrianvollmer/solvency/internal/money"
)

const yahooChartTimeout = 15 * time.Second

// YahooChartProvider implements QuoteProvider against Yahoo Finance's public
// (unauthenticated) chart endpoint, the concrete instantiation of spec.md
// §6's opaque `fetch_quotes` collaborator. Grounded on
// original_source/src/services/market_data.rs's fetch_historical_quotes,
// which uses the same provider via the yahoo-finance-api Rust crate; Go has
// no equivalent wrapper crate in the example pack, so this talks to the
// documented v8/finance/chart JSON endpoint directly.
type YahooChartProvider struct {
	BaseURL    string
	httpClient *http.Client
}

// NewYahooChartProvider constructs a YahooChartProvider.
func NewYahooChartProvider() *YahooChartProvider {
	return &YahooChartProvider{
		BaseURL:    "https://query1.finance.yahoo.com",
		httpClient: &http.Client{Timeout: yahooChartTimeout},
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchQuotes requests daily closes for symbol between from and to
// (inclusive), skipping any bar with a null close (a non-trading day Yahoo
// still emits a timestamp for).
func (p *YahooChartProvider) FetchQuotes(symbol string, from, to money.Date) ([]Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		p.BaseURL, url.PathEscape(symbol), dateToUnix(from), dateToUnix(to.AddDays(1)))

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build chart request for %s: %w", symbol, err)
	}
	// Yahoo's chart endpoint rejects requests with no User-Agent header.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; solvency-market-data/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chart endpoint returned %d for %s", resp.StatusCode, symbol)
	}

	var parsed yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart endpoint error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data returned for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	quotes := make([]Quote, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		quotes = append(quotes, Quote{
			Date:            money.NewDate(t.Year(), t.Month(), t.Day()),
			ClosePriceCents: money.FromMajor(*closes[i]),
		})
	}
	return quotes, nil
}

func dateToUnix(d money.Date) int64 {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
