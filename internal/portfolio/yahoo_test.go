package portfolio

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/money"
)

func TestYahooChartProvider_FetchQuotes_ParsesClosesAndSkipsNullBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "Mozilla/5.0 (compatible; solvency-market-data/1.0)", r.Header.Get("User-Agent"))
		day1 := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC).Unix()
		day2 := time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC).Unix()
		day3 := time.Date(2026, time.January, 4, 0, 0, 0, 0, time.UTC).Unix()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{` +
			`"timestamp":[` + strconv.FormatInt(day1, 10) + `,` + strconv.FormatInt(day2, 10) + `,` + strconv.FormatInt(day3, 10) + `],` +
			`"indicators":{"quote":[{"close":[150.25,null,152.10]}]}` +
			`}],"error":null}}`))
	}))
	defer server.Close()

	provider := &YahooChartProvider{BaseURL: server.URL, httpClient: server.Client()}
	from := money.NewDate(2026, time.January, 2)
	to := money.NewDate(2026, time.January, 4)

	quotes, err := provider.FetchQuotes("AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, quotes, 2) // the null-close bar is skipped

	assert.Equal(t, money.NewDate(2026, time.January, 2), quotes[0].Date)
	assert.Equal(t, money.FromMajor(150.25), quotes[0].ClosePriceCents)
	assert.Equal(t, money.NewDate(2026, time.January, 4), quotes[1].Date)
	assert.Equal(t, money.FromMajor(152.10), quotes[1].ClosePriceCents)
}

func TestYahooChartProvider_FetchQuotes_ChartErrorReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":{"description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	provider := &YahooChartProvider{BaseURL: server.URL, httpClient: server.Client()}
	_, err := provider.FetchQuotes("DELISTED", money.NewDate(2026, time.January, 1), money.NewDate(2026, time.January, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")
}

func TestYahooChartProvider_FetchQuotes_NonSuccessStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := &YahooChartProvider{BaseURL: server.URL, httpClient: server.Client()}
	_, err := provider.FetchQuotes("BOGUS", money.NewDate(2026, time.January, 1), money.NewDate(2026, time.January, 2))
	require.Error(t, err)
}
