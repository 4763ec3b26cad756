// Package coingecko is a thin HTTP client for the CoinGecko v3 API. It owns
// the per-call timeout and header injection; retry and fallback policy live
// one layer up in the market package.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// proAPIKeyHeader is only sent when an API key is configured.
	proAPIKeyHeader = "x-cg-pro-api-key"

	maxSearchResults = 10
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// marketRow mirrors one element of the /coins/markets response. The 24h
// change is nullable upstream and normalized to 0 on decode.
type marketRow struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Image             string   `json:"image"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         float64  `json:"market_cap"`
	MarketCapRank     int      `json:"market_cap_rank"`
	PriceChange24h    *float64 `json:"price_change_percentage_24h"`
	TotalVolume       float64  `json:"total_volume"`
	CirculatingSupply float64  `json:"circulating_supply"`
}

// Markets fetches one page of the bulk market listing ordered by market cap.
func (c *Client) Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]models.PriceQuote, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	var rows []marketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}

	quotes := make([]models.PriceQuote, 0, len(rows))
	for _, row := range rows {
		change := 0.0
		if row.PriceChange24h != nil {
			change = *row.PriceChange24h
		}
		quotes = append(quotes, models.PriceQuote{
			ID:                row.ID,
			Symbol:            strings.ToUpper(row.Symbol),
			Name:              row.Name,
			Image:             row.Image,
			CurrentPrice:      row.CurrentPrice,
			MarketCap:         row.MarketCap,
			MarketCapRank:     row.MarketCapRank,
			PriceChange24h:    change,
			TotalVolume:       row.TotalVolume,
			CirculatingSupply: row.CirculatingSupply,
			Type:              models.AssetCrypto,
		})
	}
	return quotes, nil
}

// PriceMap is the nested id -> currency/metric -> value shape of
// /simple/price. Metric keys follow the upstream convention: "usd",
// "usd_24h_change", "usd_market_cap" and so on per requested currency.
type PriceMap map[string]map[string]float64

// SimplePrice fetches spot prices for a set of provider ids in one call.
func (c *Client) SimplePrice(ctx context.Context, ids, vsCurrencies []string) (PriceMap, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", strings.Join(vsCurrencies, ","))
	params.Set("include_24hr_change", "true")
	params.Set("include_market_cap", "true")

	var prices PriceMap
	if err := c.get(ctx, "/simple/price", params, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		Name          string `json:"name"`
		Large         string `json:"large"`
		Thumb         string `json:"thumb"`
		MarketCapRank int    `json:"market_cap_rank"`
	} `json:"coins"`
}

// Search runs the free-text instrument search, truncated to the top 10
// matches as the provider ranks them.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	coins := resp.Coins
	if len(coins) > maxSearchResults {
		coins = coins[:maxSearchResults]
	}

	results := make([]models.SearchResult, 0, len(coins))
	for _, coin := range coins {
		image := coin.Large
		if image == "" {
			image = coin.Thumb
		}
		results = append(results, models.SearchResult{
			ID:            coin.ID,
			Symbol:        strings.ToUpper(coin.Symbol),
			Name:          coin.Name,
			Image:         image,
			MarketCapRank: coin.MarketCapRank,
			Country:       "Crypto",
			Type:          models.AssetCrypto,
		})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return apperr.Upstream("build request", err)
	}
	if c.apiKey != "" {
		req.Header.Set(proAPIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream(fmt.Sprintf("GET %s", path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Upstream(fmt.Sprintf("GET %s: status %d", path, resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream(fmt.Sprintf("decode %s response", path), err)
	}
	return nil
}
