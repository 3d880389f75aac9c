// Package binance attaches spot market data to accounts that map to a
// tradable asset.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pulseboard/internal/tracker"
	"pulseboard/pkg/config"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logger"
)

// symbolMap maps tracked usernames to Binance spot pairs. Accounts
// without an entry simply carry no market data.
var symbolMap = map[string]string{
	"bitcoin":       "BTCUSDT",
	"ethereum":      "ETHUSDT",
	"binance":       "BNBUSDT",
	"dogecoin":      "DOGEUSDT",
	"cardano":       "ADAUSDT",
	"solana":        "SOLUSDT",
	"ripple":        "XRPUSDT",
	"polkadot":      "DOTUSDT",
	"avalancheavax": "AVAXUSDT",
	"chainlink":     "LINKUSDT",
}

// Client talks to the Binance public REST API.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a Binance client from config.
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.BinanceConfig) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "binance"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Symbol returns the trading pair for a username, or false.
func Symbol(username string) (string, bool) {
	s, ok := symbolMap[strings.ToLower(username)]
	return s, ok
}

type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type statsResponse struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Market returns spot market data for the account, or nil when the
// account maps to no trading pair.
func (c *Client) Market(ctx context.Context, username string) (*tracker.MarketData, error) {
	symbol, ok := Symbol(username)
	if !ok {
		return nil, nil
	}

	price, err := c.fetchPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stats, err := c.fetchStats(ctx, symbol)
	if err != nil {
		return nil, err
	}

	change, err := strconv.ParseFloat(stats.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: bad priceChangePercent %q: %w", stats.PriceChangePercent, err)
	}
	volume, err := strconv.ParseFloat(stats.QuoteVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: bad quoteVolume %q: %w", stats.QuoteVolume, err)
	}

	return &tracker.MarketData{
		Symbol:       symbol,
		Price:        price,
		Change24h:    change,
		QuoteVolume:  volume,
		MarketCapStr: tracker.FormatCount(int64(volume * price)),
	}, nil
}

func (c *Client) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	reqURL := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return 0, fmt.Errorf("binance: price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance: price: unexpected status code: %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("binance: price: decode failed: %w", err)
	}

	price, err := strconv.ParseFloat(pr.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: bad price %q: %w", pr.Price, err)
	}
	return price, nil
}

func (c *Client) fetchStats(ctx context.Context, symbol string) (statsResponse, error) {
	reqURL := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return statsResponse{}, fmt.Errorf("binance: stats request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statsResponse{}, fmt.Errorf("binance: stats: unexpected status code: %d", resp.StatusCode)
	}

	var sr statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return statsResponse{}, fmt.Errorf("binance: stats: decode failed: %w", err)
	}
	return sr, nil
}
