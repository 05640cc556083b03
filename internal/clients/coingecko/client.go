// Package coingecko provides a client for the CoinGecko public price API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
)

// Client for api.coingecko.com
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
	now     func() time.Time
}

// NewClient creates a new CoinGecko client. The timeout bounds every request;
// there are no retries.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "coingecko").Logger(),
		now:     time.Now,
	}
}

// priceEntry mirrors one asset in the simple/price response. Fields are
// pointers because CoinGecko returns null for unknown values.
type priceEntry struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
}

// SimplePrice fetches USD price, 24h change, market cap and 24h volume for ids
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]domain.AssetSnapshot, error) {
	if len(ids) == 0 {
		return map[string]domain.AssetSnapshot{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")
	params.Set("include_market_cap", "true")
	params.Set("include_24hr_vol", "true")

	reqURL := fmt.Sprintf("%s/simple/price?%s", c.baseURL, params.Encode())
	c.log.Debug().Int("ids", len(ids)).Msg("Fetching prices")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result map[string]*priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	fetchedAt := c.now()
	snapshots := make(map[string]domain.AssetSnapshot, len(result))
	for id, entry := range result {
		snapshot := domain.AssetSnapshot{Symbol: id, FetchedAt: fetchedAt}
		if entry != nil {
			if entry.USD != nil {
				snapshot.Price = *entry.USD
				snapshot.HasPrice = true
			}
			snapshot.Change24h = deref(entry.USD24hChange)
			snapshot.MarketCap = deref(entry.USDMarketCap)
			snapshot.Volume24h = deref(entry.USD24hVol)
		}
		snapshots[id] = snapshot
	}

	c.log.Debug().Int("assets", len(snapshots)).Msg("Fetched prices")
	return snapshots, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
