package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"nexuspay.backend/internal/config"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/pkg/redis"
)

const (
	priceCacheTTL      = 5 * time.Minute
	priceCachePrefix   = "price:usd:"
	refreshPerSecond   = 2 // upstream oracle allowance
	refreshBurst       = 5
)

// PriceSource returns the USD price for an oracle asset id
type PriceSource interface {
	PriceUSD(ctx context.Context, assetID string) (float64, error)
}

// Client fetches USD prices from a coingecko-compatible simple-price API.
// Responses are cached in Redis and upstream calls are rate limited, so a
// burst of balance refreshes costs one oracle round trip per asset.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter

	mu       sync.RWMutex
	fallback map[string]float64 // last good price per asset, oracle-outage fallback
}

// NewClient creates a price client from config
func NewClient(cfg config.OracleConfig) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(refreshPerSecond), refreshBurst),
		fallback: make(map[string]float64),
	}
}

// PriceUSD returns the cached USD price for an asset, refreshing on a miss
func (c *Client) PriceUSD(ctx context.Context, assetID string) (float64, error) {
	if cached, err := redis.Get(ctx, priceCachePrefix+assetID); err == nil {
		if price, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return price, nil
		}
	}

	price, err := c.fetch(ctx, assetID)
	if err != nil {
		// Serve the last good price during oracle outages.
		c.mu.RLock()
		last, ok := c.fallback[assetID]
		c.mu.RUnlock()
		if ok {
			return last, nil
		}
		return 0, err
	}

	c.mu.Lock()
	c.fallback[assetID] = price
	c.mu.Unlock()

	_ = redis.Set(ctx, priceCachePrefix+assetID, strconv.FormatFloat(price, 'f', -1, 64), priceCacheTTL)
	return price, nil
}

func (c *Client) fetch(ctx context.Context, assetID string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(assetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, domainerrors.Upstream("price oracle unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, domainerrors.Upstream(fmt.Sprintf("price oracle returned %d", resp.StatusCode), domainerrors.ErrUpstream)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, domainerrors.Upstream("price oracle bad response", err)
	}
	price, ok := body[assetID]["usd"]
	if !ok {
		return 0, domainerrors.Upstream("price oracle missing asset "+assetID, domainerrors.ErrUpstream)
	}
	return price, nil
}
