package bitget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bitget-pnl-tracker-go/internal/config"
	"bitget-pnl-tracker-go/internal/fills"
)

const (
	tradeFillsPath = "/bitget/order/trade-fills"
	// DefaultPageSize is the largest page the backend serves.
	DefaultPageSize = config.MaxPageSize
)

// RestClientInterface defines the backend calls the tracker depends on.
type RestClientInterface interface {
	GetTradeFills(ctx context.Context, q FillsQuery) ([]fills.RawFill, error)
}

// FillsQuery selects one page of trade fills. The backend returns fills
// newest first; IDLessThan pages backwards from a trade id.
type FillsQuery struct {
	Limit      int
	IDLessThan string
	Symbol     string
}

// RestClient is a client for the backend's Bitget REST endpoints.
// It implements the RestClientInterface.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new backend REST API client.
func NewRestClient(cfg *config.Backend, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	} else {
		logger.Warn("No backend token configured, requests are unauthenticated")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger.Named("bitget"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		maxRetries: maxRetries,
		retryBase:  time.Second,
	}
}

// GetTradeFills fetches one page of the user's trade fills.
// Both a bare array and a {"data": [...]} envelope are accepted.
func (c *RestClient) GetTradeFills(ctx context.Context, q FillsQuery) ([]fills.RawFill, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	req := c.client.R().
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetHeader("Accept", "application/json")
	if q.IDLessThan != "" {
		req.SetQueryParam("idLessThan", q.IDLessThan)
	}
	if q.Symbol != "" {
		req.SetQueryParam("symbol", q.Symbol)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, tradeFillsPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade fills: %w", err)
	}

	page, err := decodeFills(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to decode trade fills: %w", err)
	}
	return page, nil
}

type fillsEnvelope struct {
	Code fills.LooseString `json:"code"`
	Msg  string            `json:"msg"`
	Data []fills.RawFill   `json:"data"`
}

func decodeFills(body []byte) ([]fills.RawFill, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	switch body[0] {
	case '[':
		var page []fills.RawFill
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		return page, nil
	case '{':
		var env fillsEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, err
		}
		switch env.Code {
		case "", "0", "00000", "200":
			return env.Data, nil
		default:
			return nil, fmt.Errorf("backend error %s: %s", env.Code, env.Msg)
		}
	default:
		return nil, errors.New("unexpected response body")
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var lastErr error
	req.SetContext(ctx)

	for i := 0; i < c.maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err := req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Network or other client-side errors
			lastErr = err
			shouldRetry = true
		} else {
			statusCode := resp.StatusCode()
			lastErr = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= http.StatusInternalServerError {
				shouldRetry = true
			}
		}

		if !shouldRetry {
			return nil, lastErr
		}
		if i == c.maxRetries-1 {
			break
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: base, 2*base, 4*base
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.retryBase
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(lastErr),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}
