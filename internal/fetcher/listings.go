package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/storage"
)

const listingsPath = "/listings"

// ListingsOptions parameterise the remote comparable store client.
type ListingsOptions struct {
	BaseURL   string
	APIToken  string
	Timeout   time.Duration
	UserAgent string
	RPS       float64
	Burst     int
	Retries   int
}

// Listings fetches comparable listings from a remote comparable store.
type Listings struct {
	opts    ListingsOptions
	logger  zerolog.Logger
	client  *resty.Client
	limiter *rate.Limiter
}

// NewListings constructs a rate limited listings client.
func NewListings(opts ListingsOptions, logger zerolog.Logger) *Listings {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "dealer-pricing/1.0"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		})
	if opts.APIToken != "" {
		client.SetAuthToken(opts.APIToken)
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Listings{
		opts:    opts,
		logger:  logger.With().Str("component", "listings_fetcher").Logger(),
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ListComparables queries the remote store for one make/model and year range.
func (l *Listings) ListComparables(ctx context.Context, q storage.ComparableQuery) ([]pricing.ComparableListing, error) {
	if strings.TrimSpace(q.Make) == "" || strings.TrimSpace(q.Model) == "" {
		return nil, errors.New("make and model are required")
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := map[string]string{
		"make":  q.Make,
		"model": q.Model,
	}
	if q.MinYear > 0 {
		params["year_from"] = strconv.Itoa(q.MinYear)
	}
	if q.MaxYear > 0 {
		params["year_to"] = strconv.Itoa(q.MaxYear)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}

	start := time.Now()
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(listingsPath)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, parseHTTPError(resp.StatusCode(), resp.Body())
	}

	var payload listingsResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	listings := make([]pricing.ComparableListing, 0, len(payload.Listings))
	skipped := 0
	for _, item := range payload.Listings {
		if !item.Price.IsPositive() {
			skipped++
			continue
		}
		listings = append(listings, item)
	}

	l.logger.Debug().
		Str("make", q.Make).
		Str("model", q.Model).
		Int("listings", len(listings)).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("fetched comparables")

	return listings, nil
}

type listingsResponse struct {
	Listings []pricing.ComparableListing `json:"listings"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("listings api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("listings api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("listings api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("listings api error (%d)", status)
}
