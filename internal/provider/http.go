package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"homewatch/internal/config"
	apperrors "homewatch/internal/errors"
	"homewatch/internal/models"
	"homewatch/pkg/utils"
)

// HTTPProvider fetches listing snapshots from a JSON listing API.
// All requests pass through a shared token-bucket limiter and a bounded
// retry loop, since the listing API is the most rate-sensitive downstream.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *utils.RateLimiter
	retry   utils.RetryConfig
}

// NewHTTPProvider creates a provider client from configuration.
func NewHTTPProvider(cfg config.ProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		retry.InitialDelay = cfg.RetryBackoff
	}
	retry.Retryable = isRetryable

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: utils.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		retry:   retry,
	}
}

// listingPayload is the wire format of one listing in the API response.
type listingPayload struct {
	ID         string    `json:"id"`
	AreaID     string    `json:"area_id"`
	Price      int64     `json:"price"`
	Address    string    `json:"address"`
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
}

type listingsResponse struct {
	Listings []listingPayload `json:"listings"`
}

// FetchSnapshots retrieves the current listings for one target area.
func (p *HTTPProvider) FetchSnapshots(ctx context.Context, area models.TargetArea) ([]models.ListingSnapshot, error) {
	if p.baseURL == "" {
		return nil, apperrors.NewProviderError(area.ID, "fetch", 0, fmt.Errorf("provider base URL not configured"))
	}

	snapshots, err := utils.RetryWithResult(ctx, p.retry, func() ([]models.ListingSnapshot, error) {
		return p.fetchOnce(ctx, area)
	})
	if err != nil {
		if pe, ok := err.(*apperrors.ProviderError); ok {
			return nil, pe
		}
		return nil, apperrors.NewProviderError(area.ID, "fetch", 0, err)
	}
	return snapshots, nil
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, area models.TargetArea) ([]models.ListingSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("area", area.ID)
	if area.Boundary != "" {
		q.Set("boundary", area.Boundary)
	}
	endpoint := fmt.Sprintf("%s/listings?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewProviderError(area.ID, "fetch", 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError(area.ID, "fetch", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.NewProviderError(area.ID, "fetch", resp.StatusCode, apperrors.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderError(area.ID, "fetch", resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload listingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewProviderError(area.ID, "decode", 0, err)
	}

	now := time.Now().UTC()
	snapshots := make([]models.ListingSnapshot, 0, len(payload.Listings))
	for _, l := range payload.Listings {
		observed := l.ObservedAt
		if observed.IsZero() {
			observed = now
		}
		areaID := l.AreaID
		if areaID == "" {
			areaID = area.ID
		}
		snapshots = append(snapshots, models.ListingSnapshot{
			ListingID:  l.ID,
			AreaID:     areaID,
			Price:      l.Price,
			Address:    l.Address,
			ListingURL: l.URL,
			ObservedAt: observed,
		})
	}

	return snapshots, nil
}

// isRetryable reports whether a fetch error is worth another attempt.
// Client-side errors (bad request, auth) will not heal on retry.
func isRetryable(err error) bool {
	var pe *apperrors.ProviderError
	if apperrors.As(err, &pe) {
		if pe.StatusCode >= 400 && pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}
