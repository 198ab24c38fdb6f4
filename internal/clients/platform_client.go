package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"merchant-panel-service/internal/models"
)

// ErrNotFound is returned when the platform API answers 404
var ErrNotFound = errors.New("resource not found on platform")

// APIError carries a non-2xx platform response
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("failed to %s: %d - %s", e.Operation, e.StatusCode, e.Body)
}

// Credentials identify the merchant a platform call is made for. The
// Authorization value is forwarded as received.
type Credentials struct {
	Authorization string
	MerchantID    string
}

// CouponPage is one page of raw coupons
type CouponPage struct {
	Coupons    []*models.RawCoupon
	Pagination *models.PaginationMeta
	// Skipped counts list entries that could not be decoded and were dropped
	Skipped int
}

// PlatformClient is the subset of the platform REST API the merchant panel uses
type PlatformClient interface {
	ListCoupons(ctx context.Context, creds Credentials, query models.CouponListQuery) (*CouponPage, error)
	GetCoupon(ctx context.Context, creds Credentials, couponID int64) (*models.RawCoupon, error)
	UpdateCoupon(ctx context.Context, creds Credentials, couponID int64, body json.RawMessage) error
	UpdateCouponStatus(ctx context.Context, creds Credentials, couponID int64, status models.CouponStatus) error
	GetProductInventoryByLocation(ctx context.Context, creds Credentials, productID int64, variantID *int64) ([]byte, error)
	UpdateLocationInventory(ctx context.Context, creds Credentials, update models.LocationInventoryUpdate) error
}

type platformClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retrier     *Retrier
}

// PlatformClientOptions configures NewPlatformClient
type PlatformClientOptions struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
	Retry   *RetryConfig
}

// NewPlatformClient creates a platform API client
func NewPlatformClient(opts PlatformClientOptions) PlatformClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &platformClient{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(limit, burst),
		retrier:     NewRetrier(opts.Retry),
	}
}

// ListCoupons fetches a page of coupons. The platform answers either a bare
// array or a {data, pagination} envelope.
func (c *platformClient) ListCoupons(ctx context.Context, creds Credentials, query models.CouponListQuery) (*CouponPage, error) {
	params := url.Values{}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Status != "" {
		params.Set("status", query.Status)
	}
	if query.Search != "" {
		params.Set("search", query.Search)
	}

	body, err := c.get(ctx, creds, "list coupons", "/coupons", params)
	if err != nil {
		return nil, err
	}

	page := &CouponPage{}
	trimmed := bytes.TrimSpace(body)
	var items []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode coupons: %w", err)
		}
	} else {
		var envelope struct {
			Data       []json.RawMessage      `json:"data"`
			Pagination *models.PaginationMeta `json:"pagination"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode coupons: %w", err)
		}
		items = envelope.Data
		page.Pagination = envelope.Pagination
	}

	page.Coupons = make([]*models.RawCoupon, 0, len(items))
	for _, item := range items {
		var coupon *models.RawCoupon
		if err := json.Unmarshal(item, &coupon); err != nil {
			page.Skipped++
			continue
		}
		page.Coupons = append(page.Coupons, coupon)
	}
	return page, nil
}

// GetCoupon fetches a coupon detail, bare or wrapped in {data}
func (c *platformClient) GetCoupon(ctx context.Context, creds Credentials, couponID int64) (*models.RawCoupon, error) {
	body, err := c.get(ctx, creds, "get coupon", fmt.Sprintf("/coupons/%d", couponID), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *models.RawCoupon `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var coupon models.RawCoupon
	if err := json.Unmarshal(body, &coupon); err != nil {
		return nil, fmt.Errorf("failed to decode coupon: %w", err)
	}
	return &coupon, nil
}

// UpdateCoupon forwards the edit form body unchanged
func (c *platformClient) UpdateCoupon(ctx context.Context, creds Credentials, couponID int64, body json.RawMessage) error {
	_, err := c.send(ctx, creds, "update coupon", http.MethodPatch, fmt.Sprintf("/coupons/%d", couponID), []byte(body))
	return err
}

func (c *platformClient) UpdateCouponStatus(ctx context.Context, creds Credentials, couponID int64, status models.CouponStatus) error {
	payload, err := json.Marshal(map[string]models.CouponStatus{"status": status})
	if err != nil {
		return err
	}
	_, err = c.send(ctx, creds, "update coupon status", http.MethodPatch, fmt.Sprintf("/coupons/%d/status", couponID), payload)
	return err
}

// GetProductInventoryByLocation returns the raw response body; its shape is
// resolved by the reconciler
func (c *platformClient) GetProductInventoryByLocation(ctx context.Context, creds Credentials, productID int64, variantID *int64) ([]byte, error) {
	params := url.Values{}
	if variantID != nil {
		params.Set("variantId", strconv.FormatInt(*variantID, 10))
	}
	return c.get(ctx, creds, "get product inventory by location", fmt.Sprintf("/products/%d/inventory/locations", productID), params)
}

// UpdateLocationInventory sets the available quantity of one location. Only
// the status of the response is used.
func (c *platformClient) UpdateLocationInventory(ctx context.Context, creds Credentials, update models.LocationInventoryUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, creds, "update location inventory", http.MethodPatch, "/inventory/locations", payload)
	return err
}

func (c *platformClient) get(ctx context.Context, creds Credentials, operation, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.retrier.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, creds)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer resp.Body.Close()

	return readResponse(resp, operation)
}

func (c *platformClient) send(ctx context.Context, creds Credentials, operation, method, path string, payload []byte) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer resp.Body.Close()

	return readResponse(resp, operation)
}

func (c *platformClient) setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Internal-Service", "merchant-panel-service")
	if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}
	if creds.MerchantID != "" {
		req.Header.Set("X-Merchant-ID", creds.MerchantID)
	}
}

func readResponse(resp *http.Response, operation string) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("failed to %s: %w", operation, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
