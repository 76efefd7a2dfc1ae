package geocode

import (
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

	"github.com/angelmondragon/kiosko-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://nominatim.openstreetmap.org"
	defaultUserAgent            = "kiosko-backend/1.0"
	responseBodyReadLimit int64 = 1024
)

var errUserAgentRequired = errors.New("geocode user agent is required")

// Point is a geographic coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Client resolves free-text addresses into coordinates through a
// Nominatim-style search API. The provider requires an identifying
// User-Agent on every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured search base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a geocoding client from configuration.
func NewClient(cfg config.GeocodeConfig, opts ...Option) (*Client, error) {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if userAgent == "" {
		return nil, errUserAgentRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		userAgent:  userAgent,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// Geocode resolves a free-text address to coordinates. An empty result set
// from the provider maps to CodeNotFound so callers can show "could not
// locate address" instead of failing the whole flow.
func (c *Client) Geocode(ctx context.Context, address string) (*Point, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geocode client not configured")
	}
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	query := url.Values{}
	query.Set("q", trimmed)
	query.Set("format", "json")
	query.Set("limit", "1")

	searchURL := fmt.Sprintf("%s/search?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"geocode request failed")
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geocode response")
	}
	if len(results) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "could not locate address").
			WithDetails(map[string]any{"address": trimmed})
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse geocode latitude")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse geocode longitude")
	}

	return &Point{Lat: lat, Lon: lon}, nil
}
