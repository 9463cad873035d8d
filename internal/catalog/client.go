package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable indicates the catalog could not supply a price for the product.
var ErrPriceUnavailable = errors.New("catalog: product price unavailable")

// PriceQuote is the catalog's answer for one product.
type PriceQuote struct {
	Price      decimal.Decimal
	CurrencyID string
}

// PriceSource retrieves the current catalog price for a product.
type PriceSource interface {
	CurrentPrice(ctx context.Context, productID string) (PriceQuote, error)
}

// Options parameterise the catalog client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches prices from the storefront catalog API.
type Client struct {
	opts   Options
	logger zerolog.Logger
	http   *resty.Client
}

// NewClient constructs a catalog price client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "pricewatch/1.0"
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
	if opts.APIKey != "" {
		http.SetHeader("Authorization", "Bearer "+opts.APIKey)
	}

	return &Client{
		opts:   opts,
		logger: logger.With().Str("component", "catalog_client").Logger(),
		http:   http,
	}
}

type priceResponse struct {
	ProductID  string `json:"product_id"`
	Price      string `json:"price"`
	CurrencyID string `json:"currency_id"`
}

// CurrentPrice fetches the live price for a product.
func (c *Client) CurrentPrice(ctx context.Context, productID string) (PriceQuote, error) {
	if productID == "" {
		return PriceQuote{}, errors.New("product id required")
	}
	if c.opts.BaseURL == "" {
		return PriceQuote{}, errors.New("catalog base url required")
	}

	var payload priceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("productId", productID).
		SetResult(&payload).
		Get("/products/{productId}/price")
	if err != nil {
		c.logger.Warn().Err(err).Str("product_id", productID).Msg("price request failed")
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return PriceQuote{}, ErrPriceUnavailable
	case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
		c.logger.Warn().Int("status", resp.StatusCode()).Str("product_id", productID).Msg("unexpected catalog response")
		return PriceQuote{}, fmt.Errorf("%w: status %d", ErrPriceUnavailable, resp.StatusCode())
	}

	price, convErr := decimal.NewFromString(payload.Price)
	if convErr != nil {
		return PriceQuote{}, fmt.Errorf("parse catalog price %q: %w", payload.Price, convErr)
	}
	if price.Sign() <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: non-positive price %s", ErrPriceUnavailable, price)
	}

	return PriceQuote{Price: price, CurrencyID: payload.CurrencyID}, nil
}

var _ PriceSource = (*Client)(nil)
