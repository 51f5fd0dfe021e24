// Package transport implements the wire-level HTTP and WebSocket clients
// that carry Hyperliquid's /info and /exchange requests and its subscription
// feed: a resty REST client plus a gorilla/websocket feed, both paced by a
// single shared 20 req/s token bucket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"hyperliquid-trader/internal/xerrors"
)

// HTTPConfig parameterizes the REST client. NewHTTPClient defaults a zero
// Timeout to 5s; it does not read RateLimitRPS, since pacing comes from the
// TokenBucket passed to it (hyperliquid.New builds that bucket, defaulting a
// zero RateLimitRPS to 20 req/s).
type HTTPConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimitRPS float64
}

// HTTPClient talks to Hyperliquid's /info (public) and /exchange (signed)
// endpoints. Every call waits on a shared token bucket before the request
// goes out — the same bucket instance is handed to the WS client, so HTTP
// calls and subscribe frames pace against one combined budget.
type HTTPClient struct {
	http    *resty.Client
	limiter *TokenBucket
	logger  *slog.Logger
}

// NewHTTPClient builds a REST client that retries (up to 3 times) on
// transport errors and 5xx responses. Hyperliquid
// authenticates trading actions via the signed action body itself, not
// request headers, so no auth header is attached here.
func NewHTTPClient(cfg HTTPConfig, limiter *TokenBucket, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &HTTPClient{http: httpClient, limiter: limiter, logger: logger}
}

// Info posts a read-only request to /info and unmarshals the response into
// out. reqBody is marshaled as-is; callers build the {type: "...", ...}
// envelope the specific request shape needs.
func (c *HTTPClient) Info(ctx context.Context, reqBody any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return xerrors.New(xerrors.KindTimeout, "info", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(out).
		Post("/info")
	if err != nil {
		return classifyTransportError("info", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return xerrors.New(xerrors.KindInvalidResponse, "info",
			fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return nil
}

// ExchangeRequest is the signed envelope posted to /exchange.
type ExchangeRequest struct {
	Action       any               `json:"action"`
	Nonce        int64             `json:"nonce"`
	Signature    ExchangeSignature `json:"signature"`
	VaultAddress string            `json:"vaultAddress,omitempty"`
}

// ExchangeSignature is the r/s/v triple, JSON-tagged to match Hyperliquid's
// wire shape exactly — lowercase field names, v as a plain integer.
type ExchangeSignature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Exchange posts a signed trading action to /exchange and unmarshals the raw
// JSON response body into out. Callers (internal/hyperliquid) are
// responsible for picking apart the dual resting/filled response shape —
// this layer only owns the transport contract.
func (c *HTTPClient) Exchange(ctx context.Context, req ExchangeRequest, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return xerrors.New(xerrors.KindTimeout, "exchange", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		Post("/exchange")
	if err != nil {
		return classifyTransportError("exchange", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return xerrors.New(xerrors.KindInvalidResponse, "exchange",
			fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return nil
}

// classifyTransportError maps a resty/net transport failure onto the
// taxonomy: a deadline exceeded is Timeout (the caller must reconcile rather
// than assume the action never executed), anything else is ConnectionLost.
func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return xerrors.New(xerrors.KindTimeout, op, err)
	}
	return xerrors.New(xerrors.KindConnectionLost, op, err)
}
