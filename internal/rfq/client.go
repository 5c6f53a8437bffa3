package rfq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/internal/httpclient"
	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/internal/rate"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
	"github.com/Checker-Finance/rfq-checker/pkg/utils"
)

const (
	opAuthenticate = "authenticate"
	opCreateQuote  = "create_quote"
	opExecuteQuote = "execute_quote"
	opListOrders   = "list_orders"

	quotesPath = "/api/v1/quotes"
	ordersPath = "/api/v1/orders"

	// IdempotencyHeader carries the caller's idempotency key on execution requests.
	IdempotencyHeader = "Idempotency-Key"
)

// Client performs single-shot typed calls against the RFQ API. It holds no
// session state: the bearer token is passed to every call.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	cfg    ClientConfig
}

// NewClient constructs a client for one credential set. rateMgr may be nil.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, cfg ClientConfig, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		logger: logger,
		exec:   httpclient.New(logger, rateMgr, &http.Client{Timeout: timeout}, "rfq"),
		cfg:    cfg,
	}
}

// Authenticate exchanges the configured client credentials for a bearer token.
// POST {token_url} (application/x-www-form-urlencoded)
func (c *Client) Authenticate(ctx context.Context) (model.AuthToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(ctx, req, opAuthenticate)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if !resp.OK() {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return "", &AuthError{Err: &SchemaError{Operation: opAuthenticate, Field: "body", Reason: err.Error()}}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Err: &SchemaError{Operation: opAuthenticate, Field: "access_token", Reason: "missing"}}
	}

	c.logger.Info("rfq.auth.token_issued",
		zap.String("client_id", utils.MaskSecret(c.cfg.ClientID)),
		zap.Int64("expires_in_sec", tok.ExpiresIn))
	return model.AuthToken(tok.AccessToken), nil
}

// CreateQuote requests a new quote.
// POST /api/v1/quotes
func (c *Client) CreateQuote(ctx context.Context, token model.AuthToken, r model.QuoteRequest) (*model.Quote, error) {
	var raw quoteResponse
	if err := c.doJSON(ctx, token, http.MethodPost, quotesPath, opCreateQuote, toQuoteRequest(r), nil, &raw); err != nil {
		return nil, err
	}
	quote, err := fromQuote(opCreateQuote, &raw)
	if err != nil {
		return nil, err
	}

	c.logger.Info("rfq.quote.created",
		zap.String("quote_id", quote.ID),
		zap.String("pair", quote.Pair),
		zap.String("side", string(quote.Side)),
		zap.String("status", string(quote.Status)),
		zap.Duration("validity", quote.Validity()))
	return quote, nil
}

// ExecuteQuote converts a quote into an order. idempotencyKey is sent as a
// header when non-empty.
// POST /api/v1/orders
func (c *Client) ExecuteQuote(ctx context.Context, token model.AuthToken, quoteID, idempotencyKey string) (*model.Order, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{IdempotencyHeader: []string{idempotencyKey}}
	}

	var raw orderResponse
	if err := c.doJSON(ctx, token, http.MethodPost, ordersPath, opExecuteQuote, executeRequest{QuoteID: quoteID}, headers, &raw); err != nil {
		return nil, err
	}
	order, err := fromOrder(opExecuteQuote, &raw)
	if err != nil {
		return nil, err
	}

	c.logger.Info("rfq.quote.executed",
		zap.String("quote_id", quoteID),
		zap.String("order_id", order.ID),
		zap.String("status", order.Status))
	return order, nil
}

// ListOrders returns the account's orders.
// GET /api/v1/orders
func (c *Client) ListOrders(ctx context.Context, token model.AuthToken) ([]model.Order, error) {
	var raw listOrdersResponse
	if err := c.doJSON(ctx, token, http.MethodGet, ordersPath, opListOrders, nil, nil, &raw); err != nil {
		return nil, err
	}
	if raw.Orders == nil {
		return nil, &SchemaError{Operation: opListOrders, Field: "orders", Reason: "missing"}
	}

	orders := make([]model.Order, 0, len(*raw.Orders))
	for i := range *raw.Orders {
		o, err := fromOrder(opListOrders, &(*raw.Orders)[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// doJSON sends an authenticated JSON request and decodes a 2xx body into out.
func (c *Client) doJSON(
	ctx context.Context,
	token model.AuthToken,
	method, path, op string,
	body any,
	headers http.Header,
	out any,
) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rfq %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("rfq %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.send(ctx, req, op)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &ServiceError{Operation: op, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		c.logger.Warn("rfq.decode_failed",
			zap.String("operation", op),
			zap.String("body", truncate(string(resp.Body))),
			zap.Error(err))
		return &SchemaError{Operation: op, Field: "body", Reason: err.Error()}
	}
	return nil
}

// send executes req once, recording metrics. Transport failures become *TransportError.
func (c *Client) send(ctx context.Context, req *http.Request, op string) (*httpclient.Response, error) {
	start := time.Now()
	resp, err := c.exec.Do(ctx, req, c.cfg.ClientID)
	metrics.ObserveDuration(metrics.RFQRequestDuration, start, op, req.Method)
	if err != nil {
		metrics.IncRFQRequest(op, req.Method, "transport_error")
		return nil, &TransportError{Operation: op, Err: err}
	}
	metrics.IncRFQRequest(op, req.Method, strconv.Itoa(resp.StatusCode))
	return resp, nil
}
