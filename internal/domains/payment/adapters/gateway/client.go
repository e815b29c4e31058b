// Package gateway implements the payment gateway port over HTTP with a
// circuit breaker, a bulkhead, and bounded timeouts on every call. The
// status-query path additionally retries with exponential backoff.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/commercekit/settlement/internal/domains/payment/domain"
	"github.com/commercekit/settlement/internal/domains/payment/ports"
)

var _ ports.Gateway = (*Client)(nil)

// errBulkheadFull signals that all concurrent gateway slots are taken.
var errBulkheadFull = errors.New("payment gateway bulkhead saturated")

// The gateway requires order identifiers of at least six characters.
const orderIDDigits = 6

// Config tunes the client's timeouts and resilience thresholds.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// MaxConcurrent caps in-flight gateway calls; excess submissions are
	// rejected as transient instead of queueing.
	MaxConcurrent int64

	// Breaker settings. The breaker trips after BreakerMinRequests calls
	// with a failure ratio at or above BreakerFailureRatio, stays open for
	// BreakerOpenFor, then admits BreakerProbeRequests half-open probes.
	BreakerMinRequests   uint32
	BreakerFailureRatio  float64
	BreakerOpenFor       time.Duration
	BreakerProbeRequests uint32

	// Status-query retry settings. Submissions are never retried.
	QueryMaxRetries    uint64
	QueryRetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 1 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 3 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 16
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 10
	}
	if c.BreakerFailureRatio <= 0 {
		c.BreakerFailureRatio = 0.5
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 10 * time.Second
	}
	if c.BreakerProbeRequests == 0 {
		c.BreakerProbeRequests = 3
	}
	if c.QueryMaxRetries == 0 {
		c.QueryMaxRetries = 3
	}
	if c.QueryRetryInterval <= 0 {
		c.QueryRetryInterval = 200 * time.Millisecond
	}
	return c
}

// Client talks to the payment gateway simulator.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*envelope]
	slots   *semaphore.Weighted
	logger  *slog.Logger
}

// Option configures optional client collaborators.
type Option func(*Client)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// NewClient creates a gateway client for the given base URL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	cfg = cfg.withDefaults()

	client := &Client{
		cfg:    cfg,
		slots:  semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: slog.Default(),
	}
	client.http = &http.Client{
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			MaxIdleConnsPerHost: int(cfg.MaxConcurrent),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	client.breaker = gobreaker.NewCircuitBreaker[*envelope](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.BreakerProbeRequests,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinRequests && ratio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.logger.Warn("payment gateway breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return client, nil
}

// Submit performs a single charge attempt. Transport faults and 5xx count
// against the breaker; a well-formed decline does not, because the gateway
// itself answered. When the breaker is open no network I/O happens at all.
func (c *Client) Submit(ctx context.Context, req ports.SubmitRequest) domain.AttemptResult {
	if !c.slots.TryAcquire(1) {
		return domain.TransientFailure{Cause: errBulkheadFull}
	}
	defer c.slots.Release(1)

	env, err := c.breaker.Execute(func() (*envelope, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.CircuitOpen{}
		}
		return domain.TransientFailure{Cause: err, Timeout: isTimeout(err)}
	}
	if env.Meta.Result != resultSuccess {
		if domain.IsBusinessFailure(env.Meta.ErrorCode) {
			return domain.BusinessFailure{Code: env.Meta.ErrorCode, Message: env.Meta.Message}
		}
		return domain.TransientFailure{
			Cause: fmt.Errorf("gateway declined externally: %s (%s)", env.Meta.ErrorCode, env.Meta.Message),
		}
	}
	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return domain.TransientFailure{Cause: fmt.Errorf("decode submit response: %w", err)}
	}
	return domain.Success{TransactionKey: data.TransactionKey}
}

// TransactionsByOrder queries the gateway's transactions for one order,
// retrying transient faults with exponential backoff. Open-breaker and
// definitive FAIL answers abort the retry loop immediately.
func (c *Client) TransactionsByOrder(ctx context.Context, ownerRef string, orderID int64) ([]domain.TransactionRecord, error) {
	operation := func() ([]domain.TransactionRecord, error) {
		if !c.slots.TryAcquire(1) {
			return nil, errBulkheadFull
		}
		defer c.slots.Release(1)

		env, err := c.breaker.Execute(func() (*envelope, error) {
			return c.get(ctx, ownerRef, orderID)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if env.Meta.Result != resultSuccess {
			return nil, backoff.Permanent(fmt.Errorf("gateway rejected status query: %s (%s)", env.Meta.ErrorCode, env.Meta.Message))
		}
		var data orderData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode status response: %w", err))
		}
		records := make([]domain.TransactionRecord, 0, len(data.Transactions))
		for _, tx := range data.Transactions {
			records = append(records, domain.TransactionRecord{
				TransactionKey: tx.TransactionKey,
				Status:         domain.TxStatus(tx.Status),
				Reason:         tx.Reason,
			})
		}
		return records, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.QueryRetryInterval
	records, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.QueryMaxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("query transactions for order %d: %w", orderID, err)
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, req ports.SubmitRequest) (*envelope, error) {
	payload := submitPayload{
		OrderID:     FormatOrderID(req.OrderID),
		CardType:    string(req.CardType),
		CardNo:      req.CardNo,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode submit payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/payments", req.OwnerRef, bytes.NewReader(body))
}

func (c *Client) get(ctx context.Context, ownerRef string, orderID int64) (*envelope, error) {
	endpoint := c.cfg.BaseURL + "/api/v1/payments?orderId=" + url.QueryEscape(FormatOrderID(orderID))
	return c.do(ctx, http.MethodGet, endpoint, ownerRef, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint, ownerRef string, body io.Reader) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("X-USER-ID", ownerRef)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode gateway response (%s): %w", resp.Status, err)
	}
	if env.Meta.Result == "" {
		return nil, fmt.Errorf("gateway response missing meta (%s)", resp.Status)
	}
	return &env, nil
}

// FormatOrderID renders the numeric order id in the zero-padded form the
// gateway requires.
func FormatOrderID(orderID int64) string {
	return fmt.Sprintf("%0*d", orderIDDigits, orderID)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
