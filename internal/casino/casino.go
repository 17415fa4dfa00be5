package casino

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

// Outcome classifies a credit attempt. The matcher acts on the class, never
// on raw platform responses; all knowledge of platform wire formats and
// error texts stays inside this package.
type Outcome string

const (
	// OutcomeSuccess - the balance was credited.
	OutcomeSuccess Outcome = "success"
	// OutcomeDuplicate - the platform reports this transfer as already
	// credited. Treated as success by the matcher.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeStructural - the credit can never succeed as-is (unknown
	// account, currency mismatch). Retrying is pointless.
	OutcomeStructural Outcome = "structural"
	// OutcomeTransient - timeouts, 5xx, connection errors. Retryable.
	OutcomeTransient Outcome = "transient"
)

type CreditRequest struct {
	Platform  string
	AccountID string
	Amount    decimal.Decimal
	// Reference is a caller-generated id the platform can key its own
	// idempotency on.
	Reference string
}

type CreditResult struct {
	Outcome     Outcome
	ReasonCode  string
	Message     string
	OperationID string
}

// CreditClient performs the external balance credit.
type CreditClient interface {
	Credit(ctx context.Context, req CreditRequest) (*CreditResult, error)
}

type Config struct {
	// PlatformURLs maps platform name to cashdesk base URL.
	PlatformURLs map[string]string
	APIKey       string
	Timeout      time.Duration
	MaxConns     int
}

type Client struct {
	urls    map[string]string
	apiKey  string
	timeout time.Duration
	client  *fasthttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 64
	}
	return &Client{
		urls:    cfg.PlatformURLs,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

type depositRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type depositResponse struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operation_id,omitempty"`
	Message     string `json:"message,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func (c *Client) Credit(ctx context.Context, cr CreditRequest) (*CreditResult, error) {
	base, ok := c.urls[cr.Platform]
	if !ok || base == "" {
		return nil, fmt.Errorf("casino: no cashdesk URL configured for platform %q", cr.Platform)
	}

	body, err := json.Marshal(depositRequest{
		AccountID: cr.AccountID,
		Amount:    cr.Amount.StringFixed(2),
		Reference: cr.Reference,
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(base + "/cashdesk/deposit")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		logger.Warn("casino: credit call failed",
			"platform", cr.Platform, "reference", cr.Reference, "error", err)
		return &CreditResult{Outcome: OutcomeTransient, Message: err.Error()}, nil
	}

	return classify(resp.StatusCode(), resp.Body()), nil
}

// structuralCodes are platform error codes that no amount of retrying fixes.
var structuralCodes = map[string]bool{
	"account_not_found": true,
	"account_blocked":   true,
	"currency_mismatch": true,
	"invalid_account":   true,
	"amount_too_small":  true,
	"amount_too_large":  true,
}

func classify(status int, body []byte) *CreditResult {
	var dr depositResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		if status >= 500 {
			return &CreditResult{Outcome: OutcomeTransient, Message: fmt.Sprintf("status %d, unparseable body", status)}
		}
		return &CreditResult{Outcome: OutcomeStructural, ReasonCode: "bad_response", Message: fmt.Sprintf("status %d, unparseable body", status)}
	}

	switch {
	case dr.Success:
		return &CreditResult{Outcome: OutcomeSuccess, OperationID: dr.OperationID, Message: dr.Message}
	case isDuplicateMessage(dr.ErrorCode, dr.Message):
		return &CreditResult{Outcome: OutcomeDuplicate, OperationID: dr.OperationID, Message: dr.Message}
	case structuralCodes[dr.ErrorCode]:
		return &CreditResult{Outcome: OutcomeStructural, ReasonCode: dr.ErrorCode, Message: dr.Message}
	case status >= 500:
		return &CreditResult{Outcome: OutcomeTransient, Message: dr.Message}
	case status == fasthttp.StatusTooManyRequests:
		return &CreditResult{Outcome: OutcomeTransient, ReasonCode: "rate_limited", Message: dr.Message}
	default:
		// Unknown 4xx without a recognised code: treat as structural so we
		// do not hammer the platform with a request it keeps rejecting.
		return &CreditResult{Outcome: OutcomeStructural, ReasonCode: dr.ErrorCode, Message: dr.Message}
	}
}

func isDuplicateMessage(code, message string) bool {
	if code == "duplicate" || code == "already_processed" {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "already processed") ||
		strings.Contains(m, "duplicate") ||
		strings.Contains(m, "уже обработан")
}
