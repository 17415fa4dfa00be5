package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

// Notifier announces settled deposits. Implementations are fire-and-forget:
// a delivery failure must never affect settlement.
type Notifier interface {
	SendDeposit(ctx context.Context, amount decimal.Decimal, platform, accountID string)
}

type TelegramConfig struct {
	ApiURL  string
	ChatID  string
	Timeout time.Duration
}

type TelegramNotifier struct {
	cfg    TelegramConfig
	client *fasthttp.Client
}

func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &TelegramNotifier{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *TelegramNotifier) SendDeposit(ctx context.Context, amount decimal.Decimal, platform, accountID string) {
	text := fmt.Sprintf("Deposit settled: %s KGS to %s account %s",
		amount.StringFixed(2), platform, accountID)

	body, err := json.Marshal(sendMessageRequest{ChatID: n.cfg.ChatID, Text: text})
	if err != nil {
		logger.Warn("notify: marshal failed", "error", err)
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.cfg.ApiURL + "/sendMessage")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := n.client.DoTimeout(req, resp, n.cfg.Timeout); err != nil {
		logger.Warn("notify: telegram send failed", "error", err)
		return
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		logger.Warn("notify: telegram send rejected", "status", resp.StatusCode())
	}
}

// NopNotifier is used when notifications are disabled in config.
type NopNotifier struct{}

func (NopNotifier) SendDeposit(context.Context, decimal.Decimal, string, string) {}
