package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/paykg/deposit-gateway/internal/model"
	xhttp "github.com/paykg/deposit-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type RequestService interface {
	Create(ctx context.Context, p model.RequestCreateRequest) (*model.Request, error)
	Get(ctx context.Context, id int64) (*model.Request, error)
	List(ctx context.Context, f model.RequestFilter) ([]*model.Request, int64, error)
	ListPayments(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error)
}

type RequestHandler struct {
	svc RequestService
}

func RegisterRequestRoutes(e *router.Group, h *RequestHandler) {
	e.POST("/requests", h.CreateRequest)
	e.GET("/requests", h.ListRequests)
	e.GET("/requests/{id}", h.GetRequest)
	e.GET("/payments", h.ListPayments)
}

func NewRequestHandler(svc RequestService) *RequestHandler {
	return &RequestHandler{
		svc: svc,
	}
}

type createRequestRequest struct {
	UserID      int64           `json:"user_id"`
	Platform    string          `json:"platform"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	RequestType string          `json:"request_type"`
	HasReceipt  bool            `json:"has_receipt"`
	ReceiptNote string          `json:"receipt_note"`
}

type listRequestsResponse struct {
	Items []*model.Request `json:"items"`
	Total int64            `json:"total"`
}

type listPaymentsResponse struct {
	Items []*model.Payment `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *RequestHandler) CreateRequest(ctx *xhttp.RequestCtx) {
	var req createRequestRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.RequestCreateRequest{
		UserID:      req.UserID,
		Platform:    req.Platform,
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		RequestType: model.RequestType(req.RequestType),
		HasReceipt:  req.HasReceipt,
		ReceiptNote: req.ReceiptNote,
	}
	r, err := h.svc.Create(ctx, p)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, r)
}

func (h *RequestHandler) GetRequest(ctx *xhttp.RequestCtx) {
	idStr, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(ctx, 400, "invalid id")
		return
	}
	r, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, 404, err.Error())
		return
	}
	writeJSON(ctx, 200, r)
}

func (h *RequestHandler) ListRequests(ctx *xhttp.RequestCtx) {
	var f model.RequestFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.RequestStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "platform"); v != "" {
		f.Platform = &v
	}
	if v := query(ctx, "type"); v != "" {
		rt := model.RequestType(v)
		f.Type = &rt
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listRequestsResponse{Items: items, Total: total})
}

func (h *RequestHandler) ListPayments(ctx *xhttp.RequestCtx) {
	var f model.PaymentFilter

	if v := query(ctx, "bank"); v != "" {
		f.Bank = &v
	}
	if v := query(ctx, "processed"); v != "" {
		if b, e := strconv.ParseBool(v); e == nil {
			f.IsProcessed = &b
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListPayments(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listPaymentsResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
