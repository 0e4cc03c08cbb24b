// Package processor 通过 HTTP 接入外部支付处理方的 provider.Adapter 实现。
//
// 处理方约定的接口：
//
//	POST {base}/payments         → {"transaction_id": "...", "status": "..."}
//	POST {base}/refunds          → {"refund_id": "...", "status": "..."}
//	GET  {base}/payments/{id}    → {"transaction_id": "...", "status": "..."}
//
// 错误响应体为 {"code": "...", "message": "..."}。429 与 5xx 标记为临时错误，
// 其余 4xx 标记为永久错误。
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// doer *fasthttp.Client 中发送请求所需的部分
type doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Adapter HTTP 处理方适配器
type Adapter struct {
	cfg     Config
	base    string
	client  doer
	limiter *rate.Limiter
	logger  clog.Logger
}

// errorBody 处理方的错误响应
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New 创建 HTTP 处理方适配器
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	client := &fasthttp.Client{
		Name:            "paygate",
		MaxConnsPerHost: cfg.MaxConns,
		ReadTimeout:     cfg.Timeout,
		WriteTimeout:    cfg.Timeout,
	}
	if o.dial != nil {
		client.Dial = o.dial
	}

	a := &Adapter{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: client,
		logger: o.logger.With(clog.String("provider", cfg.Name)),
	}
	if cfg.RateLimit > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return a, nil
}

// Name 处理方名称
func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Capabilities() provider.Capabilities {
	return a.cfg.Capabilities.Clone()
}

func (a *Adapter) ProcessPayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	var out provider.PaymentResponse
	if err := a.call(ctx, fasthttp.MethodPost, "/payments", req.IdempotencyKey, req.CorrelationID, req, &out); err != nil {
		return nil, err
	}
	if out.TransactionID == "" {
		return nil, provider.Permanent(fmt.Errorf("processor %s: response missing transaction_id", a.cfg.Name))
	}
	return &out, nil
}

func (a *Adapter) ProcessRefund(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	var out provider.RefundResponse
	if err := a.call(ctx, fasthttp.MethodPost, "/refunds", req.IdempotencyKey, req.CorrelationID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) PaymentStatus(ctx context.Context, transactionID string) (*provider.StatusResponse, error) {
	var out provider.StatusResponse
	path := "/payments/" + url.PathEscape(transactionID)
	if err := a.call(ctx, fasthttp.MethodGet, path, "", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) call(ctx context.Context, method, path, idemKey, correlationID string, body, out any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return provider.Temporary(fmt.Errorf("processor %s: rate_limit wait: %w", a.cfg.Name, err))
		}
	}

	deadline := time.Now().Add(a.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.base + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return provider.Permanent(xerrors.Wrapf(err, "processor %s: encode request", a.cfg.Name))
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(data)
	}

	start := time.Now()
	if err := a.client.DoDeadline(req, resp, deadline); err != nil {
		a.logger.WarnContext(ctx, "processor request failed",
			clog.String("path", path), clog.Duration("elapsed", time.Since(start)), clog.Error(err))
		return classifyTransport(a.cfg.Name, err)
	}

	status := resp.StatusCode()
	a.logger.DebugContext(ctx, "processor response",
		clog.String("path", path), clog.Int("status", status), clog.Duration("elapsed", time.Since(start)))

	if status >= 200 && status < 300 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return provider.Permanent(xerrors.Wrapf(err, "processor %s: decode response", a.cfg.Name))
		}
		return nil
	}
	return classifyStatus(a.cfg.Name, status, resp.Body())
}

// classifyTransport 网络层错误一律视为临时错误
func classifyTransport(name string, err error) error {
	switch {
	case xerrors.Is(err, fasthttp.ErrTimeout), xerrors.Is(err, fasthttp.ErrDialTimeout):
		return provider.Temporary(fmt.Errorf("processor %s: timeout: %w", name, err))
	default:
		return provider.Temporary(fmt.Errorf("processor %s: network error: %w", name, err))
	}
}

// classifyStatus 按 HTTP 状态码分类，错误消息保留处理方的 code
func classifyStatus(name string, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	detail := eb.Code
	if eb.Message != "" {
		if detail != "" {
			detail += ": "
		}
		detail += eb.Message
	}
	if detail == "" {
		detail = fasthttp.StatusMessage(status)
	}

	switch {
	case status == fasthttp.StatusTooManyRequests:
		return provider.Temporary(fmt.Errorf("processor %s: rate_limit: %s", name, detail))
	case status == fasthttp.StatusInternalServerError:
		return provider.Temporary(fmt.Errorf("processor %s: internal_server_error: %s", name, detail))
	case status >= 500:
		return provider.Temporary(fmt.Errorf("processor %s: service_unavailable (%d): %s", name, status, detail))
	case status == fasthttp.StatusNotFound:
		return provider.Permanent(xerrors.Wrapf(xerrors.ErrNotFound, "processor %s: %s", name, detail))
	default:
		return provider.Permanent(fmt.Errorf("processor %s: rejected (%d): %s", name, status, detail))
	}
}
