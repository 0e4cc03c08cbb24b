package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/orchestrator"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

const correlationKey = "correlation_id"

type handler struct {
	svc  Service
	opts options
}

// correlation 读取或生成关联 ID，写入响应头与请求上下文
func (h *handler) correlation(c *gin.Context) {
	id := c.GetHeader(HeaderCorrelationID)
	if id == "" {
		id = h.opts.ids.Next()
	}
	c.Set(correlationKey, id)
	c.Header(HeaderCorrelationID, id)
	c.Request = c.Request.WithContext(clog.WithCorrelationID(c.Request.Context(), id))
	c.Next()
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) createPayment(c *gin.Context) {
	var body paymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.svc.ProcessPayment(c.Request.Context(), provider.PaymentRequest{
		Amount:         body.Amount,
		Currency:       body.Currency,
		Country:        body.Country,
		PaymentMethod:  body.PaymentMethod,
		TenantID:       body.TenantID,
		CorrelationID:  c.GetString(correlationKey),
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
		Metadata:       body.Metadata,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) createRefund(c *gin.Context) {
	var body refundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.svc.ProcessRefund(c.Request.Context(), provider.RefundRequest{
		Provider:       body.Provider,
		TransactionID:  body.TransactionID,
		Amount:         body.Amount,
		Currency:       body.Currency,
		Reason:         body.Reason,
		TenantID:       body.TenantID,
		CorrelationID:  c.GetString(correlationKey),
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) paymentStatus(c *gin.Context) {
	res, err := h.svc.PaymentStatus(c.Request.Context(), c.Param("provider"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) providerHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.ProviderHealth()})
}

func (h *handler) orchestration(c *gin.Context) {
	if h.opts.audit == nil {
		c.JSON(http.StatusNotImplemented, errorBody{Kind: "unsupported", Message: "audit reader not configured"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	log, err := h.opts.audit.Orchestration(ctx, id)
	if xerrors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody{
			Kind:          string(orchestrator.KindNotFound),
			Message:       "orchestration " + id + " not found",
			CorrelationID: c.GetString(correlationKey),
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	attempts, err := h.opts.audit.Attempts(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orchestration": log, "attempts": attempts})
}

func (h *handler) badRequest(c *gin.Context, err error) {
	h.opts.logger.InfoContext(c.Request.Context(), "malformed request body", clog.Error(err))
	c.Set(metrics.ContextKeyErrorKind, string(orchestrator.KindValidation))
	c.JSON(http.StatusBadRequest, errorBody{
		Kind:          string(orchestrator.KindValidation),
		Message:       "malformed request body",
		CorrelationID: c.GetString(correlationKey),
	})
}

// fail 将编排错误映射为 HTTP 响应，非编排错误不向调用方暴露细节
func (h *handler) fail(c *gin.Context, err error) {
	kind := orchestrator.KindOf(err)
	body := errorBody{
		Kind:          string(kind),
		Message:       "internal error",
		CorrelationID: c.GetString(correlationKey),
	}
	var oe *orchestrator.Error
	if xerrors.As(err, &oe) {
		body.Message = oe.Message
	} else {
		h.opts.logger.ErrorContext(c.Request.Context(), "request failed", clog.Error(err))
	}
	c.Set(metrics.ContextKeyErrorKind, string(kind))
	c.JSON(kind.HTTPStatus(), body)
}
