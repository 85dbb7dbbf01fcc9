package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/fenyong-next/internal/http/response"
	"github.com/fenyong-next/internal/queue"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"

	"github.com/gin-gonic/gin"
)

// InvoiceGenerateRequest 出账请求
type InvoiceGenerateRequest struct {
	StoreID     uint      `json:"store_id" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// BillingRunRequest 批量出账请求
type BillingRunRequest struct {
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// GenerateInvoice 为单个店铺出账
func (h *Handler) GenerateInvoice(c *gin.Context) {
	var req InvoiceGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	invoice, err := h.InvoiceService.GenerateInvoice(service.InvoiceGenerateInput{
		StoreID:     req.StoreID,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceInvalid):
			respondError(c, response.CodeBadRequest, "error.invoice_invalid", err)
		case errors.Is(err, service.ErrInvoiceClaimConflict):
			respondError(c, response.CodeConflict, "error.invoice_claim_conflict", err)
		default:
			respondError(c, response.CodeInternal, "error.invoice_generate_failed", err)
		}
		return
	}
	if invoice == nil {
		response.Success(c, gin.H{
			"generated": false,
			"reason":    "no_unbilled_transactions",
		})
		return
	}
	response.Success(c, invoice)
}

// RunBilling 批量出账：为账期内所有有未出账流水的店铺出账
// 队列可用时逐店铺投递异步任务，否则同步执行。
func (h *Handler) RunBilling(c *gin.Context) {
	var req BillingRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		respondError(c, response.CodeBadRequest, "error.invoice_invalid", nil)
		return
	}

	storeIDs, err := h.LedgerRepo.ListUnbilledStoreIDs(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		respondError(c, response.CodeInternal, "error.billing_run_failed", err)
		return
	}

	if h.QueueClient.Enabled() {
		enqueued := 0
		for _, storeID := range storeIDs {
			if err := h.QueueClient.EnqueueInvoiceGenerate(queue.InvoiceGeneratePayload{
				StoreID:     storeID,
				PeriodStart: req.PeriodStart,
				PeriodEnd:   req.PeriodEnd,
			}); err != nil {
				requestLog(c).Warnw("billing_run_enqueue_failed", "store_id", storeID, "error", err)
				continue
			}
			enqueued++
		}
		response.Success(c, gin.H{
			"mode":        "async",
			"store_count": len(storeIDs),
			"enqueued":    enqueued,
		})
		return
	}

	generated := 0
	for _, storeID := range storeIDs {
		invoice, err := h.InvoiceService.GenerateInvoice(service.InvoiceGenerateInput{
			StoreID:     storeID,
			PeriodStart: req.PeriodStart,
			PeriodEnd:   req.PeriodEnd,
		})
		if err != nil {
			requestLog(c).Warnw("billing_run_generate_failed", "store_id", storeID, "error", err)
			continue
		}
		if invoice != nil {
			generated++
		}
	}
	response.Success(c, gin.H{
		"mode":        "sync",
		"store_count": len(storeIDs),
		"generated":   generated,
	})
}

// IssueInvoice 开具账单
func (h *Handler) IssueInvoice(c *gin.Context) {
	h.transitionInvoice(c, func(id uint) (interface{}, error) {
		return h.InvoiceService.IssueInvoice(id)
	})
}

// MarkInvoicePaid 标记账单已支付
func (h *Handler) MarkInvoicePaid(c *gin.Context) {
	h.transitionInvoice(c, func(id uint) (interface{}, error) {
		return h.InvoiceService.MarkInvoicePaid(id)
	})
}

// VoidInvoice 作废账单
func (h *Handler) VoidInvoice(c *gin.Context) {
	h.transitionInvoice(c, func(id uint) (interface{}, error) {
		return h.InvoiceService.VoidInvoice(id)
	})
}

func (h *Handler) transitionInvoice(c *gin.Context, fn func(id uint) (interface{}, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	invoice, err := fn(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			respondError(c, response.CodeNotFound, "error.invoice_not_found", nil)
		case errors.Is(err, service.ErrInvoiceStateInvalid):
			respondError(c, response.CodeConflict, "error.invoice_state_invalid", err)
		default:
			respondError(c, response.CodeInternal, "error.invoice_update_failed", err)
		}
		return
	}
	response.Success(c, invoice)
}

// GetInvoice 获取账单详情（含明细）
func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	invoice, err := h.InvoiceService.GetInvoice(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			respondError(c, response.CodeNotFound, "error.invoice_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.invoice_fetch_failed", err)
		}
		return
	}
	response.Success(c, invoice)
}

// GetInvoices 分页查询账单
func (h *Handler) GetInvoices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	storeID, err := parseUintQuery(c, "store_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	invoices, total, err := h.InvoiceService.ListInvoices(repository.InvoiceListFilter{
		StoreID:  storeID,
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.invoice_fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, invoices, pagination)
}
