package admin

import (
	"errors"
	"strconv"

	"github.com/fenyong-next/internal/http/response"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetTransactions 分页查询佣金流水
func (h *Handler) GetTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	storeID, err := parseUintQuery(c, "store_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	invoiceID, err := parseUintQuery(c, "invoice_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	unbilled := false
	if raw := c.Query("unbilled"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		unbilled = parsed
	}

	txns, total, err := h.LedgerService.ListTransactions(repository.LedgerListFilter{
		StoreID:         storeID,
		InvoiceID:       invoiceID,
		TransactionType: c.Query("transaction_type"),
		Unbilled:        unbilled,
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.transaction_fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, txns, pagination)
}

// GetTransaction 获取佣金流水详情
func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	txn, err := h.LedgerService.GetTransaction(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			respondError(c, response.CodeNotFound, "error.transaction_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.transaction_fetch_failed", err)
		}
		return
	}
	response.Success(c, txn)
}

// GetStoreCommissionSummary 店铺佣金合计（对账用）
func (h *Handler) GetStoreCommissionSummary(c *gin.Context) {
	storeID, err := parseUintQuery(c, "store_id")
	if err != nil || storeID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	sum, err := h.LedgerService.SumCommissionByStore(storeID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.transaction_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{
		"store_id":         storeID,
		"commission_total": sum,
	})
}
