package public

import (
	"net/http"
	"time"

	handlershared "github.com/fenyong-next/internal/http/handlers/shared"
	"github.com/fenyong-next/internal/http/response"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/queue"
	"github.com/fenyong-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SettlementRequest 结算事件接入请求
type SettlementRequest struct {
	EscrowRef       string       `json:"escrow_ref" binding:"required"`
	StoreID         uint         `json:"store_id" binding:"required"`
	CategoryID      *uint        `json:"category_id"`
	TransactionType string       `json:"transaction_type" binding:"required"`
	GrossAmount     models.Money `json:"gross_amount"`
	OccurredAt      *time.Time   `json:"occurred_at"`
	Async           bool         `json:"async"`
}

// RecordSettlement 结算事件入账
// async=true 且队列可用时仅做基础校验后投递异步任务返回 202，否则同步入账。
// 同一 escrow_ref 重复提交幂等返回首次入账的流水。
func (h *Handler) RecordSettlement(c *gin.Context) {
	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueSettlementRecord(queue.SettlementRecordPayload{
			EscrowRef:       req.EscrowRef,
			StoreID:         req.StoreID,
			CategoryID:      req.CategoryID,
			TransactionType: req.TransactionType,
			GrossAmount:     req.GrossAmount.String(),
			OccurredAt:      req.OccurredAt,
		}); err != nil {
			respondError(c, response.CodeInternal, "error.settlement_enqueue_failed", err)
			return
		}
		c.JSON(http.StatusAccepted, response.Response{
			StatusCode: response.CodeOK,
			Msg:        "accepted",
			Data: gin.H{
				"escrow_ref": req.EscrowRef,
				"queued":     true,
			},
		})
		return
	}

	txn, created, err := h.LedgerService.RecordSettlement(service.SettlementInput{
		EscrowRef:       req.EscrowRef,
		StoreID:         req.StoreID,
		CategoryID:      req.CategoryID,
		TransactionType: req.TransactionType,
		GrossAmount:     req.GrossAmount,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	if !created {
		handlershared.RequestLog(c).Debugw("settlement_duplicate_submission",
			"escrow_ref", req.EscrowRef,
			"transaction_id", txn.ID,
		)
	}
	response.Success(c, gin.H{
		"transaction": txn,
		"created":     created,
	})
}
