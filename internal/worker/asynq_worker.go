package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/provider"
	"github.com/fenyong-next/internal/queue"
	"github.com/fenyong-next/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSettlementRecord, c.handleSettlementRecord)
	mux.HandleFunc(queue.TaskInvoiceGenerate, c.handleInvoiceGenerate)
}

// handleSettlementRecord 消费结算入账任务
// 载荷非法或重复提交直接吞掉，规则判定歧义与数据库错误返回 error 交给 asynq 重试。
func (c *Consumer) handleSettlementRecord(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_record_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementRecordPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// 坏 JSON 重试也不会变好，记日志后吞掉
		logger.Warnw("worker_settlement_record_unmarshal_failed", "error", err)
		return nil
	}
	gross, err := decimal.NewFromString(payload.GrossAmount)
	if err != nil {
		logger.Warnw("worker_settlement_record_skip_bad_amount",
			"escrow_ref", payload.EscrowRef,
			"gross_amount", payload.GrossAmount,
			"error", err,
		)
		return nil
	}
	if c.LedgerService == nil {
		logger.Warnw("worker_settlement_record_skip_ledger_service_nil", "escrow_ref", payload.EscrowRef)
		return nil
	}

	txn, created, err := c.LedgerService.RecordSettlement(service.SettlementInput{
		EscrowRef:       payload.EscrowRef,
		StoreID:         payload.StoreID,
		CategoryID:      payload.CategoryID,
		TransactionType: payload.TransactionType,
		GrossAmount:     models.NewMoneyFromDecimal(gross),
		OccurredAt:      payload.OccurredAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionInvalid):
			logger.Debugw("worker_settlement_record_skip_invalid_payload",
				"escrow_ref", payload.EscrowRef,
				"error", err,
			)
			return nil
		case errors.Is(err, service.ErrNoApplicableRule):
			logger.Warnw("worker_settlement_record_no_rule",
				"escrow_ref", payload.EscrowRef,
				"store_id", payload.StoreID,
			)
			return err
		default:
			logger.Warnw("worker_settlement_record_failed",
				"escrow_ref", payload.EscrowRef,
				"error", err,
			)
			return err
		}
	}
	if !created {
		logger.Debugw("worker_settlement_record_skip_duplicate",
			"escrow_ref", payload.EscrowRef,
			"transaction_id", txn.ID,
		)
	}
	return nil
}

// handleInvoiceGenerate 消费出账任务
func (c *Consumer) handleInvoiceGenerate(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_invoice_generate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InvoiceGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_invoice_generate_unmarshal_failed", "error", err)
		return nil
	}
	if c.InvoiceService == nil {
		logger.Warnw("worker_invoice_generate_skip_invoice_service_nil", "store_id", payload.StoreID)
		return nil
	}

	invoice, err := c.InvoiceService.GenerateInvoice(service.InvoiceGenerateInput{
		StoreID:     payload.StoreID,
		PeriodStart: payload.PeriodStart,
		PeriodEnd:   payload.PeriodEnd,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceInvalid):
			logger.Debugw("worker_invoice_generate_skip_invalid_payload",
				"store_id", payload.StoreID,
				"error", err,
			)
			return nil
		case errors.Is(err, service.ErrInvoiceClaimConflict):
			logger.Warnw("worker_invoice_generate_claim_conflict",
				"store_id", payload.StoreID,
				"error", err,
			)
			return err
		default:
			logger.Warnw("worker_invoice_generate_failed",
				"store_id", payload.StoreID,
				"error", err,
			)
			return err
		}
	}
	if invoice == nil {
		logger.Debugw("worker_invoice_generate_skip_empty_period", "store_id", payload.StoreID)
	}
	return nil
}
