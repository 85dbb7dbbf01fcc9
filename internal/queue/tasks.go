package queue

import (
	"encoding/json"
	"time"

	"github.com/fenyong-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSettlementRecord 结算事件入账任务
	TaskSettlementRecord = constants.TaskSettlementRecord
	// TaskInvoiceGenerate 店铺出账任务
	TaskInvoiceGenerate = constants.TaskInvoiceGenerate
)

// SettlementRecordPayload 结算入账任务载荷
type SettlementRecordPayload struct {
	EscrowRef       string     `json:"escrow_ref"`
	StoreID         uint       `json:"store_id"`
	CategoryID      *uint      `json:"category_id,omitempty"`
	TransactionType string     `json:"transaction_type"`
	GrossAmount     string     `json:"gross_amount"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

// InvoiceGeneratePayload 出账任务载荷
type InvoiceGeneratePayload struct {
	StoreID     uint      `json:"store_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// NewSettlementRecordTask 创建结算入账任务
func NewSettlementRecordTask(payload SettlementRecordPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementRecord, body), nil
}

// NewInvoiceGenerateTask 创建出账任务
func NewInvoiceGenerateTask(payload InvoiceGeneratePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceGenerate, body), nil
}
