package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/provider"
	"github.com/fenyong-next/internal/queue"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupConsumerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CommissionRule{},
		&models.CommissionTransaction{},
		&models.Invoice{},
		&models.InvoiceItem{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	settings := service.BillingSettings{InvoiceDueDays: 14}
	ruleSvc := service.NewRuleService(repository.NewRuleRepository(db))
	ledgerSvc := service.NewLedgerService(repository.NewLedgerRepository(db), ruleSvc, settings)
	invoiceSvc := service.NewInvoiceService(repository.NewInvoiceRepository(db), repository.NewLedgerRepository(db), settings)

	consumer := NewConsumer(&provider.Container{
		RuleService:    ruleSvc,
		LedgerService:  ledgerSvc,
		InvoiceService: invoiceSvc,
	})
	return consumer, db
}

func seedGlobalRule(t *testing.T, consumer *Consumer) {
	t.Helper()
	if _, err := consumer.RuleService.CreateRule(service.RuleCreateInput{
		Name:      "global 10",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	}); err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}
}

func TestHandleSettlementRecordTask(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	seedGlobalRule(t, consumer)

	task, err := queue.NewSettlementRecordTask(queue.SettlementRecordPayload{
		EscrowRef:       "escrow-task-1",
		StoreID:         5,
		TransactionType: constants.TransactionTypeInitial,
		GrossAmount:     "100",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleSettlementRecord(context.Background(), task); err != nil {
		t.Fatalf("handle settlement task failed: %v", err)
	}

	var txn models.CommissionTransaction
	if err := db.Where("escrow_ref = ?", "escrow-task-1").First(&txn).Error; err != nil {
		t.Fatalf("ledger entry not recorded: %v", err)
	}
	if got := txn.CommissionAmount.String(); got != "10.00" {
		t.Fatalf("expected commission 10.00, got %s", got)
	}

	// 重复投递同一任务不报错、不重复入账
	if err := consumer.handleSettlementRecord(context.Background(), task); err != nil {
		t.Fatalf("duplicate delivery should be swallowed: %v", err)
	}
	var count int64
	if err := db.Model(&models.CommissionTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single ledger entry, got %d", count)
	}
}

func TestHandleSettlementRecordTaskSkipsInvalidPayload(t *testing.T) {
	consumer, _ := setupConsumerTest(t)

	// 缺 store_id 属于无法通过重试修复的载荷，吞掉不触发重试
	task, err := queue.NewSettlementRecordTask(queue.SettlementRecordPayload{
		EscrowRef:       "escrow-task-bad",
		TransactionType: constants.TransactionTypeInitial,
		GrossAmount:     "100",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleSettlementRecord(context.Background(), task); err != nil {
		t.Fatalf("invalid payload should not trigger retry: %v", err)
	}
}

// 坏 JSON 载荷重试多少次都不会变好，处理器吞掉而不是交给 asynq 重试。
func TestHandleTasksSwallowMalformedPayload(t *testing.T) {
	consumer, db := setupConsumerTest(t)

	record := asynq.NewTask(queue.TaskSettlementRecord, []byte("{not json"))
	if err := consumer.handleSettlementRecord(context.Background(), record); err != nil {
		t.Fatalf("malformed settlement payload should not trigger retry: %v", err)
	}
	var txns int64
	if err := db.Model(&models.CommissionTransaction{}).Count(&txns).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if txns != 0 {
		t.Fatalf("malformed payload must not record anything, got %d entries", txns)
	}

	generate := asynq.NewTask(queue.TaskInvoiceGenerate, []byte("{not json"))
	if err := consumer.handleInvoiceGenerate(context.Background(), generate); err != nil {
		t.Fatalf("malformed invoice payload should not trigger retry: %v", err)
	}
}

func TestHandleInvoiceGenerateTask(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	seedGlobalRule(t, consumer)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	occurredAt := periodStart.Add(time.Hour)
	if _, _, err := consumer.LedgerService.RecordSettlement(service.SettlementInput{
		EscrowRef:       "escrow-task-invoice",
		StoreID:         5,
		TransactionType: constants.TransactionTypeInitial,
		GrossAmount:     models.NewMoneyFromFloat(100),
		OccurredAt:      &occurredAt,
	}); err != nil {
		t.Fatalf("seed settlement failed: %v", err)
	}

	task, err := queue.NewInvoiceGenerateTask(queue.InvoiceGeneratePayload{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleInvoiceGenerate(context.Background(), task); err != nil {
		t.Fatalf("handle invoice task failed: %v", err)
	}

	var invoice models.Invoice
	if err := db.Where("store_id = ?", 5).First(&invoice).Error; err != nil {
		t.Fatalf("invoice not generated: %v", err)
	}
	if invoice.Status != constants.InvoiceStatusDraft {
		t.Fatalf("expected draft invoice, got %s", invoice.Status)
	}

	// 空账期的重复任务静默完成
	if err := consumer.handleInvoiceGenerate(context.Background(), task); err != nil {
		t.Fatalf("repeat task on empty period should succeed: %v", err)
	}
}
