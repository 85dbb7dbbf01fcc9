package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupInvoiceServiceTest(t *testing.T) (*InvoiceService, *LedgerService, *RuleService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:invoice_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	settings := BillingSettings{
		TaxPercent:     decimal.NewFromInt(5),
		InvoiceDueDays: 14,
	}
	ruleSvc := NewRuleService(repository.NewRuleRepository(db))
	ledgerSvc := NewLedgerService(repository.NewLedgerRepository(db), ruleSvc, settings)
	invoiceSvc := NewInvoiceService(repository.NewInvoiceRepository(db), repository.NewLedgerRepository(db), settings)
	return invoiceSvc, ledgerSvc, ruleSvc, db
}

func seedSettlements(t *testing.T, ledgerSvc *LedgerService, storeID uint, occurredAt time.Time, amounts ...float64) {
	t.Helper()
	for i, gross := range amounts {
		at := occurredAt.Add(time.Duration(i) * time.Hour)
		txType := constants.TransactionTypeInitial
		if gross < 0 {
			txType = constants.TransactionTypeRefund
		}
		if _, _, err := ledgerSvc.RecordSettlement(SettlementInput{
			EscrowRef:       fmt.Sprintf("escrow-%s-%d-%d", t.Name(), storeID, i),
			StoreID:         storeID,
			TransactionType: txType,
			GrossAmount:     models.NewMoneyFromFloat(gross),
			OccurredAt:      &at,
		}); err != nil {
			t.Fatalf("seed settlement %d failed: %v", i, err)
		}
	}
}

func TestGenerateInvoiceTotals(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, db := setupInvoiceServiceTest(t)

	mustCreateRule(t, ruleSvc, RuleCreateInput{
		Name:      "global 10",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	})

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// 三笔成交各 100，佣金各 10.00
	seedSettlements(t, ledgerSvc, 5, periodStart.Add(time.Hour), 100, 100, 100)

	invoice, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}
	if invoice == nil {
		t.Fatalf("invoice should be generated")
	}
	if invoice.Status != constants.InvoiceStatusDraft {
		t.Fatalf("new invoice should be draft, got %s", invoice.Status)
	}
	if got := invoice.Subtotal.String(); got != "30.00" {
		t.Fatalf("subtotal should be 30.00, got %s", got)
	}
	if got := invoice.TaxAmount.String(); got != "1.50" {
		t.Fatalf("tax at 5%% should be 1.50, got %s", got)
	}
	if got := invoice.Total.String(); got != "31.50" {
		t.Fatalf("total should be 31.50, got %s", got)
	}
	wantNo := fmt.Sprintf("FY%s%06d", periodEnd.Format("200601"), invoice.ID)
	if invoice.InvoiceNo != wantNo {
		t.Fatalf("invoice no should be %s, got %s", wantNo, invoice.InvoiceNo)
	}
	if invoice.DueAt == nil || !invoice.DueAt.Equal(periodEnd.AddDate(0, 0, 14)) {
		t.Fatalf("due_at should be period end + 14d, got %v", invoice.DueAt)
	}
	if len(invoice.Items) != 3 {
		t.Fatalf("expected 3 invoice items, got %d", len(invoice.Items))
	}

	// 账期内流水全部被认领
	var unclaimed int64
	if err := db.Model(&models.CommissionTransaction{}).
		Where("store_id = ? AND invoice_id IS NULL", 5).
		Count(&unclaimed).Error; err != nil {
		t.Fatalf("count unclaimed failed: %v", err)
	}
	if unclaimed != 0 {
		t.Fatalf("all period entries should be claimed, %d left", unclaimed)
	}

	// 账单小计与流水合计一致
	sum, err := ledgerSvc.SumCommissionByStore(5)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !invoice.Subtotal.Decimal.Equal(sum.Decimal) {
		t.Fatalf("subtotal %s should match ledger sum %s", invoice.Subtotal, sum)
	}
}

// 退款流水计入账单，小计为带符号净额。
func TestGenerateInvoiceNetsRefunds(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, _ := setupInvoiceServiceTest(t)

	mustCreateRule(t, ruleSvc, RuleCreateInput{
		Name:      "global 10",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	})

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedSettlements(t, ledgerSvc, 5, periodStart.Add(time.Hour), 100, -40)

	invoice, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}
	if got := invoice.Subtotal.String(); got != "6.00" {
		t.Fatalf("net subtotal should be 6.00, got %s", got)
	}
	if len(invoice.Items) != 2 {
		t.Fatalf("both entries should appear as items, got %d", len(invoice.Items))
	}
}

func TestGenerateInvoiceEmptyPeriod(t *testing.T) {
	invoiceSvc, _, _, _ := setupInvoiceServiceTest(t)

	invoice, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("empty period should not error: %v", err)
	}
	if invoice != nil {
		t.Fatalf("empty period should not produce an invoice, got %d", invoice.ID)
	}
}

// 同一账期重复出账不会重复认领流水。
func TestGenerateInvoiceSecondRunProducesNothing(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, _ := setupInvoiceServiceTest(t)

	mustCreateRule(t, ruleSvc, RuleCreateInput{
		Name:      "global 10",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	})

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedSettlements(t, ledgerSvc, 5, periodStart.Add(time.Hour), 100)

	first, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil || first == nil {
		t.Fatalf("first run failed: invoice=%v err=%v", first, err)
	}

	second, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("second run should not error: %v", err)
	}
	if second != nil {
		t.Fatalf("second run should produce no invoice, got %d", second.ID)
	}
}

func TestGenerateInvoiceInputValidation(t *testing.T) {
	invoiceSvc, _, _, _ := setupInvoiceServiceTest(t)

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	}); !errors.Is(err, ErrInvoiceInvalid) {
		t.Fatalf("missing store: expected ErrInvoiceInvalid, got %v", err)
	}
	if _, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: start,
		PeriodEnd:   start,
	}); !errors.Is(err, ErrInvoiceInvalid) {
		t.Fatalf("empty period window: expected ErrInvoiceInvalid, got %v", err)
	}
	if _, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: start.AddDate(0, 1, 0),
		PeriodEnd:   start,
	}); !errors.Is(err, ErrInvoiceInvalid) {
		t.Fatalf("inverted period: expected ErrInvoiceInvalid, got %v", err)
	}
}

func generateDraftInvoice(t *testing.T, invoiceSvc *InvoiceService, ledgerSvc *LedgerService, ruleSvc *RuleService) *models.Invoice {
	t.Helper()
	mustCreateRule(t, ruleSvc, RuleCreateInput{
		Name:      "global 10",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	})
	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	seedSettlements(t, ledgerSvc, 5, periodStart.Add(time.Hour), 100)
	invoice, err := invoiceSvc.GenerateInvoice(InvoiceGenerateInput{
		StoreID:     5,
		PeriodStart: periodStart,
		PeriodEnd:   periodStart.AddDate(0, 1, 0),
	})
	if err != nil || invoice == nil {
		t.Fatalf("generate draft failed: invoice=%v err=%v", invoice, err)
	}
	return invoice
}

func TestInvoiceLifecycleHappyPath(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, _ := setupInvoiceServiceTest(t)
	draft := generateDraftInvoice(t, invoiceSvc, ledgerSvc, ruleSvc)

	issued, err := invoiceSvc.IssueInvoice(draft.ID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if issued.Status != constants.InvoiceStatusIssued || issued.IssuedAt == nil {
		t.Fatalf("issue should set status and issued_at, got %s %v", issued.Status, issued.IssuedAt)
	}

	paid, err := invoiceSvc.MarkInvoicePaid(draft.ID)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Fatalf("pay should set status and paid_at, got %s %v", paid.Status, paid.PaidAt)
	}

	// 金额在流转中保持不变
	if !paid.Total.Decimal.Equal(draft.Total.Decimal) {
		t.Fatalf("total changed during transitions: %s vs %s", paid.Total, draft.Total)
	}
}

func TestInvoiceLifecycleInvalidTransitions(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, _ := setupInvoiceServiceTest(t)
	draft := generateDraftInvoice(t, invoiceSvc, ledgerSvc, ruleSvc)

	// Draft 不能直接支付
	if _, err := invoiceSvc.MarkInvoicePaid(draft.ID); !errors.Is(err, ErrInvoiceStateInvalid) {
		t.Fatalf("draft -> paid: expected ErrInvoiceStateInvalid, got %v", err)
	}

	if _, err := invoiceSvc.IssueInvoice(draft.ID); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	// Issued 不能再次开具
	if _, err := invoiceSvc.IssueInvoice(draft.ID); !errors.Is(err, ErrInvoiceStateInvalid) {
		t.Fatalf("issued -> issued: expected ErrInvoiceStateInvalid, got %v", err)
	}

	if _, err := invoiceSvc.MarkInvoicePaid(draft.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	// Paid 为终态
	if _, err := invoiceSvc.VoidInvoice(draft.ID); !errors.Is(err, ErrInvoiceStateInvalid) {
		t.Fatalf("paid -> void: expected ErrInvoiceStateInvalid, got %v", err)
	}
	if _, err := invoiceSvc.MarkInvoicePaid(draft.ID); !errors.Is(err, ErrInvoiceStateInvalid) {
		t.Fatalf("paid -> paid: expected ErrInvoiceStateInvalid, got %v", err)
	}
}

func TestInvoiceVoidPaths(t *testing.T) {
	invoiceSvc, ledgerSvc, ruleSvc, _ := setupInvoiceServiceTest(t)
	draft := generateDraftInvoice(t, invoiceSvc, ledgerSvc, ruleSvc)

	// Draft 可直接作废
	voided, err := invoiceSvc.VoidInvoice(draft.ID)
	if err != nil {
		t.Fatalf("void draft failed: %v", err)
	}
	if voided.Status != constants.InvoiceStatusVoid || voided.VoidedAt == nil {
		t.Fatalf("void should set status and voided_at, got %s %v", voided.Status, voided.VoidedAt)
	}
	// Void 为终态
	if _, err := invoiceSvc.IssueInvoice(draft.ID); !errors.Is(err, ErrInvoiceStateInvalid) {
		t.Fatalf("void -> issued: expected ErrInvoiceStateInvalid, got %v", err)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	invoiceSvc, _, _, _ := setupInvoiceServiceTest(t)
	if _, err := invoiceSvc.GetInvoice(999); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
	if _, err := invoiceSvc.IssueInvoice(999); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("transition on missing invoice: expected ErrInvoiceNotFound, got %v", err)
	}
}
