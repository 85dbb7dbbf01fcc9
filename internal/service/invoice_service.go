package service

import (
	"fmt"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// allowedInvoiceTransitions 账单状态机：paid 与 void 为终态。
var allowedInvoiceTransitions = map[string][]string{
	constants.InvoiceStatusDraft:  {constants.InvoiceStatusIssued, constants.InvoiceStatusVoid},
	constants.InvoiceStatusIssued: {constants.InvoiceStatusPaid, constants.InvoiceStatusVoid},
}

// InvoiceService 账单服务
// 出账在单事务内完成流水锁定、账单创建与认领盖章，保证每笔流水至多归属一张账单；
// 金额在生成时固定，之后只允许状态流转。
type InvoiceService struct {
	invoiceRepo repository.InvoiceRepository
	ledgerRepo  repository.LedgerRepository
	settings    BillingSettings
}

// InvoiceGenerateInput 出账输入
type InvoiceGenerateInput struct {
	StoreID     uint
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// NewInvoiceService 创建账单服务
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	ledgerRepo repository.LedgerRepository,
	settings BillingSettings,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		ledgerRepo:  ledgerRepo,
		settings:    settings,
	}
}

// GenerateInvoice 为店铺在指定账期出账
// 账期内无未出账流水时返回 (nil, nil)，不生成空账单。认领以 invoice_id IS NULL
// 作守卫条件，行数不符即回滚，并发出账只会有一方成功。
func (s *InvoiceService) GenerateInvoice(input InvoiceGenerateInput) (*models.Invoice, error) {
	if input.StoreID == 0 {
		return nil, fmt.Errorf("%w: store_id required", ErrInvoiceInvalid)
	}
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() || !input.PeriodEnd.After(input.PeriodStart) {
		return nil, fmt.Errorf("%w: period_end must be after period_start", ErrInvoiceInvalid)
	}

	var invoice *models.Invoice
	if err := s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
		ledger := s.ledgerRepo.WithTx(tx)
		invoices := s.invoiceRepo.WithTx(tx)

		txns, err := ledger.ListUnbilledForUpdate(input.StoreID, input.PeriodStart, input.PeriodEnd)
		if err != nil {
			return err
		}
		if len(txns) == 0 {
			return nil
		}

		subtotal := decimal.Zero
		ids := make([]uint, 0, len(txns))
		for _, txn := range txns {
			subtotal = subtotal.Add(txn.CommissionAmount.Decimal)
			ids = append(ids, txn.ID)
		}
		subtotal = subtotal.Round(2)
		taxAmount := subtotal.Mul(s.settings.TaxPercent).Div(oneHundred).Round(2)
		total := subtotal.Add(taxAmount).Round(2)
		dueAt := input.PeriodEnd.AddDate(0, 0, s.settings.InvoiceDueDays)

		now := time.Now()
		draft := &models.Invoice{
			// 账单号由主键派生，插入时先占一个临时唯一值避免撞唯一索引
			InvoiceNo:   fmt.Sprintf("PENDING-%d-%d", input.StoreID, now.UnixNano()),
			StoreID:     input.StoreID,
			PeriodStart: input.PeriodStart,
			PeriodEnd:   input.PeriodEnd,
			Status:      constants.InvoiceStatusDraft,
			Subtotal:    models.NewMoneyFromDecimal(subtotal),
			TaxPercent:  models.NewMoneyFromDecimal(s.settings.TaxPercent),
			TaxAmount:   models.NewMoneyFromDecimal(taxAmount),
			Total:       models.NewMoneyFromDecimal(total),
			DueAt:       &dueAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := invoices.Create(draft); err != nil {
			return err
		}
		draft.InvoiceNo = buildInvoiceNo(input.PeriodEnd, draft.ID)
		if err := invoices.UpdateInvoiceNo(draft.ID, draft.InvoiceNo); err != nil {
			return err
		}

		claimed, err := ledger.ClaimForInvoice(ids, draft.ID)
		if err != nil {
			return err
		}
		if claimed != int64(len(ids)) {
			return fmt.Errorf("%w: claimed %d of %d entries", ErrInvoiceClaimConflict, claimed, len(ids))
		}

		items := make([]models.InvoiceItem, 0, len(txns))
		for _, txn := range txns {
			items = append(items, models.InvoiceItem{
				InvoiceID:     draft.ID,
				TransactionID: txn.ID,
				EscrowRef:     txn.EscrowRef,
				RuleID:        txn.RuleID,
				CategoryID:    txn.CategoryID,
				Amount:        txn.CommissionAmount,
				CreatedAt:     now,
			})
		}
		if err := invoices.CreateItems(items); err != nil {
			return err
		}
		draft.Items = items
		invoice = draft
		return nil
	}); err != nil {
		return nil, err
	}

	if invoice == nil {
		return nil, nil
	}
	logger.Infow("invoice_generated",
		"invoice_id", invoice.ID,
		"invoice_no", invoice.InvoiceNo,
		"store_id", invoice.StoreID,
		"item_count", len(invoice.Items),
		"total", invoice.Total.String(),
	)
	return invoice, nil
}

// IssueInvoice 开具账单（Draft -> Issued）
func (s *InvoiceService) IssueInvoice(id uint) (*models.Invoice, error) {
	return s.transition(id, constants.InvoiceStatusIssued)
}

// MarkInvoicePaid 标记账单已支付（Issued -> Paid）
func (s *InvoiceService) MarkInvoicePaid(id uint) (*models.Invoice, error) {
	return s.transition(id, constants.InvoiceStatusPaid)
}

// VoidInvoice 作废账单（Draft/Issued -> Void）
func (s *InvoiceService) VoidInvoice(id uint) (*models.Invoice, error) {
	return s.transition(id, constants.InvoiceStatusVoid)
}

// GetInvoice 根据ID获取账单（含明细）
func (s *InvoiceService) GetInvoice(id uint) (*models.Invoice, error) {
	if id == 0 {
		return nil, ErrInvoiceNotFound
	}
	invoice, err := s.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// ListInvoices 分页查询账单
func (s *InvoiceService) ListInvoices(filter repository.InvoiceListFilter) ([]models.Invoice, int64, error) {
	return s.invoiceRepo.List(filter)
}

// transition 执行状态流转：事务内加锁读取当前状态，按状态机校验后更新状态与时间戳。
// 金额字段永不改写，流转只是元数据更新。
func (s *InvoiceService) transition(id uint, target string) (*models.Invoice, error) {
	if id == 0 {
		return nil, ErrInvoiceNotFound
	}

	if err := s.invoiceRepo.Transaction(func(tx *gorm.DB) error {
		invoices := s.invoiceRepo.WithTx(tx)
		invoice, err := invoices.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ErrInvoiceNotFound
		}
		if !transitionAllowed(invoice.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvoiceStateInvalid, invoice.Status, target)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"updated_at": now,
		}
		switch target {
		case constants.InvoiceStatusIssued:
			updates["issued_at"] = now
		case constants.InvoiceStatusPaid:
			updates["paid_at"] = now
		case constants.InvoiceStatusVoid:
			updates["voided_at"] = now
		}
		return invoices.UpdateStatus(id, target, updates)
	}); err != nil {
		return nil, err
	}

	logger.Infow("invoice_status_changed", "invoice_id", id, "status", target)
	return s.GetInvoice(id)
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedInvoiceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// buildInvoiceNo 由账期与账单主键派生顺序账单号，主键自增保证全局唯一且单调。
func buildInvoiceNo(periodEnd time.Time, id uint) string {
	return fmt.Sprintf("FY%s%06d", periodEnd.Format("200601"), id)
}
