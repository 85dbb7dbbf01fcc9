package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// LedgerService 佣金流水服务
// 结算事件按 EscrowRef 幂等入账，流水只追加，冲销以带符号的新流水表达。
type LedgerService struct {
	ledgerRepo repository.LedgerRepository
	ruleSvc    *RuleService
	settings   BillingSettings
}

// SettlementInput 结算事件入账输入
type SettlementInput struct {
	EscrowRef       string
	StoreID         uint
	CategoryID      *uint
	TransactionType string
	GrossAmount     models.Money
	OccurredAt      *time.Time
}

// NewLedgerService 创建流水服务
func NewLedgerService(
	ledgerRepo repository.LedgerRepository,
	ruleSvc *RuleService,
	settings BillingSettings,
) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		ruleSvc:    ruleSvc,
		settings:   settings,
	}
}

// RecordSettlement 记录一笔结算事件的佣金流水
// 同一 EscrowRef 重复提交返回首次入账结果（created=false），保证单事件单流水。
// 规则判定失败时，若配置了平台默认比例则以兜底比例入账（RuleID 为空）。
func (s *LedgerService) RecordSettlement(input SettlementInput) (*models.CommissionTransaction, bool, error) {
	escrowRef := strings.TrimSpace(input.EscrowRef)
	if escrowRef == "" {
		return nil, false, fmt.Errorf("%w: escrow_ref required", ErrTransactionInvalid)
	}
	if input.StoreID == 0 {
		return nil, false, fmt.Errorf("%w: store_id required", ErrTransactionInvalid)
	}

	gross := input.GrossAmount.Decimal.Round(2)
	switch input.TransactionType {
	case constants.TransactionTypeInitial:
		if !gross.IsPositive() {
			return nil, false, fmt.Errorf("%w: initial settlement requires positive gross amount", ErrTransactionInvalid)
		}
	case constants.TransactionTypeRefund:
		if !gross.IsNegative() {
			return nil, false, fmt.Errorf("%w: refund requires negative gross amount", ErrTransactionInvalid)
		}
	case constants.TransactionTypeAdjustment:
		if gross.IsZero() {
			return nil, false, fmt.Errorf("%w: adjustment requires non-zero gross amount", ErrTransactionInvalid)
		}
	default:
		return nil, false, fmt.Errorf("%w: unknown transaction_type %q", ErrTransactionInvalid, input.TransactionType)
	}

	existing, err := s.ledgerRepo.GetByEscrowRef(escrowRef)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	occurredAt := time.Now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	percent := decimal.Zero
	fixed := decimal.Zero
	var ruleID *uint
	rule, err := s.ruleSvc.Resolve(ResolveInput{
		StoreID:    input.StoreID,
		CategoryID: input.CategoryID,
		At:         occurredAt,
	})
	switch {
	case err == nil:
		percent = rule.Percent.Decimal
		fixed = rule.FixedAmount.Decimal
		id := rule.ID
		ruleID = &id
	case errors.Is(err, ErrNoApplicableRule) && s.settings.HasDefaultCommission():
		percent = s.settings.DefaultCommissionPercent
		logger.Infow("settlement_default_commission_applied",
			"escrow_ref", escrowRef,
			"store_id", input.StoreID,
			"percent", percent.String(),
		)
	default:
		return nil, false, err
	}

	txn := &models.CommissionTransaction{
		EscrowRef:        escrowRef,
		StoreID:          input.StoreID,
		CategoryID:       input.CategoryID,
		TransactionType:  input.TransactionType,
		GrossAmount:      models.NewMoneyFromDecimal(gross),
		CommissionAmount: models.NewMoneyFromDecimal(computeCommission(gross, percent, fixed)),
		Percent:          models.NewMoneyFromDecimal(percent),
		FixedAmount:      models.NewMoneyFromDecimal(fixed),
		RuleID:           ruleID,
		CreatedAt:        occurredAt,
	}
	if err := s.ledgerRepo.Create(txn); err != nil {
		// 并发重复提交会撞上 escrow_ref 唯一索引，回读首次入账结果。
		created, queryErr := s.ledgerRepo.GetByEscrowRef(escrowRef)
		if queryErr == nil && created != nil {
			return created, false, nil
		}
		return nil, false, err
	}

	logger.Infow("settlement_recorded",
		"transaction_id", txn.ID,
		"escrow_ref", escrowRef,
		"store_id", input.StoreID,
		"transaction_type", input.TransactionType,
		"commission_amount", txn.CommissionAmount.String(),
	)
	return txn, true, nil
}

// GetTransaction 根据ID获取流水
func (s *LedgerService) GetTransaction(id uint) (*models.CommissionTransaction, error) {
	if id == 0 {
		return nil, ErrTransactionNotFound
	}
	txn, err := s.ledgerRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// ListTransactions 分页查询流水
func (s *LedgerService) ListTransactions(filter repository.LedgerListFilter) ([]models.CommissionTransaction, int64, error) {
	return s.ledgerRepo.List(filter)
}

// SumCommissionByStore 统计店铺佣金流水合计（对账用）
func (s *LedgerService) SumCommissionByStore(storeID uint) (models.Money, error) {
	return s.ledgerRepo.SumCommissionByStore(storeID)
}

// computeCommission 计算带符号佣金：gross * percent / 100，固定金额随成交额的符号累加，
// 保证退款冲销与原流水对称。结果按 2 位小数半数进位。
func computeCommission(gross, percent, fixed decimal.Decimal) decimal.Decimal {
	commission := gross.Mul(percent).Div(oneHundred)
	if gross.IsNegative() {
		commission = commission.Sub(fixed)
	} else {
		commission = commission.Add(fixed)
	}
	return commission.Round(2)
}
