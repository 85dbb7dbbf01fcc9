package repository

import (
	"errors"
	"time"

	"github.com/fenyong-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository 佣金流水数据访问接口
// 流水只追加：不提供更新与删除，出账认领只写 invoice_id 一个字段。
type LedgerRepository interface {
	GetByID(id uint) (*models.CommissionTransaction, error)
	GetByEscrowRef(escrowRef string) (*models.CommissionTransaction, error)
	Create(txn *models.CommissionTransaction) error
	List(filter LedgerListFilter) ([]models.CommissionTransaction, int64, error)
	ListUnbilledForUpdate(storeID uint, periodStart, periodEnd time.Time) ([]models.CommissionTransaction, error)
	ListUnbilledStoreIDs(periodStart, periodEnd time.Time) ([]uint, error)
	ClaimForInvoice(ids []uint, invoiceID uint) (int64, error)
	SumCommissionByStore(storeID uint) (models.Money, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormLedgerRepository
}

// LedgerListFilter 流水列表筛选
type LedgerListFilter struct {
	StoreID         uint
	InvoiceID       uint
	TransactionType string
	Unbilled        bool
	Page            int
	PageSize        int
}

// GormLedgerRepository GORM 流水仓储实现
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建流水仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) *GormLedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// Transaction 在数据库事务中执行
func (r *GormLedgerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据ID获取流水
func (r *GormLedgerRepository) GetByID(id uint) (*models.CommissionTransaction, error) {
	var txn models.CommissionTransaction
	if err := r.db.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByEscrowRef 按结算引用获取流水（结算事件幂等入账用）
func (r *GormLedgerRepository) GetByEscrowRef(escrowRef string) (*models.CommissionTransaction, error) {
	if escrowRef == "" {
		return nil, nil
	}
	var txn models.CommissionTransaction
	if err := r.db.Where("escrow_ref = ?", escrowRef).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Create 创建流水
func (r *GormLedgerRepository) Create(txn *models.CommissionTransaction) error {
	return r.db.Create(txn).Error
}

// List 分页查询流水
func (r *GormLedgerRepository) List(filter LedgerListFilter) ([]models.CommissionTransaction, int64, error) {
	var txns []models.CommissionTransaction
	query := r.db.Model(&models.CommissionTransaction{})

	if filter.StoreID != 0 {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.TransactionType != "" {
		query = query.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.Unbilled {
		query = query.Where("invoice_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListUnbilledForUpdate 加锁获取账期内未出账流水（出账认领用，须在事务内调用）
func (r *GormLedgerRepository) ListUnbilledForUpdate(storeID uint, periodStart, periodEnd time.Time) ([]models.CommissionTransaction, error) {
	var txns []models.CommissionTransaction
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND invoice_id IS NULL", storeID).
		Where("created_at >= ? AND created_at <= ?", periodStart, periodEnd).
		Order("id asc").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListUnbilledStoreIDs 列出账期内存在未出账流水的店铺（批量出账用）
func (r *GormLedgerRepository) ListUnbilledStoreIDs(periodStart, periodEnd time.Time) ([]uint, error) {
	var storeIDs []uint
	if err := r.db.Model(&models.CommissionTransaction{}).
		Where("invoice_id IS NULL").
		Where("created_at >= ? AND created_at <= ?", periodStart, periodEnd).
		Distinct("store_id").
		Order("store_id asc").
		Pluck("store_id", &storeIDs).Error; err != nil {
		return nil, err
	}
	return storeIDs, nil
}

// ClaimForInvoice 将流水盖上账单ID，仅认领仍未出账的行，返回认领行数
func (r *GormLedgerRepository) ClaimForInvoice(ids []uint, invoiceID uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.CommissionTransaction{}).
		Where("id IN ? AND invoice_id IS NULL", ids).
		Update("invoice_id", invoiceID)
	return result.RowsAffected, result.Error
}

// SumCommissionByStore 统计店铺全部佣金流水合计
func (r *GormLedgerRepository) SumCommissionByStore(storeID uint) (models.Money, error) {
	var raw *string
	if err := r.db.Model(&models.CommissionTransaction{}).
		Where("store_id = ?", storeID).
		Select("CAST(COALESCE(SUM(commission_amount), 0) AS TEXT)").
		Scan(&raw).Error; err != nil {
		return models.Money{}, err
	}
	if raw == nil || *raw == "" {
		return models.NewMoneyFromDecimal(decimal.Zero), nil
	}
	sum, err := decimal.NewFromString(*raw)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(sum), nil
}
