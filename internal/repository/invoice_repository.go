package repository

import (
	"errors"

	"github.com/fenyong-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository 账单数据访问接口
type InvoiceRepository interface {
	GetByID(id uint) (*models.Invoice, error)
	GetByIDForUpdate(id uint) (*models.Invoice, error)
	Create(invoice *models.Invoice) error
	CreateItems(items []models.InvoiceItem) error
	UpdateInvoiceNo(id uint, invoiceNo string) error
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	List(filter InvoiceListFilter) ([]models.Invoice, int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormInvoiceRepository
}

// InvoiceListFilter 账单列表筛选
type InvoiceListFilter struct {
	StoreID  uint
	Status   string
	Page     int
	PageSize int
}

// GormInvoiceRepository GORM 账单仓储实现
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建账单仓储
func NewInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	if tx == nil {
		return r
	}
	return &GormInvoiceRepository{db: tx}
}

// Transaction 在数据库事务中执行
func (r *GormInvoiceRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据ID获取账单（含明细）
func (r *GormInvoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Preload("Items").First(&invoice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByIDForUpdate 根据ID加锁获取账单（状态流转用，须在事务内调用）
func (r *GormInvoiceRepository) GetByIDForUpdate(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// Create 创建账单
func (r *GormInvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// CreateItems 批量创建账单明细
func (r *GormInvoiceRepository) CreateItems(items []models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// UpdateInvoiceNo 写入账单号（生成事务内由主键派生）
func (r *GormInvoiceRepository) UpdateInvoiceNo(id uint, invoiceNo string) error {
	return r.db.Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("invoice_no", invoiceNo).Error
}

// UpdateStatus 更新账单状态与流转时间戳
func (r *GormInvoiceRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	values := map[string]interface{}{
		"status": status,
	}
	for k, v := range updates {
		values[k] = v
	}
	return r.db.Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(values).Error
}

// List 分页查询账单
func (r *GormInvoiceRepository) List(filter InvoiceListFilter) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	query := r.db.Model(&models.Invoice{})

	if filter.StoreID != 0 {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}
