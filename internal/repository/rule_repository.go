package repository

import (
	"errors"
	"time"

	"github.com/fenyong-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleRepository 佣金规则数据访问接口
type RuleRepository interface {
	GetByID(id uint) (*models.CommissionRule, error)
	ListActive() ([]models.CommissionRule, error)
	ListActiveBySignatureForUpdate(signature string) ([]models.CommissionRule, error)
	AcquireScopeLock(signature string) error
	Create(rule *models.CommissionRule) error
	SetActive(id uint, active bool, now time.Time) (int64, error)
	List(filter RuleListFilter) ([]models.CommissionRule, int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormRuleRepository
}

// RuleListFilter 规则列表筛选
type RuleListFilter struct {
	ScopeType  string
	StoreID    uint
	CategoryID uint
	IsActive   *bool
	Page       int
	PageSize   int
}

// GormRuleRepository GORM 规则仓储实现
type GormRuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRuleRepository) WithTx(tx *gorm.DB) *GormRuleRepository {
	if tx == nil {
		return r
	}
	return &GormRuleRepository{db: tx}
}

// Transaction 在数据库事务中执行
func (r *GormRuleRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据ID获取规则
func (r *GormRuleRepository) GetByID(id uint) (*models.CommissionRule, error) {
	var rule models.CommissionRule
	if err := r.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ListActive 获取全部启用规则（解析器在内存中做窗口与范围过滤）
func (r *GormRuleRepository) ListActive() ([]models.CommissionRule, error) {
	var rules []models.CommissionRule
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListActiveBySignatureForUpdate 按范围签名加锁获取启用规则（创建冲突检测用）
func (r *GormRuleRepository) ListActiveBySignatureForUpdate(signature string) ([]models.CommissionRule, error) {
	var rules []models.CommissionRule
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope_signature = ? AND is_active = ?", signature, true).
		Order("id asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// AcquireScopeLock 对范围签名取事务级咨询锁，串行化同签名的并发创建。
// 行锁只覆盖已存在的行，签名下还没有规则时锁不到任何东西，两个并发创建
// 会同时通过冲突检测；咨询锁把整个签名锁住，事务提交或回滚时自动释放。
// 仅 postgres 需要，sqlite 写入本身就是单写者串行。
func (r *GormRuleRepository) AcquireScopeLock(signature string) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", signature).Error
}

// Create 创建规则
func (r *GormRuleRepository) Create(rule *models.CommissionRule) error {
	return r.db.Create(rule).Error
}

// SetActive 更新规则启用状态，返回受影响行数
func (r *GormRuleRepository) SetActive(id uint, active bool, now time.Time) (int64, error) {
	result := r.db.Model(&models.CommissionRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// List 分页查询规则
func (r *GormRuleRepository) List(filter RuleListFilter) ([]models.CommissionRule, int64, error) {
	var rules []models.CommissionRule
	query := r.db.Model(&models.CommissionRule{})

	if filter.ScopeType != "" {
		query = query.Where("scope_type = ?", filter.ScopeType)
	}
	if filter.StoreID != 0 {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}
