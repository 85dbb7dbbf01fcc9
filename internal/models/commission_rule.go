package models

import (
	"fmt"
	"time"

	"github.com/fenyong-next/internal/constants"
)

// CommissionRule 佣金规则定义
// 范围（ScopeType + StoreID/CategoryID）相同且生效窗口重叠的活跃规则视为冲突，
// 创建时即被拒绝；范围不同的规则允许共存，归属判定由解析器完成。
type CommissionRule struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                          // 主键
	Name           string     `gorm:"not null" json:"name"`                                          // 名称
	ScopeType      string     `gorm:"type:varchar(20);not null;index" json:"scope_type"`             // 适用范围（global/category/store/store_category）
	StoreID        *uint      `gorm:"index" json:"store_id,omitempty"`                               // 店铺ID（store/store_category 范围必填）
	CategoryID     *uint      `gorm:"index" json:"category_id,omitempty"`                            // 分类ID（category/store_category 范围必填）
	ScopeSignature string     `gorm:"type:varchar(64);not null;index" json:"scope_signature"`        // 范围签名（冲突检测键）
	Percent        Money      `gorm:"type:decimal(10,2);not null;default:0" json:"percent"`          // 佣金比例（百分比，0-100）
	FixedAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_amount"`     // 固定佣金金额
	Priority       int        `gorm:"not null;default:100" json:"priority"`                          // 同范围层级内优先级（值小者优先）
	EffectiveFrom  *time.Time `gorm:"index" json:"effective_from,omitempty"`                         // 生效时间（空为不限）
	EffectiveTo    *time.Time `gorm:"index" json:"effective_to,omitempty"`                           // 失效时间（空为开放式）
	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"`                  // 是否启用（停用而非删除）
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (CommissionRule) TableName() string {
	return "commission_rules"
}

// BuildScopeSignature 生成规则范围签名
func BuildScopeSignature(scopeType string, storeID, categoryID *uint) string {
	switch scopeType {
	case constants.ScopeStoreCategory:
		return fmt.Sprintf("%s:%d:%d", scopeType, derefUint(storeID), derefUint(categoryID))
	case constants.ScopeStore:
		return fmt.Sprintf("%s:%d", scopeType, derefUint(storeID))
	case constants.ScopeCategory:
		return fmt.Sprintf("%s:%d", scopeType, derefUint(categoryID))
	default:
		return constants.ScopeGlobal
	}
}

// Specificity 返回规则范围的特异度层级（值大者范围更精确）
func (r CommissionRule) Specificity() int {
	switch r.ScopeType {
	case constants.ScopeStoreCategory:
		return 3
	case constants.ScopeStore:
		return 2
	case constants.ScopeCategory:
		return 1
	default:
		return 0
	}
}

// EffectiveAt 判断规则生效窗口是否包含指定时间
func (r CommissionRule) EffectiveAt(at time.Time) bool {
	if r.EffectiveFrom != nil && at.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && at.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// WindowOverlaps 判断两条规则的生效窗口是否重叠（空端点视为开放）
func (r CommissionRule) WindowOverlaps(other CommissionRule) bool {
	if r.EffectiveFrom != nil && other.EffectiveTo != nil && r.EffectiveFrom.After(*other.EffectiveTo) {
		return false
	}
	if other.EffectiveFrom != nil && r.EffectiveTo != nil && other.EffectiveFrom.After(*r.EffectiveTo) {
		return false
	}
	return true
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
