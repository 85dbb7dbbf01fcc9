package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenyong-next/internal/cache"
	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	activeRulesCacheKey = "rules:active"
	activeRulesCacheTTL = 5 * time.Minute
	defaultRulePriority = 100
)

var percentUpperBound = decimal.NewFromInt(100)

// RuleService 佣金规则目录服务
// 负责规则的创建（含同范围窗口冲突检测）、停用与查询，规则归属判定见 rule_resolver.go。
type RuleService struct {
	ruleRepo repository.RuleRepository
}

// RuleCreateInput 创建规则输入
type RuleCreateInput struct {
	Name          string
	ScopeType     string
	StoreID       *uint
	CategoryID    *uint
	Percent       models.Money
	FixedAmount   models.Money
	Priority      int
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

// NewRuleService 创建规则服务
func NewRuleService(ruleRepo repository.RuleRepository) *RuleService {
	return &RuleService{ruleRepo: ruleRepo}
}

// CreateRule 创建佣金规则
// 校验与冲突检测、落库在同一事务内完成：先锁定范围签名，再对同签名的
// 活跃规则逐条比对生效窗口，任何重叠都拒绝整个请求，保证并发创建不会同时通过。
func (s *RuleService) CreateRule(input RuleCreateInput) (*models.CommissionRule, error) {
	rule, err := s.buildRule(input)
	if err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.ruleRepo.WithTx(tx)
		// 先锁签名再查：签名下尚无规则时行锁锁不住任何行，
		// 并发创建会同时通过冲突检测各插一条
		if err := repo.AcquireScopeLock(rule.ScopeSignature); err != nil {
			return err
		}
		existing, err := repo.ListActiveBySignatureForUpdate(rule.ScopeSignature)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if rule.WindowOverlaps(other) {
				return fmt.Errorf("%w: overlaps active rule %d", ErrRuleConflict, other.ID)
			}
		}
		return repo.Create(rule)
	}); err != nil {
		return nil, err
	}

	s.invalidateActiveRulesCache()
	logger.Infow("commission_rule_created",
		"rule_id", rule.ID,
		"scope_signature", rule.ScopeSignature,
		"priority", rule.Priority,
	)
	return rule, nil
}

// DeactivateRule 停用佣金规则（规则只停用不删除，保留历史流水的引用）
func (s *RuleService) DeactivateRule(id uint) (*models.CommissionRule, error) {
	if id == 0 {
		return nil, ErrRuleNotFound
	}
	rule, err := s.ruleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	if rule.IsActive {
		now := time.Now()
		rows, err := s.ruleRepo.SetActive(id, false, now)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, ErrRuleNotFound
		}
		rule.IsActive = false
		rule.UpdatedAt = now
		s.invalidateActiveRulesCache()
		logger.Infow("commission_rule_deactivated", "rule_id", id)
	}
	return rule, nil
}

// GetRule 根据ID获取规则
func (s *RuleService) GetRule(id uint) (*models.CommissionRule, error) {
	if id == 0 {
		return nil, ErrRuleNotFound
	}
	rule, err := s.ruleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

// ListRules 分页查询规则
func (s *RuleService) ListRules(filter repository.RuleListFilter) ([]models.CommissionRule, int64, error) {
	return s.ruleRepo.List(filter)
}

// ListActiveRules 获取全部启用规则（优先读缓存）
func (s *RuleService) ListActiveRules() ([]models.CommissionRule, error) {
	ctx := context.Background()
	var cached []models.CommissionRule
	hit, err := cache.GetJSON(ctx, activeRulesCacheKey, &cached)
	if err != nil {
		logger.Warnw("active_rules_cache_read_failed", "error", err)
	} else if hit {
		return cached, nil
	}

	rules, err := s.ruleRepo.ListActive()
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, activeRulesCacheKey, rules, activeRulesCacheTTL); err != nil {
		logger.Warnw("active_rules_cache_write_failed", "error", err)
	}
	return rules, nil
}

func (s *RuleService) buildRule(input RuleCreateInput) (*models.CommissionRule, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrRuleInvalid)
	}

	scopeType := strings.TrimSpace(input.ScopeType)
	switch scopeType {
	case constants.ScopeGlobal:
		if input.StoreID != nil || input.CategoryID != nil {
			return nil, fmt.Errorf("%w: global scope carries no store or category", ErrRuleInvalid)
		}
	case constants.ScopeCategory:
		if input.CategoryID == nil || *input.CategoryID == 0 {
			return nil, fmt.Errorf("%w: category scope requires category_id", ErrRuleInvalid)
		}
		if input.StoreID != nil {
			return nil, fmt.Errorf("%w: category scope carries no store", ErrRuleInvalid)
		}
	case constants.ScopeStore:
		if input.StoreID == nil || *input.StoreID == 0 {
			return nil, fmt.Errorf("%w: store scope requires store_id", ErrRuleInvalid)
		}
		if input.CategoryID != nil {
			return nil, fmt.Errorf("%w: store scope carries no category", ErrRuleInvalid)
		}
	case constants.ScopeStoreCategory:
		if input.StoreID == nil || *input.StoreID == 0 || input.CategoryID == nil || *input.CategoryID == 0 {
			return nil, fmt.Errorf("%w: store_category scope requires store_id and category_id", ErrRuleInvalid)
		}
	default:
		return nil, fmt.Errorf("%w: unknown scope_type %q", ErrRuleInvalid, scopeType)
	}

	percent := input.Percent.Decimal.Round(2)
	if percent.IsNegative() || percent.GreaterThan(percentUpperBound) {
		return nil, fmt.Errorf("%w: percent must be within [0, 100]", ErrRuleInvalid)
	}
	fixed := input.FixedAmount.Decimal.Round(2)
	if fixed.IsNegative() {
		return nil, fmt.Errorf("%w: fixed_amount must not be negative", ErrRuleInvalid)
	}
	if input.EffectiveFrom != nil && input.EffectiveTo != nil && !input.EffectiveTo.After(*input.EffectiveFrom) {
		return nil, fmt.Errorf("%w: effective_to must be after effective_from", ErrRuleInvalid)
	}

	priority := input.Priority
	if priority <= 0 {
		priority = defaultRulePriority
	}

	now := time.Now()
	return &models.CommissionRule{
		Name:           name,
		ScopeType:      scopeType,
		StoreID:        input.StoreID,
		CategoryID:     input.CategoryID,
		ScopeSignature: models.BuildScopeSignature(scopeType, input.StoreID, input.CategoryID),
		Percent:        models.NewMoneyFromDecimal(percent),
		FixedAmount:    models.NewMoneyFromDecimal(fixed),
		Priority:       priority,
		EffectiveFrom:  input.EffectiveFrom,
		EffectiveTo:    input.EffectiveTo,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *RuleService) invalidateActiveRulesCache() {
	if err := cache.Del(context.Background(), activeRulesCacheKey); err != nil {
		logger.Warnw("active_rules_cache_invalidate_failed", "error", err)
	}
}
