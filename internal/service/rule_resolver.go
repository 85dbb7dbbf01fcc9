package service

import (
	"fmt"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/models"
)

// ResolveInput 规则归属判定输入
type ResolveInput struct {
	StoreID    uint
	CategoryID *uint
	At         time.Time
}

// Resolve 为一笔结算事件判定适用规则
// 判定顺序：先取指定时刻生效且范围匹配的规则，再按范围特异度取最高层级
// （store_category > store > category > global），同层级内取优先级数值最小者；
// 仍并列即判定失败，宁可报错也不静默选一条。相同输入必然得到相同结果。
func (s *RuleService) Resolve(input ResolveInput) (*models.CommissionRule, error) {
	if input.StoreID == 0 {
		return nil, fmt.Errorf("%w: store_id required", ErrRuleInvalid)
	}
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}

	rules, err := s.ListActiveRules()
	if err != nil {
		return nil, err
	}

	var candidates []models.CommissionRule
	bestSpecificity := -1
	for _, rule := range rules {
		if !rule.EffectiveAt(at) {
			continue
		}
		if !ruleMatchesScope(rule, input.StoreID, input.CategoryID) {
			continue
		}
		spec := rule.Specificity()
		if spec > bestSpecificity {
			bestSpecificity = spec
			candidates = candidates[:0]
		}
		if spec == bestSpecificity {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoApplicableRule
	}

	winner := candidates[0]
	var tiedWith *models.CommissionRule
	for i := 1; i < len(candidates); i++ {
		rule := candidates[i]
		switch {
		case rule.Priority < winner.Priority:
			winner = rule
			tiedWith = nil
		case rule.Priority == winner.Priority:
			tied := rule
			tiedWith = &tied
		}
	}
	if tiedWith != nil {
		return nil, fmt.Errorf("%w: rules %d and %d share scope tier and priority",
			ErrRuleAmbiguous, winner.ID, tiedWith.ID)
	}
	return &winner, nil
}

func ruleMatchesScope(rule models.CommissionRule, storeID uint, categoryID *uint) bool {
	switch rule.ScopeType {
	case constants.ScopeGlobal:
		return true
	case constants.ScopeCategory:
		return categoryID != nil && rule.CategoryID != nil && *rule.CategoryID == *categoryID
	case constants.ScopeStore:
		return rule.StoreID != nil && *rule.StoreID == storeID
	case constants.ScopeStoreCategory:
		return rule.StoreID != nil && *rule.StoreID == storeID &&
			categoryID != nil && rule.CategoryID != nil && *rule.CategoryID == *categoryID
	default:
		return false
	}
}
