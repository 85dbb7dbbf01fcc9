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
	"gorm.io/gorm"
)

func setupRuleServiceTest(t *testing.T) (*RuleService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:rule_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CommissionRule{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewRuleService(repository.NewRuleRepository(db)), db
}

func uintPtr(v uint) *uint {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}

func TestCreateRuleValidation(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	cases := []struct {
		name  string
		input RuleCreateInput
	}{
		{
			name: "empty name",
			input: RuleCreateInput{
				ScopeType: constants.ScopeGlobal,
				Percent:   models.NewMoneyFromFloat(10),
			},
		},
		{
			name: "unknown scope",
			input: RuleCreateInput{
				Name:      "bad scope",
				ScopeType: "region",
				Percent:   models.NewMoneyFromFloat(10),
			},
		},
		{
			name: "store scope without store id",
			input: RuleCreateInput{
				Name:      "missing store",
				ScopeType: constants.ScopeStore,
				Percent:   models.NewMoneyFromFloat(10),
			},
		},
		{
			name: "global scope with store id",
			input: RuleCreateInput{
				Name:      "global with store",
				ScopeType: constants.ScopeGlobal,
				StoreID:   uintPtr(1),
				Percent:   models.NewMoneyFromFloat(10),
			},
		},
		{
			name: "percent above 100",
			input: RuleCreateInput{
				Name:      "percent too high",
				ScopeType: constants.ScopeGlobal,
				Percent:   models.NewMoneyFromFloat(101),
			},
		},
		{
			name: "negative fixed amount",
			input: RuleCreateInput{
				Name:        "negative fixed",
				ScopeType:   constants.ScopeGlobal,
				Percent:     models.NewMoneyFromFloat(10),
				FixedAmount: models.NewMoneyFromFloat(-1),
			},
		},
		{
			name: "inverted effective window",
			input: RuleCreateInput{
				Name:          "inverted window",
				ScopeType:     constants.ScopeGlobal,
				Percent:       models.NewMoneyFromFloat(10),
				EffectiveFrom: timePtr(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
				EffectiveTo:   timePtr(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
			},
		},
	}
	for _, tc := range cases {
		if _, err := svc.CreateRule(tc.input); !errors.Is(err, ErrRuleInvalid) {
			t.Fatalf("%s: expected ErrRuleInvalid, got %v", tc.name, err)
		}
	}
}

// 零费率规则（percent 与 fixed 均为 0）是合法的免佣配置，且照常参与归属判定。
func TestCreateRuleZeroRateAllowed(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	if _, err := svc.CreateRule(RuleCreateInput{
		Name:      "global rate",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	}); err != nil {
		t.Fatalf("create global rule failed: %v", err)
	}

	zero, err := svc.CreateRule(RuleCreateInput{
		Name:      "store promo free",
		ScopeType: constants.ScopeStore,
		StoreID:   uintPtr(5),
	})
	if err != nil {
		t.Fatalf("zero-rate rule should be accepted: %v", err)
	}
	if got := zero.Percent.String(); got != "0.00" {
		t.Fatalf("percent should be 0.00, got %s", got)
	}
	if got := zero.FixedAmount.String(); got != "0.00" {
		t.Fatalf("fixed_amount should be 0.00, got %s", got)
	}

	resolved, err := svc.Resolve(ResolveInput{StoreID: 5})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.ID != zero.ID {
		t.Fatalf("zero-rate store rule should win over global, got rule %d", resolved.ID)
	}
}

func TestCreateRuleConflictSameScopeOverlap(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.CreateRule(RuleCreateInput{
		Name:          "store rule",
		ScopeType:     constants.ScopeStore,
		StoreID:       uintPtr(5),
		Percent:       models.NewMoneyFromFloat(8),
		EffectiveFrom: &from,
	}); err != nil {
		t.Fatalf("create first rule failed: %v", err)
	}

	// 同范围、窗口重叠（双方均为开放式结束）应拒绝
	_, err := svc.CreateRule(RuleCreateInput{
		Name:          "store rule dup",
		ScopeType:     constants.ScopeStore,
		StoreID:       uintPtr(5),
		Percent:       models.NewMoneyFromFloat(9),
		EffectiveFrom: timePtr(from.AddDate(0, 3, 0)),
	})
	if !errors.Is(err, ErrRuleConflict) {
		t.Fatalf("expected ErrRuleConflict, got %v", err)
	}
}

func TestCreateRuleDisjointWindowsCoexist(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	if _, err := svc.CreateRule(RuleCreateInput{
		Name:          "h1 rate",
		ScopeType:     constants.ScopeStore,
		StoreID:       uintPtr(5),
		Percent:       models.NewMoneyFromFloat(8),
		EffectiveFrom: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		EffectiveTo:   timePtr(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)),
	}); err != nil {
		t.Fatalf("create h1 rule failed: %v", err)
	}
	if _, err := svc.CreateRule(RuleCreateInput{
		Name:          "h2 rate",
		ScopeType:     constants.ScopeStore,
		StoreID:       uintPtr(5),
		Percent:       models.NewMoneyFromFloat(9),
		EffectiveFrom: timePtr(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)),
	}); err != nil {
		t.Fatalf("disjoint window should coexist: %v", err)
	}
}

func TestCreateRuleDifferentScopesCoexist(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	if _, err := svc.CreateRule(RuleCreateInput{
		Name:      "global rate",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	}); err != nil {
		t.Fatalf("create global rule failed: %v", err)
	}
	if _, err := svc.CreateRule(RuleCreateInput{
		Name:      "store rate",
		ScopeType: constants.ScopeStore,
		StoreID:   uintPtr(5),
		Percent:   models.NewMoneyFromFloat(8),
	}); err != nil {
		t.Fatalf("different scope should coexist: %v", err)
	}
	if _, err := svc.CreateRule(RuleCreateInput{
		Name:       "other store category rate",
		ScopeType:  constants.ScopeStoreCategory,
		StoreID:    uintPtr(5),
		CategoryID: uintPtr(2),
		Percent:    models.NewMoneyFromFloat(6),
	}); err != nil {
		t.Fatalf("store_category scope should coexist: %v", err)
	}
}

func TestCreateRuleAfterDeactivation(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	rule, err := svc.CreateRule(RuleCreateInput{
		Name:      "store rate",
		ScopeType: constants.ScopeStore,
		StoreID:   uintPtr(5),
		Percent:   models.NewMoneyFromFloat(8),
	})
	if err != nil {
		t.Fatalf("create rule failed: %v", err)
	}

	deactivated, err := svc.DeactivateRule(rule.ID)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if deactivated.IsActive {
		t.Fatalf("rule should be inactive after deactivation")
	}

	// 停用规则不再参与冲突检测
	if _, err := svc.CreateRule(RuleCreateInput{
		Name:      "store rate v2",
		ScopeType: constants.ScopeStore,
		StoreID:   uintPtr(5),
		Percent:   models.NewMoneyFromFloat(9),
	}); err != nil {
		t.Fatalf("replacement rule should be accepted: %v", err)
	}
}

func TestDeactivateRuleNotFound(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)
	if _, err := svc.DeactivateRule(999); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestListActiveRulesExcludesDeactivated(t *testing.T) {
	svc, _ := setupRuleServiceTest(t)

	kept, err := svc.CreateRule(RuleCreateInput{
		Name:      "kept",
		ScopeType: constants.ScopeGlobal,
		Percent:   models.NewMoneyFromFloat(10),
	})
	if err != nil {
		t.Fatalf("create kept rule failed: %v", err)
	}
	dropped, err := svc.CreateRule(RuleCreateInput{
		Name:      "dropped",
		ScopeType: constants.ScopeStore,
		StoreID:   uintPtr(1),
		Percent:   models.NewMoneyFromFloat(5),
	})
	if err != nil {
		t.Fatalf("create dropped rule failed: %v", err)
	}
	if _, err := svc.DeactivateRule(dropped.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	active, err := svc.ListActiveRules()
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != kept.ID {
		t.Fatalf("expected only rule %d active, got %+v", kept.ID, active)
	}
}
