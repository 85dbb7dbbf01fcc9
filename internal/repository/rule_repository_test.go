package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fenyong-next/internal/constants"
	"github.com/fenyong-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRuleRepositoryTest(t *testing.T) *GormRuleRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:rule_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CommissionRule{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewRuleRepository(db)
}

// 创建规则的事务先锁签名再做冲突检测；签名下还没有行时行锁保护不了，
// 签名锁必须在这种空集情况下也能取到并放行整个流程。
func TestAcquireScopeLockGuardsFirstRuleInScope(t *testing.T) {
	repo := setupRuleRepositoryTest(t)

	signature := "store:5"
	if err := repo.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		if err := txRepo.AcquireScopeLock(signature); err != nil {
			return err
		}
		existing, err := txRepo.ListActiveBySignatureForUpdate(signature)
		if err != nil {
			return err
		}
		if len(existing) != 0 {
			t.Fatalf("fresh scope should have no active rules, got %d", len(existing))
		}
		storeID := uint(5)
		return txRepo.Create(&models.CommissionRule{
			Name:           "store rate",
			ScopeType:      constants.ScopeStore,
			StoreID:        &storeID,
			ScopeSignature: signature,
			Percent:        models.NewMoneyFromFloat(8),
			Priority:       100,
			IsActive:       true,
		})
	}); err != nil {
		t.Fatalf("locked create flow failed: %v", err)
	}

	// 第二个事务在同一签名下能看到已提交的规则
	if err := repo.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		if err := txRepo.AcquireScopeLock(signature); err != nil {
			return err
		}
		existing, err := txRepo.ListActiveBySignatureForUpdate(signature)
		if err != nil {
			return err
		}
		if len(existing) != 1 {
			t.Fatalf("expected 1 active rule under %s, got %d", signature, len(existing))
		}
		return nil
	}); err != nil {
		t.Fatalf("second transaction failed: %v", err)
	}
}
