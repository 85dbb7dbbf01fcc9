package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/fenyong-next/internal/http/response"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RuleCreateRequest 创建佣金规则请求
type RuleCreateRequest struct {
	Name          string       `json:"name" binding:"required"`
	ScopeType     string       `json:"scope_type" binding:"required"`
	StoreID       *uint        `json:"store_id"`
	CategoryID    *uint        `json:"category_id"`
	Percent       models.Money `json:"percent"`
	FixedAmount   models.Money `json:"fixed_amount"`
	Priority      int          `json:"priority"`
	EffectiveFrom string       `json:"effective_from"`
	EffectiveTo   string       `json:"effective_to"`
}

// CreateRule 创建佣金规则
func (h *Handler) CreateRule(c *gin.Context) {
	var req RuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	effectiveFrom, err := parseTimeNullable(req.EffectiveFrom)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	effectiveTo, err := parseTimeNullable(req.EffectiveTo)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	rule, err := h.RuleService.CreateRule(service.RuleCreateInput{
		Name:          req.Name,
		ScopeType:     req.ScopeType,
		StoreID:       req.StoreID,
		CategoryID:    req.CategoryID,
		Percent:       req.Percent,
		FixedAmount:   req.FixedAmount,
		Priority:      req.Priority,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRuleInvalid):
			respondError(c, response.CodeBadRequest, "error.rule_invalid", err)
		case errors.Is(err, service.ErrRuleConflict):
			respondError(c, response.CodeConflict, "error.rule_conflict", err)
		default:
			respondError(c, response.CodeInternal, "error.rule_create_failed", err)
		}
		return
	}
	response.Success(c, rule)
}

// DeactivateRule 停用佣金规则
func (h *Handler) DeactivateRule(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	rule, err := h.RuleService.DeactivateRule(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRuleNotFound):
			respondError(c, response.CodeNotFound, "error.rule_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.rule_update_failed", err)
		}
		return
	}
	response.Success(c, rule)
}

// GetRule 获取规则详情
func (h *Handler) GetRule(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	rule, err := h.RuleService.GetRule(id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRuleNotFound):
			respondError(c, response.CodeNotFound, "error.rule_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.rule_fetch_failed", err)
		}
		return
	}
	response.Success(c, rule)
}

// GetRules 分页查询规则
func (h *Handler) GetRules(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	storeID, err := parseUintQuery(c, "store_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	categoryID, err := parseUintQuery(c, "category_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	var isActive *bool
	if raw := c.Query("is_active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		isActive = &parsed
	}

	rules, total, err := h.RuleService.ListRules(repository.RuleListFilter{
		ScopeType:  c.Query("scope_type"),
		StoreID:    storeID,
		CategoryID: categoryID,
		IsActive:   isActive,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.rule_fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, rules, pagination)
}

// ResolveRule 按店铺/分类/时间试算适用规则（排障用）
func (h *Handler) ResolveRule(c *gin.Context) {
	storeID, err := parseUintQuery(c, "store_id")
	if err != nil || storeID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	var categoryID *uint
	if value, err := parseUintQuery(c, "category_id"); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	} else if value != 0 {
		categoryID = &value
	}
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := parseTimeNullable(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		at = *parsed
	}

	rule, err := h.RuleService.Resolve(service.ResolveInput{
		StoreID:    storeID,
		CategoryID: categoryID,
		At:         at,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoApplicableRule):
			respondError(c, response.CodeNotFound, "error.rule_no_match", nil)
		case errors.Is(err, service.ErrRuleAmbiguous):
			respondError(c, response.CodeConflict, "error.rule_ambiguous", err)
		case errors.Is(err, service.ErrRuleInvalid):
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
		default:
			respondError(c, response.CodeInternal, "error.rule_fetch_failed", err)
		}
		return
	}
	response.Success(c, rule)
}
