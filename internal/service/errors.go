package service

import "errors"

// 服务层哨兵错误，处理器通过 errors.Is 映射为响应码。
var (
	ErrRuleNotFound     = errors.New("commission rule not found")
	ErrRuleInvalid      = errors.New("commission rule invalid")
	ErrRuleConflict     = errors.New("commission rule conflict")
	ErrNoApplicableRule = errors.New("no applicable commission rule")
	ErrRuleAmbiguous    = errors.New("ambiguous commission rules")

	ErrTransactionNotFound = errors.New("commission transaction not found")
	ErrTransactionInvalid  = errors.New("commission transaction invalid")

	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceInvalid       = errors.New("invoice input invalid")
	ErrInvoiceStateInvalid  = errors.New("invoice state transition invalid")
	ErrInvoiceClaimConflict = errors.New("invoice claim conflict")
)
