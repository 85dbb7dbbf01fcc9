package constants

// 佣金规则适用范围常量
const (
	ScopeGlobal        = "global"
	ScopeCategory      = "category"
	ScopeStore         = "store"
	ScopeStoreCategory = "store_category"
)

// 佣金流水类型常量
const (
	TransactionTypeInitial    = "initial"
	TransactionTypeAdjustment = "adjustment"
	TransactionTypeRefund     = "refund"
)

// 账单状态常量
const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusIssued = "issued"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusVoid   = "void"
)

// 异步队列与任务常量
const (
	QueueDefault         = "default"
	TaskSettlementRecord = "settlement:record"
	TaskInvoiceGenerate  = "invoice:generate"
)
