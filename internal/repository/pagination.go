package repository

import "gorm.io/gorm"

// applyPagination 为列表查询追加分页子句。
// pageSize 非正数表示不分页（仅用于内部全量遍历），页码从 1 起算。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
