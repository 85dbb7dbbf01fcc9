package admin

import "github.com/fenyong-next/internal/provider"

// Handler 平台运营端接口处理器入口
// 说明：该处理器仅用于规则、流水与账单的运营管理 API。
type Handler struct {
	*provider.Container
}

// New 创建运营端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
