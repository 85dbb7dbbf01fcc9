package public

import "github.com/fenyong-next/internal/provider"

// Handler 平台侧接口处理器入口
// 说明：该处理器仅用于上游结算系统调用的事件接入 API。
type Handler struct {
	*provider.Container
}

// New 创建平台侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
