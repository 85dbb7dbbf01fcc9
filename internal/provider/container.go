package provider

import (
	"github.com/fenyong-next/internal/cache"
	"github.com/fenyong-next/internal/config"
	"github.com/fenyong-next/internal/logger"
	"github.com/fenyong-next/internal/models"
	"github.com/fenyong-next/internal/queue"
	"github.com/fenyong-next/internal/repository"
	"github.com/fenyong-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	RuleRepo    repository.RuleRepository
	LedgerRepo  repository.LedgerRepository
	InvoiceRepo repository.InvoiceRepository

	// Services
	RuleService    *service.RuleService
	LedgerService  *service.LedgerService
	InvoiceService *service.InvoiceService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.RuleRepo = repository.NewRuleRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
}

func (c *Container) initServices() {
	settings := service.NewBillingSettings(c.Config.Billing)
	c.RuleService = service.NewRuleService(c.RuleRepo)
	c.LedgerService = service.NewLedgerService(c.LedgerRepo, c.RuleService, settings)
	c.InvoiceService = service.NewInvoiceService(c.InvoiceRepo, c.LedgerRepo, settings)
}
