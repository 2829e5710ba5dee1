// Package container wires repositories, services and handlers from the
// configuration so the serve and migrate commands build the same graph.
package container

import (
	"context"
	"fmt"
	"net/http"

	"procurement/internal/config"
	"procurement/internal/document"
	"procurement/internal/handler"
	"procurement/internal/metrics"
	"procurement/internal/middleware"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/storage"
	"procurement/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds the application graph.
type Container struct {
	cfg  *config.Config
	db   *gorm.DB
	log  *zap.Logger
	hub  *websocket.Hub
	auth *middleware.Auth

	Users       service.UserService
	Roles       service.RoleService
	Budgets     service.BudgetService
	Requests    service.RequestService
	Approvals   service.ApprovalService
	Procurement service.ProcurementService
	Orders      service.OrderService
	Receipts    service.ReceiptService
	Vendors     service.VendorService
	Catalog     service.CatalogService
	Audit       service.AuditService
}

// New builds every service on top of db. It starts no goroutines; the caller
// runs the websocket hub.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Container{cfg: cfg, db: db, log: log, hub: websocket.NewHub(log.Named("ws"))}

	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	notifier := notify.Fanout{
		notify.NewHubNotifier(c.hub),
		notify.NewLogNotifier(log.Named("notify")),
	}
	files := storage.NewLocalStore(cfg.Storage.BaseDir, log.Named("storage"))
	renderer := document.NewXLSXRenderer(cfg.Documents.CompanyName, log.Named("document"))

	c.Roles = service.NewRoleService(tx, roleRepo)
	c.auth = middleware.NewAuth(cfg.Auth.JWTSecret, c.Roles, cfg.IsProduction())
	c.Users = service.NewUserService(userRepo, service.AuthOptions{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
	}, nil)
	c.Budgets = service.NewBudgetService(tx, repository.NewBudgetRepository(db), requestRepo, auditRepo)
	c.Requests = service.NewRequestService(tx, requestRepo, approvalRepo, orderRepo, historyRepo, sequenceRepo,
		catalogRepo, auditRepo, c.Budgets, files,
		service.RequestOptions{PrecheckBudget: cfg.Budget.PrecheckOnCreate}, nil, log.Named("requests"))
	c.Approvals = service.NewApprovalService(tx, requestRepo, approvalRepo, historyRepo, userRepo, auditRepo,
		c.Budgets, notifier, cfg.Approval.Mode, nil, log.Named("approvals"))
	c.Procurement = service.NewProcurementService(requestRepo)
	c.Orders = service.NewOrderService(tx, requestRepo, orderRepo, receiptRepo, vendorRepo, historyRepo,
		sequenceRepo, auditRepo, notifier, renderer, files, nil, log.Named("orders"))
	c.Receipts = service.NewReceiptService(tx, requestRepo, orderRepo, receiptRepo, historyRepo, auditRepo,
		notifier, cfg.Receipt.OverReceiptPolicy, nil, log.Named("receipts"))
	c.Vendors = service.NewVendorService(vendorRepo, auditRepo, tx)
	c.Catalog = service.NewCatalogService(catalogRepo, auditRepo, tx)
	c.Audit = service.NewAuditService(auditRepo)
	return c
}

// Hub returns the websocket hub notifications are pushed through.
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Seed creates the built-in roles and, when none exists yet, the approval
// chain listed in the configuration.
func (c *Container) Seed(ctx context.Context) error {
	if err := c.Roles.SeedDefaultRolesAndPermissions(ctx); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if len(c.cfg.Approval.Chain) == 0 {
		c.log.Warn("no approval chain configured; requests cannot be raised until one is set")
		return nil
	}
	seeds := make([]service.ChainSeed, 0, len(c.cfg.Approval.Chain))
	for _, e := range c.cfg.Approval.Chain {
		seeds = append(seeds, service.ChainSeed{Name: e.Name, ApproverUsername: e.Approver})
	}
	if err := c.Approvals.SeedChain(ctx, seeds); err != nil {
		return fmt.Errorf("failed to seed approval chain: %w", err)
	}
	return nil
}

// Router builds the gin engine with middleware and every route registered.
func (c *Container) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(c.log.Named("http")))
	router.Use(metrics.Middleware())
	router.Use(middleware.RateLimit(c.cfg.Server.RateLimitRPS, c.cfg.Server.RateLimitBurst))

	corsConfig := cors.DefaultConfig()
	if len(c.cfg.Server.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = c.cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(ctx *gin.Context) {
		sqlDB, err := c.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(ctx *gin.Context) {
		websocket.ServeWs(c.hub, ctx, c.auth.Secret())
	})

	root := router.Group("")
	handler.NewUserHandler(c.Users, c.auth).RegisterRoutes(root)
	handler.NewRoleHandler(c.Roles, c.auth).RegisterRoutes(root)
	handler.NewRequestHandler(c.Requests, c.auth, c.cfg.Storage.MaxImageSize).RegisterRoutes(root)
	handler.NewApprovalHandler(c.Approvals, c.auth).RegisterRoutes(root)
	handler.NewBudgetHandler(c.Budgets, c.auth).RegisterRoutes(root)
	handler.NewProcurementHandler(c.Procurement, c.auth).RegisterRoutes(root)
	handler.NewOrderHandler(c.Orders, c.auth).RegisterRoutes(root)
	handler.NewReceiptHandler(c.Receipts, c.auth).RegisterRoutes(root)
	handler.NewVendorHandler(c.Vendors, c.auth).RegisterRoutes(root)
	handler.NewCatalogHandler(c.Catalog, c.auth).RegisterRoutes(root)
	handler.NewAuditHandler(c.Audit, c.auth).RegisterRoutes(root)
	return router
}
