package database

import (
	"fmt"

	"procurement/internal/config"
	"procurement/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the configured database and sizes its connection pool.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer keeps transactions serialized on a single file
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if log != nil {
		log.Info("database connected", zap.String("driver", cfg.Driver))
	}
	return db, nil
}

// Models lists every table owned by the service, in creation order.
func Models() []any {
	return []any{
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.AuditLog{},
		&model.Vendor{},
		&model.CatalogItem{},
		&model.DocumentSequence{},
		&model.ApprovalChainEntry{},
		&model.MonthlyBudget{},
		&model.PurchaseRequest{},
		&model.RequestItem{},
		&model.ApprovalStep{},
		&model.RequestHistory{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.GoodsReceipt{},
		&model.GoodsReceiptItem{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
