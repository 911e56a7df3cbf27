package repository

import (
	"fmt"

	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Models 需要迁移的全部模型
var Models = []interface{}{
	&model.Profile{},
	&model.Bounty{},
	&model.BountyFulfillment{},
	&model.Interest{},
	&model.BountyInterest{},
	&model.BountyEvent{},
	&model.Tip{},
	&model.Earning{},
	&model.TribeMember{},
	&model.SearchResult{},
	&model.Activity{},
	&model.UserAction{},
	&model.BountySyncRequest{},
	&model.ConversionRate{},
	&model.Semaphore{},
	&model.RegistryLog{},
}

// 部分唯一索引，postgres 与 sqlite 均支持 WHERE 子句
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bounty_current_revision
		ON bounty (network, standard_bounties_id)
		WHERE current_bounty AND standard_bounties_id <> 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_fulfillment_bounty_profile
		ON bounty_fulfillment (bounty_id, profile_id)
		WHERE profile_id IS NOT NULL`,
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Init 打开数据库并迁移
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite 单写者
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移并创建部分唯一索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
