package mysql

import (
	"log"
	"os"
	"time"

	"TagChat/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var global *gorm.DB

// DB 返回全局数据库连接（未初始化时为 nil）。
func DB() *gorm.DB { return global }

// ReplaceGlobal 设置全局数据库连接，需在进程启动时调用一次。
func ReplaceGlobal(db *gorm.DB) { global = db }

// Build 根据配置构建 gorm 连接。
// - 连接池参数由配置控制。
// - 慢查询阈值超出时由 gorm 记录 warn。
// - 配置了只读副本时，查询走副本、写入走主库（事务内始终走主库）。
func Build(cfg config.MySQLConfig) (*gorm.DB, error) {
	slowThreshold := cfg.SlowThreshold
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stdout, "", log.LstdFlags), gormlogger.Config{
			SlowThreshold: slowThreshold,
			LogLevel:      gormlogger.Warn,
		}),
	})
	if err != nil {
		return nil, err
	}

	if cfg.ReplicaDSN != "" {
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(cfg.ReplicaDSN)},
			Policy:   dbresolver.RandomPolicy{},
		})
		resolver.
			SetMaxOpenConns(cfg.MaxOpenConns).
			SetMaxIdleConns(cfg.MaxIdleConns).
			SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := db.Use(resolver); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
