package orm

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Type                   string `yaml:"type" mapstructure:"type"`               // mysql
	SourceName             string `yaml:"source_name" mapstructure:"source_name"` // 连接字符串
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level" mapstructure:"log_level"` // silent/error/warn/info
}

// OpenSQL 建立底层连接池并 ping 一次
func OpenSQL(ctx context.Context, c *Config) (*sql.DB, error) {
	driver := c.Type
	if driver == "" {
		driver = "mysql"
	}
	db, err := sql.Open(driver, c.SourceName)
	if err != nil {
		return nil, err
	}
	// 关键配置：连接池优化
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewGorm 在已有连接池上包一层 GORM
func NewGorm(sqlDB *sql.DB, level string) (*gorm.DB, error) {
	return gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: false,
	}), GormConfig(level))
}

// GormConfig 生产和测试共用的 GORM 配置
func GormConfig(level string) *gorm.Config {
	return &gorm.Config{
		// 事务由 repo.Transaction 显式控制
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 logger.Default.LogMode(parseLevel(level)),
	}
}

func parseLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		// 生产环境建议用 Warn/Error，开发环境用 Info (打印SQL)
		return logger.Warn
	}
}
