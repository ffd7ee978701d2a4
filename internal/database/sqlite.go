package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// busyTimeoutMS SQLite 写锁等待时间，覆盖采集高峰的并发落库
const busyTimeoutMS = 15000

var db *gorm.DB

// ErrNotInitialized 在 InitSQLite 之前访问数据库时返回
var ErrNotInitialized = fmt.Errorf("database not initialized")

// InitSQLite 打开并初始化 SQLite 数据库（WAL 模式、单连接、自动迁移）
func InitSQLite(cfg config.SQLiteConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		// SQLite 每次写操作默认包事务，高并发下放大锁争用
		SkipDefaultTransaction: true,
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, busyTimeoutMS)
	handle, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := handle.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接池：PRAGMA 只在建立它的连接上生效，多连接会绕开 busy_timeout
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// DSN 里的 pragma 在部分环境不生效，运行期再设一遍兜底
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMS),
		"PRAGMA foreign_keys=ON;",
	} {
		_ = handle.Exec(pragma).Error
	}

	db = handle
	if err := autoMigrate(); err != nil {
		db = nil
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	logger.Info("SQLite database initialized", "path", cfg.Path)
	return nil
}

// autoMigrate 创建/更新表结构与索引
func autoMigrate() error {
	if err := db.AutoMigrate(
		&model.Task{},
		&model.TaskLog{},
		&model.DeviceInfo{},
		&model.TelnetPlatform{},
		&model.Collector{},
		&model.CollectorStatus{},
		&model.SimDeviceCommand{},
	); err != nil {
		return err
	}

	// 旧库的 DeviceInfo.IP 单列唯一索引与 ip+port+username 组合唯一冲突，逐个命名尝试移除
	_ = db.Migrator().DropIndex(&model.DeviceInfo{}, "ip")
	for _, idx := range []string{"idx_device_info_ip", "device_info_ip", "uix_device_info_ip"} {
		_ = db.Exec("DROP INDEX IF EXISTS " + idx + ";").Error
	}
	return nil
}

// GetDB 返回数据库实例，未初始化时为 nil，调用方需自行判空
func GetDB() *gorm.DB {
	return db
}

// busyMarkers SQLite 并发锁错误的特征串
var busyMarkers = []string{
	"database is locked",
	"sqlite_busy",
	"cannot start a transaction within a transaction",
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range busyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry 执行数据库操作，遇到并发锁错误时指数退避重试
// 非锁错误立即返回，不消耗重试次数
func WithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if db == nil {
		return ErrNotInitialized
	}
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = 50 * time.Millisecond
	}
	var err error
	for left := attempts; left > 0; left-- {
		if err = fn(db); err == nil || !IsBusyError(err) {
			return err
		}
		time.Sleep(sleep)
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// Transaction 执行事务
func Transaction(fn func(*gorm.DB) error) error {
	if db == nil {
		return ErrNotInitialized
	}
	return db.Transaction(fn)
}

// TransactionWithRetry 短事务加锁错误退避重试，避免失败后长时间持锁
func TransactionWithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	return WithRetry(func(h *gorm.DB) error {
		return h.Transaction(fn)
	}, attempts, sleep)
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// Health 检查数据库连通性
func Health() error {
	if db == nil {
		return ErrNotInitialized
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetStats 返回连接池统计信息
func GetStats() map[string]interface{} {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}
