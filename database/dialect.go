package database

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// getDialector 根据驱动类型返回对应的 Dialector.
func getDialector(config *Config) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverMySQL:
		return mysql.Open(config.DSN), nil
	case DriverPostgres, DriverPostgreSQL:
		return postgres.Open(config.DSN), nil
	case DriverSQLite, DriverSQLite3:
		return sqlite.Open(sqliteDSN(config.DSN, config.SQLite)), nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

// sqliteDSN 为 sqlite 连接补充并发参数，DSN 中已有的参数保持不变.
//
// 多个调度进程共享同一个数据库文件：写事务以 BEGIN IMMEDIATE 开始，
// 读-判断-写在持有写锁的情况下完成；等待写锁的进程最多阻塞 BusyTimeout.
func sqliteDSN(dsn string, cfg SQLiteConfig) string {
	base, rawQuery, _ := strings.Cut(dsn, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}

	setDefault := func(key, value string) {
		if value != "" && query.Get(key) == "" {
			query.Set(key, value)
		}
	}
	if cfg.BusyTimeout > 0 {
		setDefault("_busy_timeout", strconv.FormatInt(int64(cfg.BusyTimeout/time.Millisecond), 10))
	}
	setDefault("_journal_mode", cfg.JournalMode)
	setDefault("_txlock", cfg.TxLock)

	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}
