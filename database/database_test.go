package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Tsukikage7/command-scheduler/logger"
)

type DatabaseTestSuite struct {
	suite.Suite
	ctx    context.Context
	logger logger.Logger
}

func TestDatabaseSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func (s *DatabaseTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = logger.NewNop()
}

func (s *DatabaseTestSuite) sqliteConfig() *Config {
	return &Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(s.T().TempDir(), "scheduler.db"),
	}
}

func (s *DatabaseTestSuite) TestConfig_Validate() {
	s.ErrorIs((&Config{DSN: "jobs.db"}).Validate(), ErrEmptyDriver)
	s.ErrorIs((&Config{Driver: DriverMySQL}).Validate(), ErrEmptyDSN)
	s.NoError((&Config{Driver: DriverMySQL, DSN: "root:pass@tcp(localhost:3306)/scheduler"}).Validate())
}

func (s *DatabaseTestSuite) TestConfig_ApplyDefaults() {
	cfg := &Config{}
	cfg.ApplyDefaults()

	s.Equal(200*time.Millisecond, cfg.SlowThreshold)
	s.Equal(5*time.Second, cfg.PingTimeout)
	s.Equal("warn", cfg.LogLevel)
	s.Equal(PoolConfig{MaxOpen: 4, MaxIdle: 2, MaxLifetime: time.Hour, MaxIdleTime: 5 * time.Minute}, cfg.Pool)
	s.Equal(SQLiteConfig{BusyTimeout: 5 * time.Second, JournalMode: "WAL", TxLock: "immediate"}, cfg.SQLite)
}

func (s *DatabaseTestSuite) TestConfig_ApplyDefaultsKeepsExplicit() {
	cfg := &Config{LogLevel: "info", PingTimeout: -1, Pool: PoolConfig{MaxOpen: 1}}
	cfg.ApplyDefaults()

	s.Equal("info", cfg.LogLevel)
	s.Equal(time.Duration(-1), cfg.PingTimeout)
	s.Equal(1, cfg.Pool.MaxOpen)
	s.Equal(1, cfg.Pool.MaxIdle, "idle connections never exceed open connections")
}

func (s *DatabaseTestSuite) TestOpen_InvalidArguments() {
	_, err := Open(s.ctx, nil, s.logger)
	s.ErrorIs(err, ErrNilConfig)

	_, err = Open(s.ctx, s.sqliteConfig(), nil)
	s.ErrorIs(err, ErrNilLogger)

	_, err = Open(s.ctx, &Config{DSN: "x"}, s.logger)
	s.ErrorIs(err, ErrEmptyDriver)

	_, err = Open(s.ctx, &Config{Driver: "oracle", DSN: "x"}, s.logger)
	s.ErrorIs(err, ErrUnsupportedDriver)
}

func (s *DatabaseTestSuite) TestOpen_SQLite() {
	db, err := Open(s.ctx, s.sqliteConfig(), s.logger)
	s.Require().NoError(err)
	defer Close(db)

	var one int
	s.Require().NoError(db.Raw("SELECT 1").Scan(&one).Error)
	s.Equal(1, one)
	s.Equal("sqlite", db.Dialector.Name())

	var mode string
	s.Require().NoError(db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	s.Equal("wal", mode)
}

func (s *DatabaseTestSuite) TestClose_Nil() {
	s.NoError(Close(nil))
}

func (s *DatabaseTestSuite) TestParseLogLevel() {
	s.Equal(gormlogger.Silent, parseLogLevel("silent"))
	s.Equal(gormlogger.Error, parseLogLevel("error"))
	s.Equal(gormlogger.Info, parseLogLevel("info"))
	s.Equal(gormlogger.Warn, parseLogLevel(""))
	s.Equal(gormlogger.Warn, parseLogLevel("verbose"))
}

func (s *DatabaseTestSuite) TestSQLiteDSN() {
	cfg := SQLiteConfig{BusyTimeout: 2 * time.Second, JournalMode: "WAL", TxLock: "immediate"}

	s.Equal("/tmp/jobs.db?_busy_timeout=2000&_journal_mode=WAL&_txlock=immediate", sqliteDSN("/tmp/jobs.db", cfg))
	s.Equal("/tmp/jobs.db?_busy_timeout=100&_journal_mode=WAL&_txlock=immediate",
		sqliteDSN("/tmp/jobs.db?_busy_timeout=100", cfg), "explicit parameters win")
	s.Equal("/tmp/jobs.db", sqliteDSN("/tmp/jobs.db", SQLiteConfig{}))
}

func (s *DatabaseTestSuite) TestPing() {
	db, err := Open(s.ctx, s.sqliteConfig(), s.logger)
	s.Require().NoError(err)

	s.NoError(ping(s.ctx, db, time.Second))
	s.NoError(ping(s.ctx, db, 0))

	s.Require().NoError(Close(db))
	s.ErrorIs(ping(s.ctx, db, time.Second), ErrUnavailable)
}
