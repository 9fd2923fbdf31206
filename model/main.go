// Package model holds the GORM entities and repositories backing the
// gateway: API keys, providers, models, completions, embeddings, the
// request-id dedup table, and admin settings.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/logger"
)

// DB is the process-wide GORM handle, set by InitDB.
var DB *gorm.DB

// InitDB opens the configured database, detects its dialect, and migrates
// the schema. config.DatabaseURL picks the dialect: empty or a
// "sqlite:"/"file:" DSN uses SQLite at common.SQLitePath; "mysql://" (or a
// bare MySQL DSN containing "@tcp(") uses MySQL; "postgres://" or
// "postgresql://" uses Postgres.
func InitDB() error {
	dialector, err := openDialector(config.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "select gorm dialector")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	if err := migrate(); err != nil {
		return errors.Wrap(err, "migrate schema")
	}

	logger.Logger.Info("database ready",
		zap.Bool("sqlite", common.UsingSQLite),
		zap.Bool("mysql", common.UsingMySQL),
		zap.Bool("postgres", common.UsingPostgreSQL))
	return nil
}

func openDialector(dsn string) (gorm.Dialector, error) {
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "sqlite:") || strings.HasPrefix(dsn, "file:"):
		path, err := ensureSQLitePath()
		if err != nil {
			return nil, err
		}
		common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false
		return sqlite.Open(path + "?_busy_timeout=5000&_journal_mode=WAL"), nil

	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = false, false, true
		return postgres.Open(dsn), nil

	case strings.HasPrefix(dsn, "mysql://") || strings.Contains(dsn, "@tcp("):
		common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = false, true, false
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://")), nil

	default:
		return nil, errors.Errorf("unrecognized DATABASE_URL dialect: %s", dsn)
	}
}

// ensureSQLitePath resolves common.SQLitePath to an absolute path and makes
// sure its parent directory exists.
func ensureSQLitePath() (string, error) {
	abs, err := filepath.Abs(common.SQLitePath)
	if err != nil {
		return "", errors.Wrap(err, "resolve sqlite path")
	}
	abs = filepath.Clean(abs)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", errors.Wrapf(err, "create sqlite directory: %s", filepath.Dir(abs))
	}

	return abs, nil
}

func migrate() error {
	if err := DB.AutoMigrate(
		&ApiKey{},
		&Provider{},
		&ModelRow{},
		&Completion{},
		&Embedding{},
		&ReqIdEntry{},
		&Setting{},
	); err != nil {
		return err
	}
	return nil
}

func wrapDBError(err error, action string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, fmt.Sprintf("%s failed", action))
}
