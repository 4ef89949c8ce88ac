package app

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/estmator/estmator/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the configured database and panics when it is unreachable
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	db, err := OpenDatabase(cfg, workdir)
	if err != nil {
		zap.S().Errorf("open database error: %s", err.Error())
		panic(err)
	}
	return db
}

// OpenDatabase opens a gorm handle for the postgres or sqlite dialect.
// A sqlite name that is not a URI or ":memory:" is placed under workdir/data.
func OpenDatabase(cfg config.DBConfig, workdir string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Type) {
	case "sqlite", "sqlite3":
		name := cfg.Name
		if name != ":memory:" && !strings.HasPrefix(name, "file:") && !path.IsAbs(name) {
			name = path.Join(workdir, "data", name)
		}
		dialector = sqlite.Open(name)
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.ToLower(cfg.Type), "sqlite") {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxConn > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConn)
		}
		if cfg.IdleConn > 0 {
			sqlDB.SetMaxIdleConns(cfg.IdleConn)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}
