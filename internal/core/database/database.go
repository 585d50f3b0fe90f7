package database

import (
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/storefront/internal"
)

const driverName = "pgx"

// Connections bundles the ORM handle used by repositories and the sqlx handle
// used for health checks and reports. Both share one pool.
type Connections struct {
	SQLX *sqlx.DB
	Gorm *gorm.DB
}

func Open(cfg internal.DatabaseConfig, logger *slog.Logger) (*Connections, error) {
	dbConn, err := sqlx.Connect(driverName, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), GormConfig())
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	logger.Info("database connected",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns)

	return &Connections{SQLX: dbConn, Gorm: gormDB}, nil
}

func (c *Connections) Close() error {
	return c.SQLX.Close()
}

// GormConfig stores timestamps in UTC so stale-record scans compare correctly.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
