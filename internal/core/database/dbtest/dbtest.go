// Package dbtest opens throwaway SQLite databases for repository tests.
package dbtest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/storefront/internal/core/database"
	ordermodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	productmodel "github.com/frahmantamala/storefront/internal/core/datamodel/product"
)

// Open returns a migrated in-memory database private to the caller.
func Open() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())

	cfg := database.GormConfig()
	cfg.Logger = gormlogger.Discard

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection serialises writers the way row locks would
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&productmodel.Product{},
		&ordermodel.Order{},
		&paymentmodel.PaymentRecord{},
		&paymentmodel.PaymentStatusEvent{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLX wraps the same pool for sqlx based repositories.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}
