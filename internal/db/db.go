package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/config"
)

const (
	StoreNormalized = "mysql"
	StoreSummary    = "postgres"
)

// ConnectivityError: хранилище недоступно. Фатально, без повторов.
type ConnectivityError struct {
	Store string
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s store unreachable: %v", e.Store, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func MySQLDSN(c config.MySQL) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

func PostgresDSN(c config.Postgres) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Database, c.Port, c.SSLMode,
	)
}

// Config: общие настройки gorm для обоих хранилищ.
// TranslateError нужен, чтобы конфликт уникальности приходил как gorm.ErrDuplicatedKey.
func Config(l zerolog.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:         NewGormLogger(l),
		TranslateError: true,
	}
}

func ConnectNormalized(ctx context.Context, c config.MySQL, l zerolog.Logger) (*gorm.DB, error) {
	return open(ctx, StoreNormalized, mysql.Open(MySQLDSN(c)), l)
}

func ConnectSummary(ctx context.Context, c config.Postgres, l zerolog.Logger) (*gorm.DB, error) {
	return open(ctx, StoreSummary, postgres.Open(PostgresDSN(c)), l)
}

// Open подключает произвольный диалектор с теми же настройками (используется в тестах).
func Open(ctx context.Context, store string, d gorm.Dialector, l zerolog.Logger) (*gorm.DB, error) {
	return open(ctx, store, d, l)
}

func open(ctx context.Context, store string, d gorm.Dialector, l zerolog.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(d, Config(l))
	if err != nil {
		return nil, &ConnectivityError{Store: store, Err: err}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, &ConnectivityError{Store: store, Err: err}
	}

	// Одно соединение на хранилище: прогон последовательный,
	// а SET FOREIGN_KEY_CHECKS действует только в рамках сессии.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(45 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, &ConnectivityError{Store: store, Err: err}
	}

	l.Info().Str("store", store).Msg("connected")
	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
