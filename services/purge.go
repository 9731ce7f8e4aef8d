package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/models"
)

// Store: подключение к хранилищу либо ошибка подключения.
type Store struct {
	Name    string
	DB      *gorm.DB
	ConnErr error
}

type TableCount struct {
	Store   string
	Table   string
	Deleted int64
	Err     error
}

type PurgeReport struct {
	Tables      []TableCount
	StoreErrors map[string]error
}

// Err собирает все ошибки отчёта; nil: очистка прошла полностью.
func (r PurgeReport) Err() error {
	var errs []error
	for store, err := range r.StoreErrors {
		errs = append(errs, fmt.Errorf("%s: %w", store, err))
	}
	for _, t := range r.Tables {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", t.Store, t.Table, t.Err))
		}
	}
	return errors.Join(errs...)
}

// Deleted: сколько строк удалено из таблицы (по имени хранилища и таблицы).
func (r PurgeReport) Deleted(store, table string) int64 {
	for _, t := range r.Tables {
		if t.Store == store && t.Table == table {
			return t.Deleted
		}
	}
	return 0
}

// Purger очищает оба хранилища. Политика best-effort: падение одного хранилища
// или одной таблицы не останавливает остальные, отката нет.
type Purger struct {
	opts Options
	log  zerolog.Logger
}

func NewPurger(opts Options) *Purger {
	return &Purger{opts: opts, log: opts.logger("purge")}
}

func (p *Purger) Purge(ctx context.Context, normalized, summary Store) PurgeReport {
	rep := PurgeReport{StoreErrors: map[string]error{}}
	p.log.Info().Msg("purge started")

	p.purgeStore(ctx, normalized, models.NormalizedTables(), &rep)
	p.purgeStore(ctx, summary, models.SummaryTables(), &rep)

	p.log.Info().Int("tables", len(rep.Tables)).Int("failed_stores", len(rep.StoreErrors)).Msg("purge completed")
	return rep
}

type tabler interface{ TableName() string }

// foreignKeyToggle: выключение/включение проверки внешних ключей в рамках сессии.
func foreignKeyToggle(dialect string) (off, on string) {
	switch dialect {
	case "mysql":
		return "SET FOREIGN_KEY_CHECKS = 0", "SET FOREIGN_KEY_CHECKS = 1"
	case "sqlite":
		return "PRAGMA foreign_keys = OFF", "PRAGMA foreign_keys = ON"
	}
	return "", ""
}

func (p *Purger) purgeStore(ctx context.Context, s Store, tables []interface{}, rep *PurgeReport) {
	if s.ConnErr != nil || s.DB == nil {
		err := s.ConnErr
		if err == nil {
			err = &db.ConnectivityError{Store: s.Name, Err: errors.New("no connection")}
		}
		rep.StoreErrors[s.Name] = err
		p.log.Error().Err(err).Str("store", s.Name).Msg("store purge skipped")
		return
	}

	// Connection закрепляет одно соединение: переключатель FK действует на всю последовательность.
	err := s.DB.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		session := func() *gorm.DB {
			return conn.Session(&gorm.Session{NewDB: true, AllowGlobalUpdate: true})
		}

		off, on := foreignKeyToggle(conn.Dialector.Name())
		if off != "" {
			if err := session().Exec(off).Error; err != nil {
				p.log.Warn().Err(err).Str("store", s.Name).Msg("disable foreign key checks")
			}
		}

		for _, model := range tables {
			name := model.(tabler).TableName()
			res := session().Delete(model)
			tc := TableCount{Store: s.Name, Table: name, Deleted: res.RowsAffected, Err: res.Error}
			rep.Tables = append(rep.Tables, tc)
			if res.Error != nil {
				p.log.Error().Err(res.Error).Str("store", s.Name).Str("table", name).Msg("delete failed")
				continue
			}
			p.opts.Metrics.deleted(s.Name, name, res.RowsAffected)
			p.log.Info().Str("store", s.Name).Str("table", name).Int64("deleted", res.RowsAffected).Msg("rows deleted")
		}

		if on != "" {
			if err := session().Exec(on).Error; err != nil {
				p.log.Warn().Err(err).Str("store", s.Name).Msg("re-enable foreign key checks")
			}
		}
		return nil
	})
	if err != nil {
		rep.StoreErrors[s.Name] = err
		p.log.Error().Err(err).Str("store", s.Name).Msg("store purge failed")
	}
}
