package services

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome: явный исход вставки вместо разбора текста ошибки.
type Outcome int

const (
	Inserted Outcome = iota + 1
	AlreadyPresent
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Options: общие зависимости сервисов. Nil-поля заменяются значениями по умолчанию.
type Options struct {
	Log     *zerolog.Logger
	Metrics *Metrics
}

func (o Options) logger(component string) zerolog.Logger {
	l := log.Logger
	if o.Log != nil {
		l = *o.Log
	}
	return l.With().Str("component", component).Logger()
}

// insertFact пишет строку факта; существующий ключ даёт AlreadyPresent, а не ошибку.
func insertFact(tx *gorm.DB, row interface{}) (Outcome, error) {
	res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return Failed, res.Error
	}
	if res.RowsAffected == 0 {
		return AlreadyPresent, nil
	}
	return Inserted, nil
}
