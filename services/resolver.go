package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/models"
)

// Resolution: итог разрешения естественного ключа в суррогатный id.
type Resolution struct {
	ID      uint
	Outcome Outcome
	Cached  bool
	Err     error
}

type subjectKey struct {
	name         string
	departmentID uint
}

// DimensionResolver: lookup-or-create для кафедр и предметов.
// Кэш живёт ровно один прогон: создаётся оркестратором и выбрасывается вместе с ним.
type DimensionResolver struct {
	db      *gorm.DB
	log     zerolog.Logger
	metrics *Metrics

	departments map[string]uint
	subjects    map[subjectKey]uint
}

func NewDimensionResolver(gdb *gorm.DB, opts Options) *DimensionResolver {
	return &DimensionResolver{
		db:          gdb,
		log:         opts.logger("resolver"),
		metrics:     opts.Metrics,
		departments: make(map[string]uint),
		subjects:    make(map[subjectKey]uint),
	}
}

// Department: кэш -> поиск по имени -> вставка -> при конфликте повторный поиск.
func (r *DimensionResolver) Department(ctx context.Context, name string) Resolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{Outcome: Failed, Err: errors.New("department name is empty")}
	}
	if id, ok := r.departments[name]; ok {
		return Resolution{ID: id, Outcome: AlreadyPresent, Cached: true}
	}

	res := r.lookupOrCreate(ctx, "departments",
		func(tx *gorm.DB) (uint, error) {
			var d models.Department
			err := tx.Where("name = ?", name).Take(&d).Error
			return d.ID, err
		},
		func(tx *gorm.DB) (uint, error) {
			d := models.Department{Name: name}
			err := tx.Create(&d).Error
			return d.ID, err
		},
	)
	if res.Outcome != Failed {
		r.departments[name] = res.ID
		r.log.Info().Str("department", name).Uint("id", res.ID).Stringer("outcome", res.Outcome).Msg("department resolved")
	}
	return res
}

// Subject: одно и то же имя на разных кафедрах даёт разные предметы.
func (r *DimensionResolver) Subject(ctx context.Context, name string, departmentID uint) Resolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{Outcome: Failed, Err: errors.New("subject name is empty")}
	}
	if departmentID == 0 {
		return Resolution{Outcome: Failed, Err: fmt.Errorf("subject %q has no department", name)}
	}
	key := subjectKey{name: name, departmentID: departmentID}
	if id, ok := r.subjects[key]; ok {
		return Resolution{ID: id, Outcome: AlreadyPresent, Cached: true}
	}

	res := r.lookupOrCreate(ctx, "subjects",
		func(tx *gorm.DB) (uint, error) {
			var s models.Subject
			err := tx.Where("name = ? AND department_id = ?", name, departmentID).Take(&s).Error
			return s.ID, err
		},
		func(tx *gorm.DB) (uint, error) {
			s := models.Subject{Name: name, DepartmentID: departmentID}
			err := tx.Omit("Department").Create(&s).Error
			return s.ID, err
		},
	)
	if res.Outcome != Failed {
		r.subjects[key] = res.ID
		r.log.Info().Str("subject", name).Uint("department_id", departmentID).Uint("id", res.ID).
			Stringer("outcome", res.Outcome).Msg("subject resolved")
	}
	return res
}

func (r *DimensionResolver) lookupOrCreate(
	ctx context.Context,
	table string,
	lookup func(*gorm.DB) (uint, error),
	insert func(*gorm.DB) (uint, error),
) Resolution {
	tx := r.db.WithContext(ctx)

	id, err := lookup(tx)
	switch {
	case err == nil:
		r.metrics.row(db.StoreNormalized, table, AlreadyPresent)
		return Resolution{ID: id, Outcome: AlreadyPresent}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{Outcome: Failed, Err: fmt.Errorf("lookup %s: %w", table, err)}
	}

	return r.insertOrRecover(tx, table, lookup, insert)
}

// insertOrRecover: если между поиском и вставкой строку уже создал кто-то другой,
// берём его id вместо ошибки. Повторный поиск решает, существует ли строка.
func (r *DimensionResolver) insertOrRecover(
	tx *gorm.DB,
	table string,
	lookup func(*gorm.DB) (uint, error),
	insert func(*gorm.DB) (uint, error),
) Resolution {
	id, insErr := insert(tx)
	if insErr == nil {
		r.metrics.row(db.StoreNormalized, table, Inserted)
		return Resolution{ID: id, Outcome: Inserted}
	}

	id, err := lookup(tx)
	if err == nil {
		r.log.Debug().Err(insErr).Str("table", table).Uint("id", id).Msg("insert lost the race, using existing row")
		r.metrics.row(db.StoreNormalized, table, AlreadyPresent)
		return Resolution{ID: id, Outcome: AlreadyPresent}
	}

	r.metrics.row(db.StoreNormalized, table, Failed)
	if errors.Is(insErr, gorm.ErrDuplicatedKey) {
		return Resolution{Outcome: Failed, Err: fmt.Errorf("re-query %s after conflict: %w", table, err)}
	}
	return Resolution{Outcome: Failed, Err: fmt.Errorf("insert %s: %w", table, insErr)}
}
