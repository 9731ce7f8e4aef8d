package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/models"
	"github.com/Karielka/academics-sync/records"
)

// Средний GPA считается при чтении: каждая оценка получает GPA той полосы шкалы,
// в диапазон которой попадает балл. Оценка вне всех полос в среднее не входит.
const summaryQuery = `
SELECT s.id AS student_id,
       s.first_name AS first_name,
       s.last_name AS last_name,
       s.email AS email,
       d.name AS department,
       s.joining_date AS joining_date,
       AVG(g.gpa) AS gpa
FROM students s
JOIN departments d ON s.department_id = d.id
JOIN marks m ON m.student_id = s.id
JOIN subjects sub ON m.subject_id = sub.id
JOIN grade g ON m.score BETWEEN g.min_percentage AND g.max_percentage
GROUP BY s.id, s.first_name, s.last_name, s.email, d.name, s.joining_date
ORDER BY s.id`

const uncoveredMarksQuery = `
SELECT COUNT(*) FROM marks m
WHERE NOT EXISTS (
    SELECT 1 FROM grade g WHERE m.score BETWEEN g.min_percentage AND g.max_percentage
)`

const studentsWithMarksQuery = `SELECT COUNT(DISTINCT student_id) FROM marks`

type summaryRow struct {
	StudentID   int64
	FirstName   string
	LastName    string
	Email       string
	Department  string
	JoiningDate time.Time
	GPA         sql.NullFloat64 `gorm:"column:gpa"`
}

// SyncReport: итог переноса сводок.
type SyncReport struct {
	Read           int
	Transferred    int
	AlreadyPresent int
	Failed         int
	Excluded       int64 // студенты с оценками, но без строки сводки
	UncoveredMarks int64 // оценки вне всех полос шкалы
	Rejected       []*records.ValidationError
}

// Synchronizer переносит сводки из нормализованного хранилища в хранилище сводок.
// Общей транзакции у хранилищ нет: согласованность итоговая, не атомарная.
type Synchronizer struct {
	source    *gorm.DB
	target    *gorm.DB
	mode      records.Mode
	validator *records.Validator
	opts      Options
	log       zerolog.Logger
}

func NewSynchronizer(source, target *gorm.DB, mode records.Mode, opts Options) *Synchronizer {
	return &Synchronizer{
		source:    source,
		target:    target,
		mode:      mode,
		validator: records.NewValidator(),
		opts:      opts,
		log:       opts.logger("sync"),
	}
}

// RoundGPA: два знака после запятой.
func RoundGPA(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summaries читает сводку по всем студентам из нормализованного хранилища.
func (s *Synchronizer) Summaries(ctx context.Context) ([]models.StudentAcademic, error) {
	var rows []summaryRow
	if err := s.source.WithContext(ctx).Raw(summaryQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}

	out := make([]models.StudentAcademic, 0, len(rows))
	for _, r := range rows {
		if !r.GPA.Valid {
			continue
		}
		out = append(out, models.StudentAcademic{
			ID:          r.StudentID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Department:  r.Department,
			JoiningDate: r.JoiningDate,
			GPA:         RoundGPA(r.GPA.Float64),
		})
	}
	return out, nil
}

// Validate перепроверяет строку сводки независимо от исходной загрузки.
func (s *Synchronizer) Validate(row models.StudentAcademic) error {
	if err := s.validator.Struct(0, row); err != nil {
		return err
	}
	if row.JoiningDate.IsZero() {
		return &records.ValidationError{Field: "joining_date", Value: "", Reason: "missing date"}
	}
	return nil
}

// Sync: существующая строка в хранилище сводок не перезаписывается (первая запись выигрывает).
func (s *Synchronizer) Sync(ctx context.Context) (SyncReport, error) {
	var rep SyncReport
	s.log.Info().Stringer("mode", s.mode).Msg("transfer started")

	rows, err := s.Summaries(ctx)
	if err != nil {
		return rep, err
	}
	rep.Read = len(rows)
	s.reportExclusions(ctx, &rep)

	if len(rows) == 0 {
		s.log.Warn().Msg("no data found to transfer")
		return rep, nil
	}

	tx := s.target.WithContext(ctx)
	for _, row := range rows {
		if err := s.Validate(row); err != nil {
			verr, fatal := s.reject(row, err)
			if fatal != nil {
				return rep, fatal
			}
			rep.Rejected = append(rep.Rejected, verr)
			continue
		}

		row := row
		outcome, err := insertFact(tx, &row)
		s.opts.Metrics.row(db.StoreSummary, "student_academics", outcome)
		switch outcome {
		case Failed:
			rep.Failed++
			s.log.Error().Err(err).Int64("student_id", row.ID).Msg("failed to insert summary")
		case AlreadyPresent:
			rep.AlreadyPresent++
			s.log.Info().Int64("student_id", row.ID).Msg("summary already present, left untouched")
		default:
			rep.Transferred++
			s.log.Info().Int64("student_id", row.ID).Float64("gpa", row.GPA).Msg("summary transferred")
		}
	}
	s.opts.Metrics.rejected("summaries", len(rep.Rejected))

	s.log.Info().
		Int("read", rep.Read).
		Int("transferred", rep.Transferred).
		Int("already_present", rep.AlreadyPresent).
		Int("rejected", len(rep.Rejected)).
		Int("failed", rep.Failed).
		Msg("transfer completed")

	if rep.Failed > 0 {
		return rep, fmt.Errorf("%d summary rows failed to insert", rep.Failed)
	}
	return rep, nil
}

func (s *Synchronizer) reject(row models.StudentAcademic, err error) (*records.ValidationError, error) {
	var verr *records.ValidationError
	if !errors.As(err, &verr) || s.mode == records.Strict {
		return nil, fmt.Errorf("summary for student %d: %w", row.ID, err)
	}
	s.log.Error().Int64("student_id", row.ID).Str("field", verr.Field).Str("value", verr.Value).
		Str("reason", verr.Reason).Msg("summary skipped")
	return verr, nil
}

// reportExclusions считает то, что join молча отбросил. Ошибка подсчёта не фатальна.
func (s *Synchronizer) reportExclusions(ctx context.Context, rep *SyncReport) {
	tx := s.source.WithContext(ctx)

	if err := tx.Raw(uncoveredMarksQuery).Scan(&rep.UncoveredMarks).Error; err != nil {
		s.log.Warn().Err(err).Msg("count uncovered marks")
	} else if rep.UncoveredMarks > 0 {
		s.log.Warn().Int64("marks", rep.UncoveredMarks).Msg("marks outside every grade band excluded from GPA")
	}

	var withMarks int64
	if err := tx.Raw(studentsWithMarksQuery).Scan(&withMarks).Error; err != nil {
		s.log.Warn().Err(err).Msg("count students with marks")
		return
	}
	rep.Excluded = withMarks - int64(rep.Read)
	if rep.Excluded > 0 {
		s.log.Warn().Int64("students", rep.Excluded).Msg("students without a grade-band match excluded from summary")
	}
}
