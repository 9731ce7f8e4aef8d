package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/models"
	"github.com/Karielka/academics-sync/records"
)

// LoadReport: что сделал один прогон загрузки.
type LoadReport struct {
	DepartmentsCreated int
	SubjectsCreated    int
	StudentsInserted   int
	StudentsSkipped    int
	MarksInserted      int
	MarksSkipped       int
	GradesInserted     int
	GradesSkipped      int
	Rejected           []*records.ValidationError
}

// Loader переносит студентов, оценки и шкалу в нормализованное хранилище.
// Повторный прогон на тех же данных ничего не дублирует и не падает:
// уже существующая строка считается сделанной ранее работой, а не ошибкой.
type Loader struct {
	db        *gorm.DB
	mode      records.Mode
	validator *records.Validator
	opts      Options
	log       zerolog.Logger
}

func NewLoader(gdb *gorm.DB, mode records.Mode, opts Options) *Loader {
	return &Loader{
		db:        gdb,
		mode:      mode,
		validator: records.NewValidator(),
		opts:      opts,
		log:       opts.logger("loader"),
	}
}

// Load проверяет оба пакета целиком и только потом пишет.
func (l *Loader) Load(ctx context.Context, studentRecs, gradeRecs []records.Record) (LoadReport, error) {
	var rep LoadReport
	l.log.Info().Int("students", len(studentRecs)).Int("grades", len(gradeRecs)).
		Stringer("mode", l.mode).Msg("load started")

	students, rejected, err := l.validator.Students(studentRecs, l.mode, l.log)
	if err != nil {
		return rep, fmt.Errorf("validate students: %w", err)
	}
	rep.Rejected = append(rep.Rejected, rejected...)
	l.opts.Metrics.rejected("students", len(rejected))

	grades, rejected, err := l.validator.Grades(gradeRecs, l.mode, l.log)
	if err != nil {
		return rep, fmt.Errorf("validate grades: %w", err)
	}
	rep.Rejected = append(rep.Rejected, rejected...)
	l.opts.Metrics.rejected("grades", len(rejected))

	resolver := NewDimensionResolver(l.db, l.opts)
	for _, s := range students {
		if err := l.loadStudent(ctx, resolver, s, &rep); err != nil {
			return rep, err
		}
	}

	for _, g := range grades {
		if err := l.loadGrade(ctx, g, &rep); err != nil {
			return rep, err
		}
	}

	l.log.Info().
		Int("students_inserted", rep.StudentsInserted).
		Int("students_skipped", rep.StudentsSkipped).
		Int("marks_inserted", rep.MarksInserted).
		Int("marks_skipped", rep.MarksSkipped).
		Int("grades_inserted", rep.GradesInserted).
		Int("grades_skipped", rep.GradesSkipped).
		Int("rejected", len(rep.Rejected)).
		Msg("load completed")
	return rep, nil
}

func (l *Loader) loadStudent(ctx context.Context, resolver *DimensionResolver, s records.Student, rep *LoadReport) error {
	dept := resolver.Department(ctx, s.Department)
	if dept.Outcome == Failed {
		return fmt.Errorf("student %d: resolve department %q: %w", s.ID, s.Department, dept.Err)
	}
	if dept.Outcome == Inserted {
		rep.DepartmentsCreated++
	}

	tx := l.db.WithContext(ctx)
	outcome, err := insertFact(tx, &models.Student{
		ID:           s.ID,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Email:        s.Email,
		DepartmentID: dept.ID,
		JoiningDate:  s.JoiningDate,
	})
	l.opts.Metrics.row(db.StoreNormalized, "students", outcome)
	switch outcome {
	case Failed:
		return fmt.Errorf("insert student %d: %w", s.ID, err)
	case AlreadyPresent:
		// Прошлый прогон мог упасть между студентом и его оценками: оценки всё равно догружаем.
		rep.StudentsSkipped++
		l.log.Warn().Int64("student_id", s.ID).Msg("student already present, skipped")
	default:
		rep.StudentsInserted++
		l.log.Info().Int64("student_id", s.ID).Msg("student inserted")
	}

	for _, m := range s.Marks {
		subj := resolver.Subject(ctx, m.Subject, dept.ID)
		if subj.Outcome == Failed {
			return fmt.Errorf("student %d: resolve subject %q: %w", s.ID, m.Subject, subj.Err)
		}
		if subj.Outcome == Inserted {
			rep.SubjectsCreated++
		}

		outcome, err := insertFact(tx, &models.Mark{StudentID: s.ID, SubjectID: subj.ID, Score: m.Score})
		l.opts.Metrics.row(db.StoreNormalized, "marks", outcome)
		switch outcome {
		case Failed:
			return fmt.Errorf("insert mark: student %d, subject %q: %w", s.ID, m.Subject, err)
		case AlreadyPresent:
			rep.MarksSkipped++
			l.log.Warn().Int64("student_id", s.ID).Uint("subject_id", subj.ID).Msg("mark already present, skipped")
		default:
			rep.MarksInserted++
		}
	}
	return nil
}

func (l *Loader) loadGrade(ctx context.Context, g records.GradeBand, rep *LoadReport) error {
	outcome, err := insertFact(l.db.WithContext(ctx), &models.Grade{
		ID:            g.ID,
		Code:          g.Code,
		Label:         g.Label,
		MinPercentage: g.MinPercentage,
		MaxPercentage: g.MaxPercentage,
		GPA:           g.GPA,
	})
	l.opts.Metrics.row(db.StoreNormalized, "grade", outcome)
	switch outcome {
	case Failed:
		return fmt.Errorf("insert grade %s: %w", g.Code, err)
	case AlreadyPresent:
		rep.GradesSkipped++
		l.log.Warn().Int64("grade_id", g.ID).Str("code", g.Code).Msg("grade already present, skipped")
	default:
		rep.GradesInserted++
		l.log.Info().Int64("grade_id", g.ID).Str("code", g.Code).Msg("grade inserted")
	}
	return nil
}
