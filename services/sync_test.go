package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Karielka/academics-sync/models"
	"github.com/Karielka/academics-sync/records"
)

func TestSyncComputesAverageGPA(t *testing.T) {
	normalized, summary := openStores(t)
	load(t, normalized, quiet())

	rep, err := NewSynchronizer(normalized, summary, records.Permissive, quiet()).Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Read != 3 || rep.Transferred != 3 {
		t.Fatalf("report = %+v, want 3 read and transferred", rep)
	}
	// Эмми: единственная оценка 45 не попадает ни в одну полосу шкалы.
	if rep.Excluded != 1 || rep.UncoveredMarks != 1 {
		t.Fatalf("excluded %d uncovered %d, want 1/1", rep.Excluded, rep.UncoveredMarks)
	}

	want := map[int64]float64{1: 3.5, 2: 3.0, 3: 3.0}
	var rows []models.StudentAcademic
	if err := summary.Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != len(want) {
		t.Fatalf("summary rows = %d, want %d", len(rows), len(want))
	}
	for _, r := range rows {
		if r.GPA != want[r.ID] {
			t.Errorf("student %d gpa = %v, want %v", r.ID, r.GPA, want[r.ID])
		}
	}

	ada := rows[0]
	if ada.Department != "Mathematics" || ada.Email != "ada@uni.edu" || ada.FirstName != "Ada" {
		t.Fatalf("denormalized row = %+v", ada)
	}
	if !ada.JoiningDate.Equal(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("joining date = %v", ada.JoiningDate)
	}
}

func TestSyncFirstWriteWins(t *testing.T) {
	normalized, summary := openStores(t)
	load(t, normalized, quiet())
	ctx := context.Background()
	s := NewSynchronizer(normalized, summary, records.Permissive, quiet())

	if _, err := s.Sync(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Входные данные GPA изменились между прогонами.
	if err := normalized.Model(&models.Mark{}).Where("student_id = ?", 1).Update("score", 95).Error; err != nil {
		t.Fatalf("update marks: %v", err)
	}
	rows, err := s.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if rows[0].ID != 1 || rows[0].GPA != 4.0 {
		t.Fatalf("source now reads %+v, want gpa 4.0", rows[0])
	}

	rep, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if rep.Transferred != 0 || rep.AlreadyPresent != 3 {
		t.Fatalf("second sync report = %+v", rep)
	}

	var ada models.StudentAcademic
	if err := summary.First(&ada, 1).Error; err != nil {
		t.Fatalf("summary 1: %v", err)
	}
	if ada.GPA != 3.5 {
		t.Fatalf("gpa = %v, first written 3.5 must stay", ada.GPA)
	}
}

// Сводка перепроверяется: данным нормализованного хранилища не доверяем.
func TestSyncRevalidatesRows(t *testing.T) {
	normalized, summary := openStores(t)
	load(t, normalized, quiet())

	var dept models.Department
	if err := normalized.Where("name = ?", "Mathematics").Take(&dept).Error; err != nil {
		t.Fatalf("department: %v", err)
	}
	var subj models.Subject
	if err := normalized.Where("name = ? AND department_id = ?", "Math", dept.ID).Take(&subj).Error; err != nil {
		t.Fatalf("subject: %v", err)
	}
	bad := models.Student{
		ID: 99, FirstName: "Broken", LastName: "Row", Email: "not-an-email",
		DepartmentID: dept.ID, JoiningDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := normalized.Omit("Department").Create(&bad).Error; err != nil {
		t.Fatalf("insert bad student: %v", err)
	}
	if err := normalized.Omit("Student", "Subject").Create(&models.Mark{StudentID: 99, SubjectID: subj.ID, Score: 91}).Error; err != nil {
		t.Fatalf("insert mark: %v", err)
	}

	t.Run("strict", func(t *testing.T) {
		_, err := NewSynchronizer(normalized, summary, records.Strict, quiet()).Sync(context.Background())
		var verr *records.ValidationError
		if !errors.As(err, &verr) || verr.Field != "email" {
			t.Fatalf("err = %v, want email ValidationError", err)
		}
	})

	t.Run("permissive", func(t *testing.T) {
		rep, err := NewSynchronizer(normalized, summary, records.Permissive, quiet()).Sync(context.Background())
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if len(rep.Rejected) != 1 || rep.Rejected[0].Value != "not-an-email" {
			t.Fatalf("rejected = %+v", rep.Rejected)
		}
		if n := count(t, summary, &models.StudentAcademic{}); n != 3 {
			t.Fatalf("summary rows = %d, want 3", n)
		}
	})
}

func TestSyncEmptySource(t *testing.T) {
	normalized, summary := openStores(t)
	rep, err := NewSynchronizer(normalized, summary, records.Permissive, quiet()).Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Read != 0 || rep.Transferred != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestValidateSummary(t *testing.T) {
	s := NewSynchronizer(nil, nil, records.Permissive, quiet())
	ok := models.StudentAcademic{
		ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@uni.edu",
		Department: "Mathematics", JoiningDate: time.Now(), GPA: 4,
	}
	if err := s.Validate(ok); err != nil {
		t.Fatalf("valid row rejected: %v", err)
	}

	cases := map[string]func(*models.StudentAcademic){
		"gpa":          func(r *models.StudentAcademic) { r.GPA = 4.01 },
		"email":        func(r *models.StudentAcademic) { r.Email = "ada@uni" },
		"joining_date": func(r *models.StudentAcademic) { r.JoiningDate = time.Time{} },
		"department":   func(r *models.StudentAcademic) { r.Department = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			row := ok
			mutate(&row)
			var verr *records.ValidationError
			if err := s.Validate(row); !errors.As(err, &verr) || verr.Field != field {
				t.Fatalf("err = %v, want ValidationError on %s", err, field)
			}
		})
	}
}

func TestRoundGPA(t *testing.T) {
	for in, want := range map[float64]float64{3.333333: 3.33, 2.666666: 2.67, 3.5: 3.5, 0: 0} {
		if got := RoundGPA(in); got != want {
			t.Errorf("RoundGPA(%v) = %v, want %v", in, got, want)
		}
	}
}
