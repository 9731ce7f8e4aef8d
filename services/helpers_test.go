package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/models"
	"github.com/Karielka/academics-sync/records"
)

const studentsTxt = `student_id,first_name,last_name,email,department,joining_date,subject1,subject1_marks,subject2,subject2_marks,subject3,subject3_marks,subject4,subject4_marks,subject5,subject5_marks
1,Ada,Lovelace,ada@uni.edu,Mathematics,2022-09-01,Math,85,Logic,92,,,,,,
2,Alan,Turing,alan@uni.edu,Computer Science,2021-09-01,Math,70,Algorithms,95,,,,,,
3,Grace,Hopper,grace@uni.edu,Computer Science,2020-09-01,Compilers,88,,,,,,,,
4,Emmy,Noether,emmy@uni.edu,Mathematics,2019-09-01,Algebra,45,,,,,,,,
`

const gradesTxt = `grade_id,grade_code,grade_label,percentage_range,gpa_equivalent
1,A,Excellent,90-100,4.0
2,B,Good,80-89,3.0
3,C,Average,70-79,2.0
4,D,Pass,60-69,1.0
`

func quiet() Options {
	l := zerolog.Nop()
	return Options{Log: &l}
}

func openSQLite(t *testing.T, store string) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), store+".db")
	gdb, err := db.Open(context.Background(), store, sqlite.Open(path+"?_foreign_keys=1"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", store, err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// openStores: нормализованное хранилище и хранилище сводок, как в проде, но на SQLite.
func openStores(t *testing.T) (normalized, summary *gorm.DB) {
	t.Helper()
	normalized = openSQLite(t, db.StoreNormalized)
	if err := models.AutoMigrateNormalized(normalized); err != nil {
		t.Fatalf("migrate normalized: %v", err)
	}
	summary = openSQLite(t, db.StoreSummary)
	if err := models.AutoMigrateSummary(summary); err != nil {
		t.Fatalf("migrate summary: %v", err)
	}
	return normalized, summary
}

func parse(t *testing.T, text string) []records.Record {
	t.Helper()
	recs, err := records.Parse("test", strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return recs
}

func count(t *testing.T, gdb *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

type snapshot map[string]int64

func normalizedSnapshot(t *testing.T, gdb *gorm.DB) snapshot {
	t.Helper()
	s := snapshot{}
	for _, m := range models.NormalizedTables() {
		s[m.(tabler).TableName()] = count(t, gdb, m)
	}
	return s
}

func load(t *testing.T, gdb *gorm.DB, opts Options) LoadReport {
	t.Helper()
	rep, err := NewLoader(gdb, records.Strict, opts).Load(context.Background(), parse(t, studentsTxt), parse(t, gradesTxt))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return rep
}
