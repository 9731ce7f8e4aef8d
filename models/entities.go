package models

import (
	"time"

	"gorm.io/gorm"
)

// Нормализованное хранилище (MySQL)

type Department struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:191;uniqueIndex;not null"`
}

func (Department) TableName() string { return "departments" }

// Subject: естественный ключ: (name, department_id).
type Subject struct {
	ID           uint       `gorm:"primaryKey"`
	Name         string     `gorm:"size:191;not null;uniqueIndex:idx_subject_name_department"`
	DepartmentID uint       `gorm:"not null;uniqueIndex:idx_subject_name_department"`
	Department   Department `gorm:"constraint:OnDelete:RESTRICT"`
}

func (Subject) TableName() string { return "subjects" }

// Student.ID приходит из файла, автоинкремента нет.
type Student struct {
	ID           int64      `gorm:"primaryKey;autoIncrement:false"`
	FirstName    string     `gorm:"size:100;not null"`
	LastName     string     `gorm:"size:100;not null"`
	Email        string     `gorm:"size:191;not null"`
	DepartmentID uint       `gorm:"not null;index"`
	Department   Department `gorm:"constraint:OnDelete:RESTRICT"`
	JoiningDate  time.Time  `gorm:"type:date;not null"`
}

func (Student) TableName() string { return "students" }

// Mark: одна строка на пару (student, subject).
type Mark struct {
	StudentID int64   `gorm:"primaryKey;autoIncrement:false"`
	SubjectID uint    `gorm:"primaryKey;autoIncrement:false"`
	Score     int     `gorm:"not null"`
	Student   Student `gorm:"constraint:OnDelete:RESTRICT"`
	Subject   Subject `gorm:"constraint:OnDelete:RESTRICT"`
}

func (Mark) TableName() string { return "marks" }

// Grade: диапазон [MinPercentage, MaxPercentage] включительно.
type Grade struct {
	ID            int64   `gorm:"primaryKey;autoIncrement:false"`
	Code          string  `gorm:"size:16;not null"`
	Label         string  `gorm:"size:100"`
	MinPercentage float64 `gorm:"not null"`
	MaxPercentage float64 `gorm:"not null"`
	GPA           float64 `gorm:"column:gpa;not null"`
}

func (Grade) TableName() string { return "grade" }

// Хранилище сводок (Postgres)

// StudentAcademic: денормализованная сводка; validate-теги перепроверяются перед записью.
type StudentAcademic struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" field:"student_id" validate:"gt=0"`
	FirstName   string    `gorm:"size:100;not null" field:"first_name" validate:"required"`
	LastName    string    `gorm:"size:100;not null" field:"last_name" validate:"required"`
	Email       string    `gorm:"size:191;not null" field:"email" validate:"required,emailshape"`
	Department  string    `gorm:"size:191;not null" field:"department" validate:"required"`
	JoiningDate time.Time `gorm:"type:date;not null" field:"joining_date"`
	GPA         float64   `gorm:"column:gpa;not null" field:"gpa" validate:"gte=0,lte=4"`
}

func (StudentAcademic) TableName() string { return "student_academics" }

// Порядок удаления: дети раньше родителей.
func NormalizedTables() []interface{} {
	return []interface{}{&Mark{}, &Student{}, &Subject{}, &Department{}, &Grade{}}
}

func SummaryTables() []interface{} {
	return []interface{}{&StudentAcademic{}}
}

// AutoMigrateNormalized выполняем из main (подкоманда migrate) и в тестах.
func AutoMigrateNormalized(db *gorm.DB) error {
	return db.AutoMigrate(&Department{}, &Subject{}, &Student{}, &Mark{}, &Grade{})
}

func AutoMigrateSummary(db *gorm.DB) error {
	return db.AutoMigrate(&StudentAcademic{})
}
