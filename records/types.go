package records

import "time"

const SubjectSlots = 5

// Student: проверенная строка students.txt.
type Student struct {
	Line        int
	ID          int64     `field:"student_id" validate:"gt=0"`
	FirstName   string    `field:"first_name" validate:"required,personname"`
	LastName    string    `field:"last_name" validate:"required,personname"`
	Email       string    `field:"email" validate:"required,emailshape"`
	Department  string    `field:"department" validate:"required"`
	JoiningDate time.Time `field:"joining_date"`
	Marks       []SubjectMark
}

type SubjectMark struct {
	Slot    int
	Subject string
	Score   int
}

// GradeBand: проверенная строка grade.txt.
type GradeBand struct {
	Line          int
	ID            int64   `field:"grade_id" validate:"gt=0"`
	Code          string  `field:"grade_code" validate:"required"`
	Label         string  `field:"grade_label"`
	MinPercentage float64 `field:"percentage_range" validate:"gte=0,lte=100"`
	MaxPercentage float64 `field:"percentage_range" validate:"gte=0,lte=100,gtefield=MinPercentage"`
	GPA           float64 `field:"gpa_equivalent" validate:"gte=0,lte=4"`
}

// Contains: попадает ли балл в диапазон включительно.
func (g GradeBand) Contains(score float64) bool {
	return score >= g.MinPercentage && score <= g.MaxPercentage
}
