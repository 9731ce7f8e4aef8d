package records

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Mode выбирает поведение при ошибке проверки.
type Mode int

const (
	// Strict: первая ошибка прерывает весь прогон.
	Strict Mode = iota
	// Permissive: запись пропускается и логируется, пакет продолжается.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

var (
	nameShape  = regexp.MustCompile(`^[A-Za-z\s'-]+$`)
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	dateLayouts = []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", time.RFC3339}
)

func ValidName(s string) bool  { return nameShape.MatchString(s) }
func ValidEmail(s string) bool { return emailShape.MatchString(s) }

// ParseDate принимает календарную дату; время суток отбрасывается.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return ValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct проверяет произвольную структуру с тегами validate/field.
func (v *Validator) Struct(line int, s interface{}) error {
	return v.check(line, s, nil)
}

func (v *Validator) check(line int, s interface{}, raw *Record) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	value := fmt.Sprint(fe.Value())
	if raw != nil {
		value = raw.Value(fe.Field())
	}
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &ValidationError{Line: line, Field: fe.Field(), Value: value, Reason: reason}
}

// Student разбирает и проверяет одну строку студента вместе с оценками.
func (v *Validator) Student(r Record) (Student, error) {
	s := Student{
		Line:       r.Line,
		FirstName:  r.Value("first_name"),
		LastName:   r.Value("last_name"),
		Email:      r.Value("email"),
		Department: r.Value("department"),
	}

	rawID := r.Value("student_id")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return s, &ValidationError{Line: r.Line, Field: "student_id", Value: rawID, Reason: "not an integer"}
	}
	s.ID = id

	if err := v.check(r.Line, s, &r); err != nil {
		return s, err
	}

	rawDate := r.Value("joining_date")
	date, ok := ParseDate(rawDate)
	if !ok {
		return s, &ValidationError{Line: r.Line, Field: "joining_date", Value: rawDate, Reason: "not a calendar date"}
	}
	s.JoiningDate = date

	marks, err := subjectMarks(r)
	if err != nil {
		return s, err
	}
	s.Marks = marks
	return s, nil
}

// subjectMarks: слот без предмета или без оценки молча пропускается.
func subjectMarks(r Record) ([]SubjectMark, error) {
	var out []SubjectMark
	for i := 1; i <= SubjectSlots; i++ {
		subject := r.Value(fmt.Sprintf("subject%d", i))
		field := fmt.Sprintf("subject%d_marks", i)
		raw, ok := r.Get(field)
		if !ok || raw == "" {
			field = fmt.Sprintf("subject%d_mark", i)
			raw = r.Value(field)
		}
		if subject == "" || raw == "" {
			continue
		}
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &ValidationError{Line: r.Line, Field: field, Value: raw, Reason: "not an integer"}
		}
		if score < 0 || score > 100 {
			return nil, &ValidationError{Line: r.Line, Field: field, Value: raw, Reason: "out of range 0-100"}
		}
		out = append(out, SubjectMark{Slot: i, Subject: subject, Score: score})
	}
	return out, nil
}

// Grade разбирает строку шкалы оценок: percentage_range вида "min-max".
func (v *Validator) Grade(r Record) (GradeBand, error) {
	g := GradeBand{
		Line:  r.Line,
		Code:  r.Value("grade_code"),
		Label: r.Value("grade_label"),
	}

	rawID := r.Value("grade_id")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return g, &ValidationError{Line: r.Line, Field: "grade_id", Value: rawID, Reason: "not an integer"}
	}
	g.ID = id

	rawRange := r.Value("percentage_range")
	parts := strings.Split(rawRange, "-")
	if len(parts) != 2 {
		return g, &ValidationError{Line: r.Line, Field: "percentage_range", Value: rawRange, Reason: "expected min-max"}
	}
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLo != nil || errHi != nil {
		return g, &ValidationError{Line: r.Line, Field: "percentage_range", Value: rawRange, Reason: "bounds are not numbers"}
	}
	g.MinPercentage, g.MaxPercentage = lo, hi

	rawGPA := r.Value("gpa_equivalent")
	gpa, err := strconv.ParseFloat(rawGPA, 64)
	if err != nil {
		return g, &ValidationError{Line: r.Line, Field: "gpa_equivalent", Value: rawGPA, Reason: "not a number"}
	}
	g.GPA = gpa

	return g, v.check(r.Line, g, &r)
}

// Students проверяет весь пакет до записи в хранилище.
// Повтор student_id отклоняет пакет целиком в любом режиме.
func (v *Validator) Students(recs []Record, mode Mode, log zerolog.Logger) ([]Student, []*ValidationError, error) {
	// Ключ: разобранный id, "1" и "01" в хранилище одна строка.
	seen := make(map[int64]int, len(recs))
	for _, r := range recs {
		raw := r.Value("student_id")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue // ошибку формата сообщит Student
		}
		if first, dup := seen[id]; dup {
			return nil, nil, &ValidationError{
				Line: r.Line, Field: "student_id", Value: raw,
				Reason: fmt.Sprintf("duplicate in batch (first seen on line %d)", first),
			}
		}
		seen[id] = r.Line
	}

	out := make([]Student, 0, len(recs))
	var skipped []*ValidationError
	for _, r := range recs {
		s, err := v.Student(r)
		if err != nil {
			verr, fatal := handle(mode, err, log)
			if fatal != nil {
				return nil, skipped, fatal
			}
			skipped = append(skipped, verr)
			continue
		}
		out = append(out, s)
	}
	return out, skipped, nil
}

func (v *Validator) Grades(recs []Record, mode Mode, log zerolog.Logger) ([]GradeBand, []*ValidationError, error) {
	out := make([]GradeBand, 0, len(recs))
	var skipped []*ValidationError
	for _, r := range recs {
		g, err := v.Grade(r)
		if err != nil {
			verr, fatal := handle(mode, err, log)
			if fatal != nil {
				return nil, skipped, fatal
			}
			skipped = append(skipped, verr)
			continue
		}
		out = append(out, g)
	}
	return out, skipped, nil
}

// handle: в Strict возвращает ошибку как фатальную, в Permissive логирует и отдаёт её как пропуск.
func handle(mode Mode, err error, log zerolog.Logger) (*ValidationError, error) {
	var verr *ValidationError
	if !errors.As(err, &verr) || mode == Strict {
		return nil, err
	}
	log.Warn().Int("line", verr.Line).Str("field", verr.Field).Str("value", verr.Value).
		Str("reason", verr.Reason).Msg("record skipped")
	return verr, nil
}
