package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record: одна строка файла: имя поля из заголовка -> значение.
// Если в строке меньше полей, чем в заголовке, лишних ключей в Fields нет.
type Record struct {
	Line   int
	Fields map[string]string
}

// Get возвращает значение поля и признак того, что оно вообще было в строке.
func (r Record) Get(field string) (string, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

func (r Record) Value(field string) string { return r.Fields[field] }

// Parse читает заголовок и строки данных. Пустые строки пропускаются и не считаются записями.
func Parse(source string, in io.Reader) ([]Record, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var headers []string
	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &MalformedInputError{Source: source, Line: line, Reason: err.Error()}
		}
		line, _ := cr.FieldPos(0)

		trimAll(row)
		if blank(row) {
			continue
		}

		if headers == nil {
			headers = append([]string(nil), row...)
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				fields[h] = row[i]
			}
		}
		out = append(out, Record{Line: line, Fields: fields})
	}

	if headers == nil {
		return nil, &MalformedInputError{Source: source, Reason: "header line is missing"}
	}
	return out, nil
}

// ParseFile читает файл с диска. Отсутствующий файл считается фатальной ошибкой.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(path, f)
}

func trimAll(row []string) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
