package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ActivityFileName: имя дневного журнала: etl_log_2006-01-02.txt
func ActivityFileName(day time.Time) string {
	return fmt.Sprintf("etl_log_%s.txt", day.Format("2006-01-02"))
}

// OpenActivityFile открывает (или создаёт) журнал за день только на дозапись.
func OpenActivityFile(dir string, day time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, ActivityFileName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return f, nil
}

// New собирает логгер: консоль (stderr) + файл журнала.
func New(level string, console io.Writer, activity io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, NoColor: true, TimeFormat: time.DateTime}}
	if activity != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: activity, NoColor: true, TimeFormat: time.DateTime})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Setup: то, что делает main: журнал в LOG_DIR, глобальный log.Logger, run id в каждой строке.
func Setup(dir, level, runID string) (zerolog.Logger, io.Closer, error) {
	f, err := OpenActivityFile(dir, time.Now())
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	l := New(level, os.Stderr, f).With().Str("run_id", runID).Logger()
	log.Logger = l
	return l, f, nil
}
