package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// MySQL: нормализованное хранилище (departments, subjects, students, marks, grade).
type MySQL struct {
	Host     string `env:"MYSQL_HOST,required"`
	Port     string `env:"MYSQL_PORT" envDefault:"3306"`
	User     string `env:"MYSQL_USER,required"`
	Password string `env:"MYSQL_PASSWORD,required"`
	Database string `env:"MYSQL_DATABASE,required"`
}

// Postgres: хранилище сводок (student_academics).
type Postgres struct {
	Host     string `env:"PG_HOST,required"`
	Port     string `env:"PG_PORT,required"`
	User     string `env:"PG_USER,required"`
	Password string `env:"PG_PASSWORD,required"`
	Database string `env:"PG_DATABASE,required"`
	SSLMode  string `env:"PG_SSLMODE" envDefault:"disable"`
}

type Files struct {
	Students string `env:"STUDENTS_FILE" envDefault:"data/students.txt"`
	Grades   string `env:"GRADES_FILE" envDefault:"data/grade.txt"`
}

type Runtime struct {
	LogDir          string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
}

// LoadDotenv подхватывает .env, если он есть. Отсутствие файла не ошибка.
func LoadDotenv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return rt, fmt.Errorf("runtime config: %w", err)
	}
	return rt, nil
}

func LoadFiles() (Files, error) {
	var f Files
	if err := env.Parse(&f); err != nil {
		return f, fmt.Errorf("files config: %w", err)
	}
	return f, nil
}

// LoadMySQL падает сразу, если не задан хотя бы один обязательный параметр.
func LoadMySQL() (MySQL, error) {
	var c MySQL
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("mysql config: %w", err)
	}
	return c, nil
}

func LoadPostgres() (Postgres, error) {
	var c Postgres
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("postgres config: %w", err)
	}
	return c, nil
}
