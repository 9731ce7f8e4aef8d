package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Karielka/academics-sync/internal/config"
	intdb "github.com/Karielka/academics-sync/internal/db"
	"github.com/Karielka/academics-sync/internal/logger"
	"github.com/Karielka/academics-sync/models"
	"github.com/Karielka/academics-sync/records"
	"github.com/Karielka/academics-sync/services"
)

// Коды выхода: по ним вызывающий скрипт отличает причину падения.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitMalformed    = 3
	exitValidation   = 4
	exitConnectivity = 5
)

const usage = `usage: academics-sync <command> [flags]

commands:
  migrate   create tables in both stores
  load      load students and grades from flat files into MySQL
  sync      copy per-student summaries from MySQL into Postgres
  run       load, then sync
  purge     delete all rows from both stores
`

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "migrate", "load", "sync", "run", "purge":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "", "validation mode: strict or permissive (default strict for load, permissive for sync)")
	studentsPath := fs.String("students", "", "students file (overrides STUDENTS_FILE)")
	gradesPath := fs.String("grades", "", "grades file (overrides GRADES_FILE)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *mode != "" && *mode != "strict" && *mode != "permissive" {
		fmt.Fprintf(stderr, "unknown mode %q\n", *mode)
		return exitUsage
	}

	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	// Логи
	l, closer, err := logger.Setup(rt.LogDir, rt.LogLevel, uuid.NewString())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{log: l, metrics: services.NewMetrics()}
	a.opts = services.Options{Log: &a.log, Metrics: a.metrics}

	switch cmd {
	case "migrate":
		err = a.migrate(ctx)
	case "load":
		err = a.withFiles(*studentsPath, *gradesPath, func(f config.Files) error {
			return a.load(ctx, f, pickMode(*mode, records.Strict))
		})
	case "sync":
		err = a.sync(ctx, pickMode(*mode, records.Permissive))
	case "run":
		err = a.withFiles(*studentsPath, *gradesPath, func(f config.Files) error {
			if err := a.load(ctx, f, pickMode(*mode, records.Strict)); err != nil {
				return err
			}
			return a.sync(ctx, pickMode(*mode, records.Permissive))
		})
	case "purge":
		err = a.purge(ctx)
	}

	if rt.MetricsTextfile != "" {
		if werr := a.metrics.WriteTextfile(rt.MetricsTextfile); werr != nil {
			l.Warn().Err(werr).Str("path", rt.MetricsTextfile).Msg("write metrics textfile")
		}
	}

	if err != nil {
		l.Error().Err(err).Str("command", cmd).Msg("failed")
		return exitCode(err)
	}
	l.Info().Str("command", cmd).Msg("done")
	return exitOK
}

func exitCode(err error) int {
	var (
		merr *records.MalformedInputError
		verr *records.ValidationError
		cerr *intdb.ConnectivityError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cerr):
		return exitConnectivity
	case errors.As(err, &merr):
		return exitMalformed
	case errors.As(err, &verr):
		return exitValidation
	}
	return exitFailure
}

func pickMode(flagValue string, def records.Mode) records.Mode {
	switch flagValue {
	case "strict":
		return records.Strict
	case "permissive":
		return records.Permissive
	}
	return def
}

type app struct {
	log     zerolog.Logger
	metrics *services.Metrics
	opts    services.Options
}

func (a *app) withFiles(students, grades string, fn func(config.Files) error) error {
	f, err := config.LoadFiles()
	if err != nil {
		return err
	}
	if students != "" {
		f.Students = students
	}
	if grades != "" {
		f.Grades = grades
	}
	return fn(f)
}

func (a *app) connectNormalized(ctx context.Context) (*gorm.DB, error) {
	c, err := config.LoadMySQL()
	if err != nil {
		return nil, err
	}
	return intdb.ConnectNormalized(ctx, c, a.log)
}

func (a *app) connectSummary(ctx context.Context) (*gorm.DB, error) {
	c, err := config.LoadPostgres()
	if err != nil {
		return nil, err
	}
	return intdb.ConnectSummary(ctx, c, a.log)
}

func (a *app) migrate(ctx context.Context) error {
	normalized, err := a.connectNormalized(ctx)
	if err != nil {
		return err
	}
	defer intdb.Close(normalized)
	if err := models.AutoMigrateNormalized(normalized); err != nil {
		return fmt.Errorf("migrate normalized store: %w", err)
	}

	summary, err := a.connectSummary(ctx)
	if err != nil {
		return err
	}
	defer intdb.Close(summary)
	if err := models.AutoMigrateSummary(summary); err != nil {
		return fmt.Errorf("migrate summary store: %w", err)
	}
	return nil
}

func (a *app) load(ctx context.Context, f config.Files, mode records.Mode) error {
	students, err := records.ParseFile(f.Students)
	if err != nil {
		return err
	}
	grades, err := records.ParseFile(f.Grades)
	if err != nil {
		return err
	}

	normalized, err := a.connectNormalized(ctx)
	if err != nil {
		return err
	}
	defer intdb.Close(normalized)

	_, err = services.NewLoader(normalized, mode, a.opts).Load(ctx, students, grades)
	return err
}

func (a *app) sync(ctx context.Context, mode records.Mode) error {
	normalized, err := a.connectNormalized(ctx)
	if err != nil {
		return err
	}
	defer intdb.Close(normalized)

	summary, err := a.connectSummary(ctx)
	if err != nil {
		return err
	}
	defer intdb.Close(summary)

	_, err = services.NewSynchronizer(normalized, summary, mode, a.opts).Sync(ctx)
	return err
}

// purge: каждое хранилище чистится, даже если второе недоступно.
func (a *app) purge(ctx context.Context) error {
	normalized := services.Store{Name: intdb.StoreNormalized}
	normalized.DB, normalized.ConnErr = a.connectNormalized(ctx)
	defer intdb.Close(normalized.DB)

	summary := services.Store{Name: intdb.StoreSummary}
	summary.DB, summary.ConnErr = a.connectSummary(ctx)
	defer intdb.Close(summary.DB)

	rep := services.NewPurger(a.opts).Purge(ctx, normalized, summary)
	for _, t := range rep.Tables {
		ev := a.log.Info()
		if t.Err != nil {
			ev = a.log.Error().Err(t.Err)
		}
		ev.Str("store", t.Store).Str("table", t.Table).Int64("deleted", t.Deleted).Msg("purge result")
	}
	return rep.Err()
}
