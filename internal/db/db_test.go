package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/Karielka/academics-sync/internal/config"
)

func TestDSN(t *testing.T) {
	my := MySQLDSN(config.MySQL{Host: "h", Port: "3306", User: "u", Password: "p", Database: "d"})
	if my != "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=true&loc=UTC" {
		t.Fatalf("mysql dsn = %q", my)
	}
	pg := PostgresDSN(config.Postgres{Host: "h", Port: "5432", User: "u", Password: "p", Database: "d", SSLMode: "disable"})
	if pg != "host=h user=u password=p dbname=d port=5432 sslmode=disable" {
		t.Fatalf("postgres dsn = %q", pg)
	}
}

func TestConnectivityError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&ConnectivityError{Store: StoreSummary, Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("ConnectivityError must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "postgres store unreachable") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestConnectNormalizedUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ConnectNormalized(ctx, config.MySQL{
		Host: "127.0.0.1", Port: "1", User: "u", Password: "p", Database: "d",
	}, zerolog.Nop())
	var cerr *ConnectivityError
	if !errors.As(err, &cerr) || cerr.Store != StoreNormalized {
		t.Fatalf("err = %v, want ConnectivityError", err)
	}
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	sql := func() (string, int64) { return "INSERT INTO departments", 1 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrDuplicatedKey)
	if !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Fatalf("duplicate key should be logged at debug: %s", buf.String())
	}

	buf.Reset()
	l.Trace(context.Background(), time.Now(), sql, errors.New("syntax error"))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("query error should be logged at error: %s", buf.String())
	}

	buf.Reset()
	l.LogMode(glogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("syntax error"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode logged: %s", buf.String())
	}
}
