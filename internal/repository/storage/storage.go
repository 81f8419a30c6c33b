package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// DB is the relational store shared by the tile and snapshot repositories.
type DB struct {
	*sql.DB
	dialect Dialect
	logger  logger.Logger
}

// Open connects to the configured driver, bounds the connection pool and applies
// pending migrations. Callers beyond MaxOpenConnections queue inside database/sql.
func Open(cfg config.DB, l logger.Logger) (*DB, error) {
	dialect := Dialect(cfg.Driver)
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := sql.Open(string(dialect), cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	d := &DB{
		DB:      db,
		dialect: dialect,
		logger:  l,
	}

	err = d.runMigrations()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	l.Info("relational store initialized", "driver", cfg.Driver, "max_open_connections", cfg.MaxOpenConnections)

	return d, nil
}

func (d *DB) runMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{l: d.logger})

	err := goose.SetDialect(string(d.dialect))
	if err != nil {
		return err
	}

	err = goose.Up(d.DB, "migrations")
	if err != nil {
		return err
	}

	return nil
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (d *DB) Rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Placeholders returns "(?, ?, ...)" with n markers.
func Placeholders(n int) string {
	if n <= 0 {
		return "()"
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func (d *DB) HealthCheck(ctx context.Context) error {
	return d.PingContext(ctx)
}

// ReportPoolStats publishes the pool counters to prometheus.
func (d *DB) ReportPoolStats() {
	stats := d.Stats()
	metrics.DBPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	metrics.DBPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.DBPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	metrics.DBPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	metrics.DBPoolStats.WithLabelValues("wait_seconds").Set(stats.WaitDuration.Seconds())
}

type gooseLogger struct {
	l logger.Logger
}

func (g *gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g *gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
