// Package store is the optional, durable home for per-run diagnostics
// (spec §7's compute_issue/issue_list, given a lifetime beyond one
// process — never a substitute for, and never required by, the live
// in-memory internal/diagnostics.IssueList the engine always maintains).
// Model persistence itself stays a Non-goal; only the record of what went
// wrong during a run is stored here.
package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shamaton/msgpack/v2"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"framexpr/internal/diagnostics"
)

// Store wraps a *sql.DB whose driver was selected from a DSN's scheme.
type Store struct {
	db     *sql.DB
	driver string
}

// driverForScheme maps a DSN's leading scheme to the registered
// database/sql driver name and the connection string that driver
// expects (some drivers want the scheme stripped, others want it kept).
func driverForScheme(dsn string) (driverName, connDSN string, err error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		// A bare path (no scheme) is the common case for local runs:
		// the pure-Go sqlite driver opens it directly.
		return "sqlite", dsn, nil
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "file":
		return "sqlite", rest, nil
	case "sqlite3-cgo":
		// The cgo-accelerated alternate, opted into explicitly since it
		// requires a C toolchain at build time.
		return "sqlite3", rest, nil
	case "mysql":
		return "mysql", rest, nil
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "sqlserver", "mssql":
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("store: unrecognized DSN scheme %q", scheme)
	}
}

// schemaByDriver holds the per-dialect DDL for the two tables this package
// owns. The dialects diverge in integer/boolean/text/blob spelling and in
// how SQL Server guards table creation, so each is
// spelled out in full rather than templated — easier to read than a
// lowest-common-denominator SQL subset would be.
var schemaByDriver = map[string][2]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY, started_at INTEGER NOT NULL,
			completed_at INTEGER, cycles_run INTEGER NOT NULL,
			halted INTEGER NOT NULL, issue_count INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id TEXT PRIMARY KEY, run_id TEXT NOT NULL, cycle INTEGER NOT NULL,
			aspect_id TEXT NOT NULL, aspect_name TEXT NOT NULL, kind TEXT NOT NULL,
			message TEXT NOT NULL, value TEXT NOT NULL, call_stack BLOB)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY, started_at INTEGER NOT NULL,
			completed_at INTEGER, cycles_run INTEGER NOT NULL,
			halted INTEGER NOT NULL, issue_count INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id TEXT PRIMARY KEY, run_id TEXT NOT NULL, cycle INTEGER NOT NULL,
			aspect_id TEXT NOT NULL, aspect_name TEXT NOT NULL, kind TEXT NOT NULL,
			message TEXT NOT NULL, value TEXT NOT NULL, call_stack BLOB)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(64) PRIMARY KEY, started_at BIGINT NOT NULL,
			completed_at BIGINT, cycles_run INT NOT NULL,
			halted TINYINT NOT NULL, issue_count INT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id VARCHAR(64) PRIMARY KEY, run_id VARCHAR(64) NOT NULL, cycle INT NOT NULL,
			aspect_id VARCHAR(128) NOT NULL, aspect_name VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL, message TEXT NOT NULL, value VARCHAR(64) NOT NULL,
			call_stack BLOB)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY, started_at BIGINT NOT NULL,
			completed_at BIGINT, cycles_run INTEGER NOT NULL,
			halted BOOLEAN NOT NULL, issue_count INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id TEXT PRIMARY KEY, run_id TEXT NOT NULL, cycle INTEGER NOT NULL,
			aspect_id TEXT NOT NULL, aspect_name TEXT NOT NULL, kind TEXT NOT NULL,
			message TEXT NOT NULL, value TEXT NOT NULL, call_stack BYTEA)`,
	},
	"sqlserver": {
		`IF NOT EXISTS (SELECT * FROM sysobjects WHERE name='runs' AND xtype='U')
			CREATE TABLE runs (
			id VARCHAR(64) PRIMARY KEY, started_at BIGINT NOT NULL,
			completed_at BIGINT, cycles_run INT NOT NULL,
			halted BIT NOT NULL, issue_count INT NOT NULL)`,
		`IF NOT EXISTS (SELECT * FROM sysobjects WHERE name='issues' AND xtype='U')
			CREATE TABLE issues (
			id VARCHAR(64) PRIMARY KEY, run_id VARCHAR(64) NOT NULL, cycle INT NOT NULL,
			aspect_id VARCHAR(128) NOT NULL, aspect_name VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL, message TEXT NOT NULL, value VARCHAR(64) NOT NULL,
			call_stack VARBINARY(MAX))`,
	},
}

// Open connects to the DSN, pings to fail fast, and ensures the schema.
func Open(dsn string) (*Store, error) {
	driverName, connDSN, err := driverForScheme(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, connDSN)
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: ping")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, driver: driverName}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	ddl, ok := schemaByDriver[s.driver]
	if !ok {
		return fmt.Errorf("store: no schema registered for driver %q", s.driver)
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "store: ensure schema (%s)", s.driver)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// RunRecord is one persisted solve pass, keyed by a caller-supplied run ID
// (the `framexpr run` command mints one via google/uuid per run).
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	CyclesRun   int
	Halted      bool
	IssueCount  int
}

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(r RunRecord) error {
	var completed sql.NullInt64
	if r.CompletedAt != nil {
		completed = sql.NullInt64{Int64: r.CompletedAt.Unix(), Valid: true}
	}
	_, err := s.db.Exec(upsertSQL(s.driver, "runs", []string{"id"},
		[]string{"started_at", "completed_at", "cycles_run", "halted", "issue_count"}),
		r.ID, r.StartedAt.Unix(), completed, r.CyclesRun, r.Halted, r.IssueCount)
	if err != nil {
		return errors.Wrap(err, "store: save run")
	}
	return nil
}

// SaveIssue persists one diagnostics.Issue under runID, encoding its call
// stack with msgpack (the compact binary form pack sibling
// timewinder-dev-timewinder uses for its own state blobs).
func (s *Store) SaveIssue(runID, issueID string, issue *diagnostics.Issue) error {
	var buf bytes.Buffer
	if err := msgpack.MarshalWrite(&buf, issue.CallStack); err != nil {
		return errors.Wrap(err, "store: encode call stack")
	}
	_, err := s.db.Exec(
		fmt.Sprintf("INSERT INTO issues (id, run_id, cycle, aspect_id, aspect_name, kind, message, value, call_stack) VALUES (%s)",
			placeholders(s.driver, 9)),
		issueID, runID, issue.Cycle, issue.AspectID, issue.AspectName,
		string(issue.Kind), issue.Message, fmt.Sprintf("%v", float64(issue.Value)), buf.Bytes(),
	)
	if err != nil {
		return errors.Wrap(err, "store: save issue")
	}
	return nil
}

// LoadIssues returns every issue persisted under runID, oldest first.
func (s *Store) LoadIssues(runID string) ([]*diagnostics.Issue, error) {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT cycle, aspect_id, aspect_name, kind, message, call_stack FROM issues WHERE run_id = %s ORDER BY cycle", placeholder(s.driver, 1)),
		runID)
	if err != nil {
		return nil, errors.Wrap(err, "store: load issues")
	}
	defer rows.Close()

	var out []*diagnostics.Issue
	for rows.Next() {
		var (
			cycle      int
			aspectID   string
			aspectName string
			kind       string
			msg        string
			stackBlob  []byte
		)
		if err := rows.Scan(&cycle, &aspectID, &aspectName, &kind, &msg, &stackBlob); err != nil {
			return nil, errors.Wrap(err, "store: scan issue")
		}
		var stack []diagnostics.Frame
		if len(stackBlob) > 0 {
			if err := msgpack.UnmarshalRead(bytes.NewReader(stackBlob), &stack); err != nil {
				return nil, errors.Wrap(err, "store: decode call stack")
			}
		}
		out = append(out, &diagnostics.Issue{
			Kind:       diagnostics.Kind(kind),
			Message:    msg,
			AspectID:   aspectID,
			AspectName: aspectName,
			Cycle:      cycle,
			CallStack:  stack,
		})
	}
	return out, rows.Err()
}

// placeholder returns the driver's parameter placeholder for position n
// (1-based): "?" for mysql/sqlite, "$n" for postgres, "@pN" for sqlserver.
func placeholder(driver string, n int) string {
	switch driver {
	case "postgres":
		return fmt.Sprintf("$%d", n)
	case "sqlserver":
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// placeholders joins n sequential placeholders with ", ".
func placeholders(driver string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = placeholder(driver, i+1)
	}
	return strings.Join(parts, ", ")
}

// upsertSQL builds a driver-appropriate "insert or replace" statement over
// keyCols (the conflict target) and setCols (the remaining columns).
func upsertSQL(driver, table string, keyCols, setCols []string) string {
	allCols := append(append([]string(nil), keyCols...), setCols...)
	placeholderList := placeholders(driver, len(allCols))
	cols := strings.Join(allCols, ", ")

	switch driver {
	case "sqlite", "sqlite3":
		return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", table, cols, placeholderList)
	case "mysql":
		assignments := make([]string, len(setCols))
		for i, c := range setCols {
			assignments[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, cols, placeholderList, strings.Join(assignments, ", "))
	case "postgres":
		assignments := make([]string, len(setCols))
		for i, c := range setCols {
			assignments[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
			table, cols, placeholderList, strings.Join(keyCols, ", "), strings.Join(assignments, ", "))
	default: // sqlserver: no portable single-statement upsert, so a plain insert
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, placeholderList)
	}
}
