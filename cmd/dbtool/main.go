package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/types"
	"github.com/jacksonlee411/orgchart/modules/orgchart/infrastructure/persistence"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS orgchart;

CREATE TABLE IF NOT EXISTS orgchart.departments (
  department_id   integer PRIMARY KEY,
  department_name text    NOT NULL
);

CREATE TABLE IF NOT EXISTS orgchart.mailboxes (
  source_row                 integer NOT NULL,
  mailbox_identifier         text    PRIMARY KEY,
  manager_mailbox_identifier text    NULL,
  user_full_name             text    NOT NULL,
  department_id              integer NOT NULL,
  job_title                  text    NOT NULL
);
`

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <schema|import|smoke> [args]")
	}

	switch os.Args[1] {
	case "schema":
		schemaCmd(os.Args[2:])
	case "import":
		importCmd(os.Args[2:])
	case "smoke":
		smokeCmd(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func parseURL(name string, args []string, extra func(*pflag.FlagSet)) string {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", os.Getenv("DATABASE_URL"), "postgres connection string")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	return url
}

func connect(ctx context.Context, url string) *pgx.Conn {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	return conn
}

func schemaCmd(args []string) {
	url := parseURL("schema", args, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		if msg, ok := pgErrorMessage(err); ok {
			fatalf("schema: %s", msg)
		}
		fatal(err)
	}
	fmt.Println("[schema] OK")
}

func importCmd(args []string) {
	var dataDir string
	var truncate bool
	url := parseURL("import", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&dataDir, "data-dir", "./data", "directory holding Mailboxes.csv and Departments.csv")
		fs.BoolVar(&truncate, "truncate", false, "empty both tables before importing")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src := persistence.NewCSVSource(os.DirFS(dataDir))
	mailboxes, err := src.ListMailboxes(ctx)
	if err != nil {
		fatal(err)
	}
	departments, err := src.ListDepartments(ctx)
	if err != nil {
		fatal(err)
	}

	conn := connect(ctx, url)
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if truncate {
		if _, err := tx.Exec(ctx, `TRUNCATE orgchart.mailboxes, orgchart.departments;`); err != nil {
			fatal(err)
		}
	}

	nDept, err := tx.CopyFrom(ctx, pgx.Identifier{"orgchart", "departments"},
		[]string{"department_id", "department_name"},
		pgx.CopyFromRows(departmentRows(departments)))
	if err != nil {
		fatalCopy("departments", err)
	}
	nMail, err := tx.CopyFrom(ctx, pgx.Identifier{"orgchart", "mailboxes"},
		[]string{"source_row", "mailbox_identifier", "manager_mailbox_identifier", "user_full_name", "department_id", "job_title"},
		pgx.CopyFromRows(mailboxRows(mailboxes)))
	if err != nil {
		fatalCopy("mailboxes", err)
	}
	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}
	fmt.Printf("[import] OK departments=%d mailboxes=%d\n", nDept, nMail)
}

func smokeCmd(args []string) {
	url := parseURL("smoke", args, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Load reads both tables concurrently; pgx.Conn is single-use.
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer pool.Close()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	store := hierarchy.NewStore()
	report, err := services.NewLoader(persistence.NewPGSource(pool), logger).Load(ctx, store)
	if err != nil {
		fatal(err)
	}
	if report.Loaded == 0 {
		fatalf("smoke: no employees loaded")
	}
	fmt.Printf("[smoke] OK loaded=%d skipped=%d roots=%d\n", report.Loaded, len(report.Skipped), len(store.Roots()))
}

// departmentRows keeps the first row per department id.
func departmentRows(departments []types.Department) [][]any {
	seen := make(map[int]struct{}, len(departments))
	out := make([][]any, 0, len(departments))
	for _, d := range departments {
		if _, ok := seen[d.DepartmentID]; ok {
			continue
		}
		seen[d.DepartmentID] = struct{}{}
		out = append(out, []any{d.DepartmentID, d.DepartmentName})
	}
	return out
}

// mailboxRows numbers rows in file order and stores an empty manager as NULL.
func mailboxRows(mailboxes []types.Mailbox) [][]any {
	out := make([][]any, 0, len(mailboxes))
	for i, m := range mailboxes {
		var manager any
		if m.ManagerMailboxIdentifier != "" {
			manager = m.ManagerMailboxIdentifier
		}
		out = append(out, []any{i + 1, m.MailboxIdentifier, manager, m.UserFullName, m.DepartmentID, m.JobTitle})
	}
	return out
}

func fatalCopy(table string, err error) {
	if msg, ok := pgErrorMessage(err); ok {
		fatalf("import %s: %s", table, msg)
	}
	fatal(err)
}

func pgErrorMessage(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code + ": " + pgErr.Message, true
	}
	return "", false
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
