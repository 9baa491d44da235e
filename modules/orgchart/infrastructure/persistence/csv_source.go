package persistence

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/ports"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/types"
)

const (
	MailboxesFile   = "Mailboxes.csv"
	DepartmentsFile = "Departments.csv"
)

var ErrMissingColumn = errors.New("csv_missing_column")

// CSVSource reads Mailboxes.csv and Departments.csv from a directory.
type CSVSource struct {
	fsys fs.FS
}

func NewCSVSource(fsys fs.FS) ports.SourceStore {
	return &CSVSource{fsys: fsys}
}

func (s *CSVSource) ListMailboxes(ctx context.Context) ([]types.Mailbox, error) {
	var out []types.Mailbox
	err := s.readTable(ctx, MailboxesFile, []string{"mailbox_identifier", "user_full_name", "department_id", "job_title"}, func(row csvRow) error {
		deptID, err := parseDepartmentID(row.get("department_id"))
		if err != nil {
			return err
		}
		out = append(out, types.Mailbox{
			MailboxIdentifier:        row.get("mailbox_identifier"),
			ManagerMailboxIdentifier: row.get("manager_mailbox_identifier"),
			UserFullName:             row.get("user_full_name"),
			DepartmentID:             deptID,
			JobTitle:                 row.get("job_title"),
		})
		return nil
	})
	return out, err
}

func (s *CSVSource) ListDepartments(ctx context.Context) ([]types.Department, error) {
	var out []types.Department
	err := s.readTable(ctx, DepartmentsFile, []string{"department_id", "department_name"}, func(row csvRow) error {
		deptID, err := parseDepartmentID(row.get("department_id"))
		if err != nil {
			return err
		}
		out = append(out, types.Department{DepartmentID: deptID, DepartmentName: row.get("department_name")})
		return nil
	})
	return out, err
}

type csvRow struct {
	cols   map[string]int
	fields []string
}

func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (s *CSVSource) readTable(ctx context.Context, name string, required []string, each func(csvRow) error) error {
	f, err := s.fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return fmt.Errorf("%s: %w: %s", name, ErrMissingColumn, c)
		}
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := each(csvRow{cols: cols, fields: fields}); err != nil {
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
}

// parseDepartmentID accepts "7" as well as the "7.0" spreadsheet exports
// produce for numeric columns.
func parseDepartmentID(raw string) (int, error) {
	if id, err := strconv.Atoi(raw); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid department_id %q", raw)
	}
	return int(f), nil
}
