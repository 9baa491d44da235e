package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/ports"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGSource reads the mailbox and department tables in one read-only
// transaction each.
type PGSource struct {
	pool pgBeginner
}

func NewPGSource(pool pgBeginner) ports.SourceStore {
	return &PGSource{pool: pool}
}

func (s *PGSource) ListMailboxes(ctx context.Context) ([]types.Mailbox, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT mailbox_identifier, manager_mailbox_identifier, user_full_name, department_id, job_title
FROM orgchart.mailboxes
ORDER BY source_row ASC, mailbox_identifier ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Mailbox
	for rows.Next() {
		var m types.Mailbox
		var manager *string
		if err := rows.Scan(&m.MailboxIdentifier, &manager, &m.UserFullName, &m.DepartmentID, &m.JobTitle); err != nil {
			return nil, err
		}
		if manager != nil {
			m.ManagerMailboxIdentifier = *manager
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGSource) ListDepartments(ctx context.Context) ([]types.Department, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT department_id, department_name
FROM orgchart.departments
ORDER BY department_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Department
	for rows.Next() {
		var d types.Department
		if err := rows.Scan(&d.DepartmentID, &d.DepartmentName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
