package ports

import (
	"context"

	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/types"
)

// SourceStore yields the raw tables the hierarchy is built from. Mailboxes
// are returned in source order; that order decides the add sequence.
type SourceStore interface {
	ListMailboxes(ctx context.Context) ([]types.Mailbox, error)
	ListDepartments(ctx context.Context) ([]types.Department, error)
}
