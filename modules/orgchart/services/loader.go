package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/ports"
	"github.com/jacksonlee411/orgchart/modules/orgchart/domain/types"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownDepartment = errors.New("unknown_department")

type SkippedRecord struct {
	MailboxIdentifier string `json:"mailbox_identifier"`
	Reason            string `json:"reason"`
	Err               error  `json:"-"`
}

type LoadReport struct {
	Loaded  int             `json:"loaded"`
	Passes  int             `json:"passes"`
	Skipped []SkippedRecord `json:"skipped"`
}

type Loader struct {
	source ports.SourceStore
	log    logrus.FieldLogger
}

func NewLoader(source ports.SourceStore, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{source: source, log: log}
}

// Load fetches both tables, joins them and adds every record to store.
// Records whose manager shows up later in the source are retried in further
// passes until a pass makes no progress.
func (l *Loader) Load(ctx context.Context, store *hierarchy.Store) (LoadReport, error) {
	var mailboxes []types.Mailbox
	var departments []types.Department

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mailboxes, err = l.source.ListMailboxes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		departments, err = l.source.ListDepartments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return LoadReport{}, err
	}

	records, skipped := MergeRecords(mailboxes, departments)
	report := AddAll(store, records)
	report.Skipped = append(skipped, report.Skipped...)

	for _, s := range report.Skipped {
		l.log.WithFields(logrus.Fields{
			"mailbox_identifier": s.MailboxIdentifier,
			"reason":             s.Reason,
		}).WithError(s.Err).Warn("orgchart: record skipped")
	}
	l.log.WithFields(logrus.Fields{
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
		"passes":  report.Passes,
	}).Info("orgchart: hierarchy loaded")
	return report, nil
}

// MergeRecords inner-joins mailboxes with departments on department_id,
// keeping mailbox order. Mailboxes without a department are skipped.
func MergeRecords(mailboxes []types.Mailbox, departments []types.Department) ([]hierarchy.Record, []SkippedRecord) {
	names := make(map[int]string, len(departments))
	for _, d := range departments {
		if _, ok := names[d.DepartmentID]; !ok {
			names[d.DepartmentID] = d.DepartmentName
		}
	}

	records := make([]hierarchy.Record, 0, len(mailboxes))
	var skipped []SkippedRecord
	for _, m := range mailboxes {
		name, ok := names[m.DepartmentID]
		if !ok {
			err := fmt.Errorf("%w: %d", ErrUnknownDepartment, m.DepartmentID)
			skipped = append(skipped, SkippedRecord{MailboxIdentifier: m.MailboxIdentifier, Reason: ErrUnknownDepartment.Error(), Err: err})
			continue
		}
		records = append(records, hierarchy.Record{
			MailboxIdentifier:        m.MailboxIdentifier,
			ManagerMailboxIdentifier: m.ManagerMailboxIdentifier,
			UserFullName:             m.UserFullName,
			DepartmentID:             m.DepartmentID,
			DepartmentName:           name,
			JobTitle:                 m.JobTitle,
		})
	}
	return records, skipped
}

// AddAll adds records one by one in order. Only ErrManagerNotFound is
// retried; every other failure is final.
func AddAll(store *hierarchy.Store, records []hierarchy.Record) LoadReport {
	var report LoadReport
	pending := records
	lastErr := make(map[string]error)
	for len(pending) > 0 {
		report.Passes++
		var deferred []hierarchy.Record
		for _, r := range pending {
			err := store.Add(r)
			switch {
			case err == nil:
				report.Loaded++
			case errors.Is(err, hierarchy.ErrManagerNotFound):
				lastErr[r.MailboxIdentifier] = err
				deferred = append(deferred, r)
			default:
				report.Skipped = append(report.Skipped, skippedFor(r, err))
			}
		}
		if len(deferred) == len(pending) {
			for _, r := range deferred {
				report.Skipped = append(report.Skipped, skippedFor(r, lastErr[r.MailboxIdentifier]))
			}
			break
		}
		pending = deferred
	}
	return report
}

func skippedFor(r hierarchy.Record, err error) SkippedRecord {
	reason := "invalid_record"
	for _, kind := range []error{hierarchy.ErrDuplicateIdentifier, hierarchy.ErrManagerNotFound, hierarchy.ErrInvalidAttribute} {
		if errors.Is(err, kind) {
			reason = kind.Error()
			break
		}
	}
	return SkippedRecord{MailboxIdentifier: r.MailboxIdentifier, Reason: reason, Err: err}
}
