package hierarchy

// Result is the summary row returned by every query endpoint.
type Result struct {
	UserFullName        string  `json:"user_full_name"`
	MailboxIdentifier   string  `json:"mailbox_identifier"`
	JobTitle            string  `json:"job_title"`
	Department          string  `json:"department"`
	SubOrganizationSize int     `json:"sub_organization_size"`
	ManagerName         *string `json:"manager_name"`
}

// Render maps employees to result rows. An empty input is reported as
// ErrNoMatchingRecords, so callers cannot tell "nothing matched" apart from
// an empty store.
func Render(employees []Employee) ([]Result, error) {
	if len(employees) == 0 {
		return nil, ErrNoMatchingRecords
	}
	out := make([]Result, 0, len(employees))
	for _, e := range employees {
		r := Result{
			UserFullName:        e.UserFullName,
			MailboxIdentifier:   e.MailboxIdentifier,
			JobTitle:            e.JobTitle,
			Department:          e.DepartmentName,
			SubOrganizationSize: e.SubOrganizationSize,
		}
		if !e.IsRoot() {
			name := e.ManagerName
			r.ManagerName = &name
		}
		out = append(out, r)
	}
	return out, nil
}
