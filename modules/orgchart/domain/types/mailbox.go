package types

type Mailbox struct {
	MailboxIdentifier        string `json:"mailbox_identifier"`
	ManagerMailboxIdentifier string `json:"manager_mailbox_identifier"`
	UserFullName             string `json:"user_full_name"`
	DepartmentID             int    `json:"department_id"`
	JobTitle                 string `json:"job_title"`
}

type Department struct {
	DepartmentID   int    `json:"department_id"`
	DepartmentName string `json:"department_name"`
}
