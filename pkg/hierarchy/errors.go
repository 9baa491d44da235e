package hierarchy

import "errors"

var (
	ErrDuplicateIdentifier    = errors.New("duplicate_identifier")
	ErrManagerNotFound        = errors.New("manager_not_found")
	ErrEmployeeNotFound       = errors.New("employee_not_found")
	ErrHasSubordinates        = errors.New("employee_has_subordinates")
	ErrInvalidAttribute       = errors.New("invalid_attribute")
	ErrUnsupportedFilterValue = errors.New("unsupported_filter_value")
	ErrNoMatchingRecords      = errors.New("no_matching_records")
)
