package httperr

import (
	"errors"
	"net/http"

	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
)

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{kind: hierarchy.ErrNoMatchingRecords, status: http.StatusNotFound},
	{kind: hierarchy.ErrEmployeeNotFound, status: http.StatusNotFound},
	{kind: hierarchy.ErrManagerNotFound, status: http.StatusNotFound},
	{kind: hierarchy.ErrDuplicateIdentifier, status: http.StatusConflict},
	{kind: hierarchy.ErrHasSubordinates, status: http.StatusConflict},
	{kind: hierarchy.ErrInvalidAttribute, status: http.StatusBadRequest},
	{kind: hierarchy.ErrUnsupportedFilterValue, status: http.StatusBadRequest},
}

// StatusFor maps an error to an HTTP status and a stable error code.
// Unknown errors are internal errors.
func StatusFor(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	if IsBadRequest(err) {
		return http.StatusBadRequest, "bad_request"
	}
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status, m.kind.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
