package entry

import "strings"

// Validate enforces the entry invariant: a non-empty student id and a mark
// within [0,100]. No entry violating this is ever appended.
func Validate(studentID string, mark int) error {
	if strings.TrimSpace(studentID) == "" {
		return ErrMissingStudentID
	}
	if mark < 0 || mark > 100 {
		return ErrInvalidMark
	}
	return nil
}
