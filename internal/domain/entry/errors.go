package entry

import "errors"

var (
	// ErrMissingStudentID indicates no student id was detected for the save.
	ErrMissingStudentID = errors.New("student id missing")
	// ErrMissingMark indicates neither a detected nor an override mark exists.
	ErrMissingMark = errors.New("mark missing")
	// ErrInvalidMark indicates the mark is not an integer in [0,100].
	ErrInvalidMark = errors.New("mark must be an integer between 0 and 100")
)
