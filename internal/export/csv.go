package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/baydersh/markscan/internal/domain/entry"
)

// ErrNothingToExport indicates the entry log is empty.
var ErrNothingToExport = errors.New("nothing to export")

// CSV serializes entries in their current order: a header row plus one
// row per entry, comma-delimited UTF-8. Pure function; download
// semantics live in the transport.
func CSV(entries []entry.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Student ID", "Mark", "Timestamp"}); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.StudentID, strconv.Itoa(e.Mark), e.Timestamp}); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns the dated download name, e.g. marks-2026-08-31.csv.
func Filename(t time.Time) string {
	return "marks-" + t.Format("2006-01-02") + ".csv"
}
