package entry

// Band is a mark severity category derived from numeric thresholds.
type Band string

const (
	BandA Band = "A"
	BandB Band = "B"
	BandC Band = "C"
	BandD Band = "D"
)

// Entry is one confirmed (student id, mark) record. Entries are immutable
// after creation; corrections happen before save, never after.
//
// JSON tags match the persisted log format.
type Entry struct {
	ID        int64  `json:"id"`
	StudentID string `json:"studentId"`
	Mark      int    `json:"mark"`
	Timestamp string `json:"timestamp"`
}

// View is the display projection of an entry.
type View struct {
	Position  int    `json:"position"`
	StudentID string `json:"student_id"`
	Mark      int    `json:"mark"`
	Band      Band   `json:"band"`
	Timestamp string `json:"timestamp"`
}

// BandFor maps a mark onto its severity band (thresholds 90/70/50).
func BandFor(mark int) Band {
	switch {
	case mark >= 90:
		return BandA
	case mark >= 70:
		return BandB
	case mark >= 50:
		return BandC
	default:
		return BandD
	}
}
