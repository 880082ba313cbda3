package workflow

import "github.com/baydersh/markscan/internal/detect"

// State is the workflow's position in the capture loop.
type State string

const (
	// StateIdle holds until the camera comes up at process start.
	StateIdle State = "idle"
	// StateLive means the camera is streaming and capture is enabled.
	StateLive State = "live"
	// StateDetecting means a frame is captured and both detections are in flight.
	StateDetecting State = "detecting"
	// StateReview means results are displayed, awaiting save or rescan.
	StateReview State = "review"
)

// Review is the snapshot handed to the operator after a detect cycle.
// Each channel is independently present or nil; MarkErr records why the
// mark channel failed outright, for operator notification. Frame is the
// frozen capture as a JPEG data URL, shown while the results are checked.
type Review struct {
	StudentID *string       `json:"student_id"`
	Mark      *string       `json:"mark"`
	Raw       string        `json:"raw,omitempty"`
	Frame     string        `json:"frame,omitempty"`
	Status    detect.Status `json:"status"`
	MarkErr   error         `json:"-"`
}
