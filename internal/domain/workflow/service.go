package workflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/baydersh/markscan/internal/capture"
	"github.com/baydersh/markscan/internal/detect"
	"github.com/baydersh/markscan/internal/domain/entry"
)

// Service is the capture-detect-confirm-save state machine. It owns the
// camera session exclusively and the transient working detection state
// that exists between a capture and the following save or rescan.
type Service struct {
	source   capture.Source
	detector Detector
	entries  *entry.Service
	maxWidth int
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	pendingImage []byte
	studentID    *string
	mark         *string
	raw          string
}

// NewService creates the workflow in the Idle state.
func NewService(source capture.Source, detector Detector, entries *entry.Service, maxWidth int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		detector: detector,
		entries:  entries,
		maxWidth: maxWidth,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current workflow state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the camera and moves Idle to Live. On failure the workflow
// stays Idle; Idle is never re-entered after this succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	if err := s.source.Open(ctx); err != nil {
		return err
	}
	s.state = StateLive
	s.logger.Info("workflow live")
	return nil
}

// Capture drives one Live -> Detecting -> Review cycle. A frame readiness
// failure keeps the workflow Live. Once detection is in flight, the
// workflow waits for both channels to settle; the transition to Review
// always happens, carrying whichever results were resolved.
func (s *Service) Capture(ctx context.Context) (Review, error) {
	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return Review{}, ErrNotLive
	}

	img, err := s.source.Frame(ctx, s.maxWidth)
	if err != nil {
		// stays Live; FrameNotReady is reported to the operator
		s.mu.Unlock()
		return Review{}, err
	}

	cycle := uuid.NewString()
	s.state = StateDetecting
	s.pendingImage = img
	s.mu.Unlock()

	s.logger.Info("frame captured", "cycle", cycle, "bytes", len(img))

	out := s.detector.DetectBoth(ctx, img)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReview
	s.studentID = out.StudentID
	s.mark = out.Mark
	s.raw = out.Raw

	rev := Review{
		StudentID: out.StudentID,
		Mark:      out.Mark,
		Raw:       out.Raw,
		Frame:     detect.DataURL(s.pendingImage),
		Status:    out.Status(),
		MarkErr:   out.MarkErr,
	}
	s.logger.Info("detection settled", "cycle", cycle, "status", string(rev.Status))
	return rev, nil
}

// Rescan discards the working detection state and restarts the camera,
// Review to Live.
func (s *Service) Rescan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReview {
		return ErrNotReviewing
	}
	s.clearWorkingLocked()
	return s.reopenLocked(ctx)
}

// Save validates the operator's confirmation, appends an entry, and
// returns to Live. Validation failures keep Review and the working state
// untouched. The override mark takes precedence over the detected mark;
// there is no manual override for the student id. A persistence write
// failure is returned together with the appended entry, not rolled back.
func (s *Service) Save(ctx context.Context, overrideMark string) (*entry.Entry, error) {
	// The lock is held across the append: a second save of the same
	// review serializes behind the first and then fails ErrNotReviewing
	// instead of appending a duplicate.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReview {
		return nil, ErrNotReviewing
	}

	if s.studentID == nil || strings.TrimSpace(*s.studentID) == "" {
		return nil, entry.ErrMissingStudentID
	}
	studentID := *s.studentID

	effective := strings.TrimSpace(overrideMark)
	if effective == "" && s.mark != nil {
		effective = strings.TrimSpace(*s.mark)
	}
	if effective == "" {
		return nil, entry.ErrMissingMark
	}

	mark, err := strconv.Atoi(effective)
	if err != nil || mark < 0 || mark > 100 {
		return nil, entry.ErrInvalidMark
	}

	e, appendErr := s.entries.Append(ctx, studentID, mark)
	if e == nil {
		// invariant rejection: stay in Review for correction
		return nil, appendErr
	}

	s.clearWorkingLocked()
	if reopenErr := s.reopenLocked(ctx); reopenErr != nil {
		s.logger.Warn("camera restart after save failed", "error", reopenErr)
	}

	return e, appendErr
}

// Close releases the camera. Shutdown path only.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Close()
}

func (s *Service) clearWorkingLocked() {
	s.pendingImage = nil
	s.studentID = nil
	s.mark = nil
	s.raw = ""
}

// reopenLocked enforces close-before-reopen on every return to Live. The
// workflow goes Live even if the camera fails to come back: capture then
// reports the camera error and the operator can retry.
func (s *Service) reopenLocked(ctx context.Context) error {
	if err := s.source.Close(); err != nil {
		s.logger.Warn("closing camera before reopen", "error", err)
	}
	s.state = StateLive
	if err := s.source.Open(ctx); err != nil {
		return err
	}
	return nil
}
