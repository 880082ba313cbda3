package entry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Service owns the in-memory entry log, newest first, and keeps it in
// sync with persistent storage. Append-only: no delete or edit exists.
type Service struct {
	repo   Repository
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
	lastID  int64
}

// NewService creates a new entry service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Load populates the log from persistent storage. A missing or malformed
// log yields an empty sequence, never an error to the caller.
func (s *Service) Load(ctx context.Context) {
	entries, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("entry log unreadable, starting empty", "error", err)
		entries = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	for _, e := range entries {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
}

// Append validates and prepends a new entry, then rewrites the persisted
// log. When the store rejects the write, the in-memory log keeps the
// entry and it is returned together with the wrapped write error, so the
// caller can surface the divergence without rolling back.
func (s *Service) Append(ctx context.Context, studentID string, mark int) (*Entry, error) {
	if err := Validate(studentID, mark); err != nil {
		return nil, err
	}

	now := time.Now()

	s.mu.Lock()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	e := Entry{
		ID:        id,
		StudentID: studentID,
		Mark:      mark,
		Timestamp: now.Format(timestampLayout),
	}
	s.entries = append([]Entry{e}, s.entries...)
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.logger.Error("entry log write failed, memory and disk diverge",
			"error", err, "entry_id", e.ID)
		return &e, fmt.Errorf("persisting entry log: %w", err)
	}

	s.logger.Info("entry saved", "student_id", e.StudentID, "mark", e.Mark)
	return &e, nil
}

// All returns a copy of the log in newest-first order.
func (s *Service) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Count returns the number of entries.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Render produces the display projection: 1-based position in
// newest-first order with the mark's severity band.
func (s *Service) Render() []View {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]View, len(s.entries))
	for i, e := range s.entries {
		views[i] = View{
			Position:  i + 1,
			StudentID: e.StudentID,
			Mark:      e.Mark,
			Band:      BandFor(e.Mark),
			Timestamp: e.Timestamp,
		}
	}
	return views
}
