package mocks

import (
	"context"

	"github.com/baydersh/markscan/internal/domain/entry"
	"github.com/stretchr/testify/mock"
)

// EntryRepository is a mock for entry.Repository.
type EntryRepository struct {
	mock.Mock
}

func (m *EntryRepository) Load(ctx context.Context) ([]entry.Entry, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]entry.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntryRepository) Save(ctx context.Context, entries []entry.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}
