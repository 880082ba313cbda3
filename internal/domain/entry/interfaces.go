package entry

import "context"

// Repository persists the entry log. Save always rewrites the whole
// sequence; there is no incremental persistence.
type Repository interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}
