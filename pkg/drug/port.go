package drug

import (
	"context"
	"time"
)

// Store reads drugs and writes their generated content.
type Store interface {
	GetByID(ctx context.Context, id string) (*Drug, error)

	// FindNeedingContent returns drugs without content, newest first.
	FindNeedingContent(ctx context.Context, limit int) ([]Drug, error)

	// FindStale returns drugs whose content was enhanced before olderThan
	// or scored below minScore, oldest content first.
	FindStale(ctx context.Context, olderThan time.Time, minScore int, limit int) ([]Drug, error)

	// UpsertContent stores content for drugID, replacing any previous row.
	UpsertContent(ctx context.Context, drugID string, content Content) error

	GetContent(ctx context.Context, drugID string) (*Content, error)
}
