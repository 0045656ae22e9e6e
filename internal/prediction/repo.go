package prediction

import (
	"context"
	"time"
)

type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, opts ListOpts) ([]Record, error)
	// CountSince counts records created at or after since.
	CountSince(ctx context.Context, since time.Time) (total, delayed int64, err error)
}

// EventRecorder is the slice of syncx.EventRepo the service needs.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, data any) error
}
