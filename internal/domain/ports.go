package domain

import "context"

// TableStore is a remote row store addressed by tab name inside one
// document. Cells come back as string, float64 or bool.
type TableStore interface {
	Tabs(ctx context.Context) ([]string, error)
	Header(ctx context.Context, tab string) ([]any, error)
	Rows(ctx context.Context, tab string) ([][]any, error) // row 1 included
	Append(ctx context.Context, tab string, rows [][]any) error
	// InsertHeader puts a row at position 1 and shifts existing rows down.
	InsertHeader(ctx context.Context, tab string, header []any) error
	Clear(ctx context.Context, tab string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type Notifier interface {
	Notify(ctx context.Context, sender, text, propertyName string) (DeliveryResult, error)
}

type MapsClient interface {
	Geocode(ctx context.Context, address string) (*Coords, error)
	Distance(ctx context.Context, from, to Coords, mode string) (Route, error)
}
