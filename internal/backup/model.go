package backup

import (
	"context"
	"errors"
	"time"
)

var ErrRepositoryClosed = errors.New("backup repository is closed")

// Record is the locally persisted copy of content the remote has not accepted yet.
type Record struct {
	Path      string `json:"path" validate:"required"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp" validate:"required,gt=0"` // Unix milliseconds
}

// Time returns the capture time of the record.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Repository is durable key-value storage of records keyed by document path.
// Get returns nil without error when no record exists.
type Repository interface {
	Get(ctx context.Context, path string) (*Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Metadata holds versioning info used to detect external rewrites of the backup file.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// Document is the on-disk layout of the JSON backup file.
type Document struct {
	Metadata Metadata          `json:"metadata"`
	Records  map[string]Record `json:"records" validate:"dive"`
}

func (d *Document) applyDefaults() {
	if d.Records == nil {
		d.Records = map[string]Record{}
	}
}
