package engine

import (
	"context"

	"github.com/law-makers/tablecrawl/pkg/models"
)

// Extractor is the interface that all table sources must implement.
// Extract always returns a non-nil table, empty on failure, together with
// any error.
type Extractor interface {
	// Extract runs one extraction against the given URL
	Extract(ctx context.Context, opts models.RequestOptions) (*models.Table, error)

	// Name returns the name of the extractor implementation
	Name() string
}
