package dataset

import (
	"context"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Fetcher retrieves documents from the remote API.
type Fetcher interface {
	All(ctx context.Context, q query.Query) ([]*document.Document, error)
	First(ctx context.Context, q query.Query) (*document.Document, bool, error)
	Distinct(ctx context.Context, q query.Query) ([]document.Value, error)
}
