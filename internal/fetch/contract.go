package fetch

import (
	"context"

	"github.com/flowmaps/flowmaps-data/internal/transport/eve"
)

// Transport issues one page request at a time.
type Transport interface {
	Get(ctx context.Context, collection string, p eve.Params) (eve.Page, error)
	Follow(ctx context.Context, collection, href string) (eve.Page, error)
	URL(collection string, p eve.Params) string
}

// Progress observes a multi-page fetch. Purely informational.
type Progress interface {
	Start(collection string, total int)
	Update(fetched int)
	Done(fetched int)
}
