// Package fetcher reads comparable listings from a remote comparable store
// over HTTP, as an alternative to the local postgres table.
package fetcher

import (
	"context"

	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/storage"
)

// ComparableSource is satisfied by both the postgres store and the HTTP client.
type ComparableSource interface {
	ListComparables(ctx context.Context, q storage.ComparableQuery) ([]pricing.ComparableListing, error)
}

var (
	_ ComparableSource = (*storage.Store)(nil)
	_ ComparableSource = (*Listings)(nil)
)
