package domain

import "context"

// ResponseCache stores raw response bodies keyed by full request URL.
// Entries live until the cache is cleared.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear()
}

// CatalogClient defines the interface for interacting with the catalog aggregation API
type CatalogClient interface {
	Ping(ctx context.Context) error
	GetBrands(ctx context.Context) ([]BrandRecord, error)
	GetPhones(ctx context.Context, limit int) ([]PhoneRecord, error)
	GetSentiments(ctx context.Context, phoneID int64) (SentimentBreakdown, error)
	GetPhoneDetails(ctx context.Context, phoneID string) (*PhoneDetailsResponse, error)
	Search(ctx context.Context, params SearchParams) ([]PhoneRecord, error)
	GetStats(ctx context.Context) (*StatsResponse, error)
	ClearCache()
}

// FallbackDataset provides the static data used when the catalog API is unreachable.
// Implementations return fresh copies on every call.
type FallbackDataset interface {
	Products() []Product
	Brands() []string
	Topics() []string
}
