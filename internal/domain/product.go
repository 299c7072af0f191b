package domain

import (
	"fmt"
	"time"
)

// Sentiment is the dominant review sentiment of a product
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three known categories
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

const (
	// AllBrands is the brand list sentinel meaning "no brand filter"
	AllBrands = "All Brands"

	// DefaultRating is used when a record has no average sentiment rating
	DefaultRating = 3.0

	// MaxRating is the top of the fixed rating scale
	MaxRating = 5.0
)

// Product is the canonical record every presentation surface works with,
// regardless of whether it came from the catalog API or the fallback set
type Product struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Brand       string    `json:"brand" yaml:"brand"`
	Category    string    `json:"category" yaml:"category"`
	Description string    `json:"description" yaml:"description"`
	Sentiment   Sentiment `json:"sentiment" yaml:"sentiment"`
	Rating      float64   `json:"rating" yaml:"rating"` // 0-5
	Topics      []string  `json:"topics" yaml:"topics"`
	Icon        string    `json:"icon" yaml:"icon"`
}

// ProductFilter narrows a product snapshot on the client side
type ProductFilter struct {
	Sentiment Sentiment `form:"sentiment"`
	Brand     string    `form:"brand"`
	Topic     string    `form:"topic"`
	Search    string    `form:"q"`
	Rating    int       `form:"rating"` // 1-5, 0 disables
}

// Validate rejects filters that can never match
func (f ProductFilter) Validate() error {
	if f.Sentiment != "" && !f.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidRequest, f.Sentiment)
	}
	if f.Rating < 0 || f.Rating > int(MaxRating) {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidRequest)
	}
	return nil
}

// SearchFilters are forwarded to the catalog API search endpoint
type SearchFilters struct {
	Sentiment Sentiment `form:"sentiment"`
	Brand     string    `form:"brand"`
}

// ProductDetails is the bundle shown in a detail view
type ProductDetails struct {
	Product    Product            `json:"product"`
	Reviews    []Review           `json:"reviews"`
	Sentiments SentimentBreakdown `json:"sentiments"`
	Topics     []TopicDetail      `json:"topics"`
	Source     DataSource         `json:"source"`
}

// ProcessingStats summarizes the upstream sentiment pipeline
type ProcessingStats struct {
	TotalReviews        int    `json:"totalReviews"`
	ProcessedSentiments int    `json:"processedSentiments"`
	TotalTopics         int    `json:"totalTopics"`
	TotalBrands         int    `json:"totalBrands"`
	TotalPhones         int    `json:"totalPhones"`
	Available           bool   `json:"available"`
	Message             string `json:"message"`
}

// DataSource names where the current snapshot came from
type DataSource string

const (
	SourceNone     DataSource = ""
	SourceRemote   DataSource = "remote"
	SourceFallback DataSource = "fallback"
)

// LoadState is the coordinator lifecycle state
type LoadState string

const (
	StateUninitialized LoadState = "uninitialized"
	StateLoading       LoadState = "loading"
	StateReady         LoadState = "ready"
)

// Status is a point-in-time view of the coordinator
type Status struct {
	State           LoadState  `json:"state"`
	UsingRemote     bool       `json:"usingRemote"`
	ProductCount    int        `json:"productCount"`
	BrandCount      int        `json:"brandCount"`
	LastLoad        *time.Time `json:"lastLoad"`
	IsLoading       bool       `json:"isLoading"`
	Source          DataSource `json:"source"`
	PartialFailures int        `json:"partialFailures"`
}

// EventType identifies a coordinator notification
type EventType string

const (
	EventDataReady     EventType = "data_ready"
	EventDataRefreshed EventType = "data_refreshed"
	EventStatusChanged EventType = "status_changed"
)

// Event is delivered to subscribers. Products and Brands are only set for
// EventDataRefreshed and must be treated as read-only.
type Event struct {
	Type     EventType `json:"type"`
	Products []Product `json:"products,omitempty"`
	Brands   []string  `json:"brands,omitempty"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}
