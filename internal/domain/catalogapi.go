package domain

// BrandRecord is a row from the catalog API /brands endpoint
type BrandRecord struct {
	BrandID   int64  `json:"brand_id"`
	BrandName string `json:"brand_name"`
}

// PhoneRecord is a raw phone row as served by the catalog API
type PhoneRecord struct {
	PhoneID            int64    `json:"phone_id"`
	PhoneName          string   `json:"phone_name"`
	BrandID            int64    `json:"brand_id,omitempty"`
	BrandName          string   `json:"brand_name"`
	ReviewCount        int      `json:"review_count"`
	AvgSentimentRating *float64 `json:"avg_sentiment_rating"`
	Topics             string   `json:"topics"` // comma-separated labels
}

// SentimentShare is the review count and share of one sentiment category
type SentimentShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SentimentBreakdown maps a sentiment category label to its share
type SentimentBreakdown map[string]SentimentShare

// SentimentsResponse represents the response from /sentiments
type SentimentsResponse struct {
	Sentiments SentimentBreakdown `json:"sentiments"`
}

// SearchResponse represents the response from /search
type SearchResponse struct {
	Phones []PhoneRecord `json:"phones"`
}

// Review is a single analysed review
type Review struct {
	ReviewID       int64    `json:"review_id"`
	ReviewText     string   `json:"review_text"`
	SentimentLabel string   `json:"sentiment_label,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}

// TopicDetail is a topic extracted for a phone
type TopicDetail struct {
	TopicID             int64  `json:"topic_id"`
	TopicLabel          string `json:"topic_label"`
	RepresentativeTerms string `json:"representative_terms,omitempty"`
}

// PhoneDetailsResponse represents the response from /phones/{id}/complete
type PhoneDetailsResponse struct {
	Phone      PhoneRecord        `json:"phone"`
	Reviews    []Review           `json:"reviews"`
	Sentiments SentimentBreakdown `json:"sentiments"`
	Topics     []TopicDetail      `json:"topics"`
}

// StatsResponse represents the response from /stats
type StatsResponse struct {
	Reviews             int `json:"reviews"`
	ProcessedSentiments int `json:"processed_sentiments"`
	Topics              int `json:"topics"`
	Brands              int `json:"brands"`
	Phones              int `json:"phones"`
}

// SearchParams are encoded into the /search query string
type SearchParams struct {
	Query     string
	Sentiment Sentiment
	BrandID   *int64
}
