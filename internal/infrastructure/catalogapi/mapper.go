package catalogapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sentimentscope/catalog/internal/domain"
)

const (
	remoteCategory = "Smartphones"
	remoteIcon     = "📱"
)

// sentimentPriority breaks count ties: positive beats neutral beats negative
var sentimentPriority = []domain.Sentiment{
	domain.SentimentPositive,
	domain.SentimentNeutral,
	domain.SentimentNegative,
}

// TransformPhone converts a raw catalog API phone record and its sentiment
// breakdown into the canonical Product
func TransformPhone(phone domain.PhoneRecord, sentiments domain.SentimentBreakdown) domain.Product {
	avg := "N/A"
	rating := domain.DefaultRating
	if phone.AvgSentimentRating != nil {
		avg = fmt.Sprintf("%.1f", *phone.AvgSentimentRating)
		rating = clampRating(*phone.AvgSentimentRating)
	}

	return domain.Product{
		ID:          strconv.FormatInt(phone.PhoneID, 10),
		Name:        phone.PhoneName,
		Brand:       phone.BrandName,
		Category:    remoteCategory,
		Description: fmt.Sprintf("Reviews: %d. Avg sentiment ~ %s.", phone.ReviewCount, avg),
		Sentiment:   DominantSentiment(sentiments),
		Rating:      rating,
		Topics:      ParseTopics(phone.Topics),
		Icon:        remoteIcon,
	}
}

// DominantSentiment returns the category with the highest review count.
// Labels are matched case-insensitively and unknown labels are ignored.
// An empty breakdown, or one where every count is zero, is neutral.
func DominantSentiment(sentiments domain.SentimentBreakdown) domain.Sentiment {
	counts := make(map[domain.Sentiment]int, len(sentimentPriority))
	for label, share := range sentiments {
		s := domain.Sentiment(strings.ToLower(strings.TrimSpace(label)))
		if s.Valid() {
			counts[s] += share.Count
		}
	}

	best := domain.SentimentNeutral
	bestCount := 0
	for _, s := range sentimentPriority {
		if counts[s] > bestCount {
			best = s
			bestCount = counts[s]
		}
	}
	return best
}

// ParseTopics splits a comma-separated topic string, trimming and dropping empties.
// The result is never nil.
func ParseTopics(raw string) []string {
	topics := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func clampRating(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > domain.MaxRating:
		return domain.MaxRating
	}
	return r
}
