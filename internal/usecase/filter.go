package usecase

import (
	"math"
	"slices"
	"strings"

	"github.com/sentimentscope/catalog/internal/domain"
)

// ApplyFilters returns the products matching every set field of f.
// The input slice is not modified.
func ApplyFilters(products []domain.Product, f domain.ProductFilter) []domain.Product {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	results := []domain.Product{}

	for _, p := range products {
		if f.Sentiment != "" && p.Sentiment != f.Sentiment {
			continue
		}
		if f.Brand != "" && f.Brand != domain.AllBrands && p.Brand != f.Brand {
			continue
		}
		if f.Topic != "" && !slices.Contains(p.Topics, f.Topic) {
			continue
		}
		if term != "" && !matchesSearch(p, term) {
			continue
		}
		if f.Rating > 0 && int(math.Round(p.Rating)) != f.Rating {
			continue
		}
		results = append(results, p)
	}
	return results
}
