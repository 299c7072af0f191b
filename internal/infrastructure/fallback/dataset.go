// Package fallback holds the static catalog served when the catalog API is unreachable.
package fallback

import (
	_ "embed"
	"fmt"

	"github.com/sentimentscope/catalog/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var datasetYAML []byte

type document struct {
	Brands   []string         `yaml:"brands"`
	Topics   []string         `yaml:"topics"`
	Products []domain.Product `yaml:"products"`
}

// Dataset is the parsed fallback catalog. Accessors hand out copies.
type Dataset struct {
	doc document
}

// Load parses the embedded fallback catalog
func Load() (*Dataset, error) {
	return parse(datasetYAML)
}

// MustLoad is Load for program start-up; the embedded file is fixed at build time
func MustLoad() *Dataset {
	ds, err := Load()
	if err != nil {
		panic(err)
	}
	return ds
}

func parse(data []byte) (*Dataset, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fallback dataset: %w", err)
	}

	if len(doc.Brands) == 0 || doc.Brands[0] != domain.AllBrands {
		doc.Brands = append([]string{domain.AllBrands}, doc.Brands...)
	}

	seen := make(map[string]bool, len(doc.Products))
	for i := range doc.Products {
		p := &doc.Products[i]
		if p.ID == "" || seen[p.ID] {
			return nil, fmt.Errorf("fallback dataset: product %d has missing or duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Sentiment == "" {
			p.Sentiment = domain.SentimentNeutral
		}
		if !p.Sentiment.Valid() {
			return nil, fmt.Errorf("fallback dataset: product %s has invalid sentiment %q", p.ID, p.Sentiment)
		}
		if p.Rating < 0 || p.Rating > domain.MaxRating {
			return nil, fmt.Errorf("fallback dataset: product %s rating %.1f out of range", p.ID, p.Rating)
		}
		if p.Topics == nil {
			p.Topics = []string{}
		}
	}

	return &Dataset{doc: doc}, nil
}

// Products returns a copy of the fallback products
func (d *Dataset) Products() []domain.Product {
	out := make([]domain.Product, len(d.doc.Products))
	for i, p := range d.doc.Products {
		p.Topics = append([]string{}, p.Topics...)
		out[i] = p
	}
	return out
}

// Brands returns a copy of the fallback brand list, "All Brands" first
func (d *Dataset) Brands() []string {
	return append([]string(nil), d.doc.Brands...)
}

// Topics returns a copy of the fixed fallback topic list
func (d *Dataset) Topics() []string {
	return append([]string(nil), d.doc.Topics...)
}
