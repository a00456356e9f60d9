package models

import (
	"fmt"
	"strings"
)

// FilterSpec holds the operator-supplied listing filters for one run.
type FilterSpec struct {
	TitleExcludes []string `json:"filter_judul" mapstructure:"filter_judul"`
	PriceMin      int      `json:"price_min" mapstructure:"price_min"`
	PriceMax      int      `json:"price_max" mapstructure:"price_max"`
	MinSold       int      `json:"min_sold" mapstructure:"min_sold"`
	MaxSold       int      `json:"max_sold" mapstructure:"max_sold"`
	MinStock      int      `json:"min_stock" mapstructure:"min_stock"`
	MaxStock      int      `json:"max_stock" mapstructure:"max_stock"`
	MinRating     float64  `json:"min_rating" mapstructure:"min_rating"`
	MaxPageScrape int      `json:"max_page_scrape" mapstructure:"max_page_scrape"`
	Namespace     string   `json:"name_space" mapstructure:"name_space"`
	SortBy        string   `json:"sort_by" mapstructure:"sort_by"`
}

func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		TitleExcludes: []string{},
		PriceMin:      20000,
		PriceMax:      150000,
		MinSold:       25,
		MaxSold:       9999,
		MinStock:      50,
		MaxStock:      9999,
		MinRating:     4.0,
		MaxPageScrape: 9,
		Namespace:     "tes_scrape",
	}
}

func (f FilterSpec) Validate() error {
	if f.PriceMin < 0 || f.PriceMax < 0 {
		return fmt.Errorf("price range cannot be negative")
	}
	if f.PriceMax > 0 && f.PriceMin > f.PriceMax {
		return fmt.Errorf("price_min (%d) cannot exceed price_max (%d)", f.PriceMin, f.PriceMax)
	}
	if f.MinSold < 0 || f.MinStock < 0 {
		return fmt.Errorf("sold and stock floors cannot be negative")
	}
	if f.MaxSold > 0 && f.MinSold > f.MaxSold {
		return fmt.Errorf("min_sold (%d) cannot exceed max_sold (%d)", f.MinSold, f.MaxSold)
	}
	if f.MaxStock > 0 && f.MinStock > f.MaxStock {
		return fmt.Errorf("min_stock (%d) cannot exceed max_stock (%d)", f.MinStock, f.MaxStock)
	}
	if f.MinRating < 0 || f.MinRating > 5 {
		return fmt.Errorf("min_rating must be within [0, 5]")
	}
	if f.MaxPageScrape < 1 {
		return fmt.Errorf("max_page_scrape must be at least 1")
	}
	if strings.TrimSpace(f.Namespace) == "" {
		return fmt.Errorf("name_space cannot be empty")
	}
	return nil
}

// ListingItem is the subset of a search result the filters look at.
// Prices are in whole currency units.
type ListingItem struct {
	ItemID   int64
	ShopID   int64
	Name     string
	PriceMin int
	PriceMax int
	Sold     int
	Stock    int
	Rating   float64
}

// Reject reasons returned by FilterSpec.Reject.
const (
	RejectTitle    = "title"
	RejectPriceMin = "price_min"
	RejectPriceMax = "price_max"
	RejectSold     = "sold"
	RejectStock    = "stock"
	RejectRating   = "rating"
)

// Reject returns every predicate that excludes the item. An empty result
// means the item is accepted. MaxSold and MaxStock are carried in the config
// file but do not exclude items.
func (f FilterSpec) Reject(item ListingItem) []string {
	var reasons []string

	name := strings.ToLower(strings.TrimSpace(item.Name))
	for _, sub := range f.TitleExcludes {
		sub = strings.ToLower(strings.TrimSpace(sub))
		if sub != "" && strings.Contains(name, sub) {
			reasons = append(reasons, RejectTitle)
			break
		}
	}

	if item.PriceMin < f.PriceMin {
		reasons = append(reasons, RejectPriceMin)
	}
	if f.PriceMax > 0 && item.PriceMax > f.PriceMax {
		reasons = append(reasons, RejectPriceMax)
	}
	if item.Sold < f.MinSold {
		reasons = append(reasons, RejectSold)
	}
	if item.Stock < f.MinStock {
		reasons = append(reasons, RejectStock)
	}
	if item.Rating < f.MinRating {
		reasons = append(reasons, RejectRating)
	}

	return reasons
}

func (f FilterSpec) Accepts(item ListingItem) bool {
	return len(f.Reject(item)) == 0
}
