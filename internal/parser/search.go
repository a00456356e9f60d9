package parser

import (
	"encoding/json"
	"fmt"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

type searchResponse struct {
	Items []struct {
		ItemBasic *struct {
			ItemID     int64  `json:"itemid"`
			ShopID     int64  `json:"shopid"`
			Name       string `json:"name"`
			PriceMin   int64  `json:"price_min"`
			PriceMax   int64  `json:"price_max"`
			Sold       int    `json:"sold"`
			Stock      int    `json:"stock"`
			ItemRating struct {
				RatingStar float64 `json:"rating_star"`
			} `json:"item_rating"`
		} `json:"item_basic"`
	} `json:"items"`
}

// ParseSearch extracts listing items from a listing-search response. Items
// without an item_basic block (ads, placeholders) are skipped.
func (p *ShopeeParser) ParseSearch(body []byte) ([]models.ListingItem, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]models.ListingItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		b := it.ItemBasic
		if b == nil || b.Name == "" {
			continue
		}
		items = append(items, models.ListingItem{
			ItemID:   b.ItemID,
			ShopID:   b.ShopID,
			Name:     b.Name,
			PriceMin: int(b.PriceMin / priceScale),
			PriceMax: int((b.PriceMax + priceScale - 1) / priceScale),
			Sold:     b.Sold,
			Stock:    b.Stock,
			Rating:   b.ItemRating.RatingStar,
		})
	}

	return items, nil
}
