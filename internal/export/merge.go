package export

import (
	"github.com/maltedev/marketplace-harvester/internal/models"
)

// NormalizePrice rounds a SKU price up to the next hundred rupiah.
func NormalizePrice(price int64) int64 {
	if price <= 0 {
		return 0
	}
	return (price + 99) / 100 * 100
}

// Merge folds a record's SKUs into one parent row. ok is false when the
// record carries no variations or no SKUs. Only the first two variation
// dimensions are exported and SKUs beyond the slot count are dropped.
func Merge(rec *models.CanonicalRecord) (row models.ExportRow, truncated bool, ok bool) {
	if len(rec.Variations) == 0 || len(rec.Models) == 0 {
		return models.ExportRow{}, false, false
	}

	row = models.ExportRow{
		ID:           rec.ID,
		URL:          rec.URL,
		Name:         rec.Name,
		Price:        rec.Price,
		Stock:        rec.Stock,
		Sold:         rec.Sold,
		Image:        rec.Image,
		Images:       rec.Images,
		CategoryID:   rec.CategoryID,
		CatName:      rec.CatName,
		ShopLocation: rec.ShopLocation,
		Namespace:    rec.Namespace,
		Variation1:   rec.Variations[0].Name,
	}
	if len(rec.Variations) > 1 {
		row.Variation2 = rec.Variations[1].Name
	}

	skus := rec.Models
	if len(skus) > models.MaxVariantSlots {
		skus = skus[:models.MaxVariantSlots]
		truncated = true
	}

	row.Slots = make([]models.VariantSlot, 0, len(skus))
	for _, sku := range skus {
		slot := models.VariantSlot{
			Value1: option(rec.Variations, 0, sku.TierIndex),
			Value2: option(rec.Variations, 1, sku.TierIndex),
			Price:  NormalizePrice(sku.Price),
			Stock:  sku.Stock,
			Image:  rec.Image,
		}
		if img := variantImage(rec.Variations[0], sku.TierIndex); img != "" {
			slot.Image = img
		}
		row.Slots = append(row.Slots, slot)
	}

	return row, truncated, true
}

func option(vars []models.TierVariation, dim int, tier []int) string {
	if dim >= len(vars) || dim >= len(tier) {
		return ""
	}
	idx := tier[dim]
	if idx < 0 || idx >= len(vars[dim].Options) {
		return ""
	}
	return vars[dim].Options[idx]
}

func variantImage(v models.TierVariation, tier []int) string {
	if len(tier) == 0 {
		return ""
	}
	idx := tier[0]
	if idx < 0 || idx >= len(v.Images) {
		return ""
	}
	return v.Images[idx]
}

// dedup remembers exported records by URL, then by id.
type dedup struct {
	urls map[string]struct{}
	ids  map[int64]struct{}
}

func newDedup() *dedup {
	return &dedup{urls: make(map[string]struct{}), ids: make(map[int64]struct{})}
}

// seen reports whether the record was already exported and marks it
// otherwise.
func (d *dedup) seen(rec *models.CanonicalRecord) bool {
	if rec.URL != "" {
		if _, ok := d.urls[rec.URL]; ok {
			return true
		}
	}
	if _, ok := d.ids[rec.ID]; ok {
		return true
	}
	if rec.URL != "" {
		d.urls[rec.URL] = struct{}{}
	}
	d.ids[rec.ID] = struct{}{}
	return false
}
