package models

import "fmt"

const (
	MarketplaceShopee = "shopee"
	BaseURL           = "https://shopee.co.id/"
	RecordTypePC      = "pc"
)

// CanonicalRecord is the storage-ready document for one marketplace listing.
// ID is unique per marketplace.
type CanonicalRecord struct {
	Processed       bool            `json:"processed"`
	Marketplace     string          `json:"marketplace"`
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productid"`
	Name            string          `json:"name"`
	Namespace       string          `json:"namespace"`
	Rnd             float64         `json:"rnd"`
	Image           string          `json:"image"`
	Images          []string        `json:"images"`
	Sold            int             `json:"sold"`
	Price           int64           `json:"price"`
	PriceBeforeDisc int64           `json:"price_before_discount"`
	PriceAfterDisc  int64           `json:"price_after_discount"`
	Shop            Shop            `json:"shop"`
	ShopLocation    string          `json:"shop_location"`
	CatID           int64           `json:"catid"`
	Category        []int64         `json:"category"`
	CategoryID      int64           `json:"category_id"`
	CatName         string          `json:"cat_name"`
	Categories      []Category      `json:"categories"`
	BrandID         *int64          `json:"brand_id"`
	Stock           int             `json:"stock"`
	Desc            string          `json:"desc"`
	URL             string          `json:"url"`
	PublicCateg     int64           `json:"public_categ"`
	PublicSource    map[string]any  `json:"public_source"`
	Type            string          `json:"type"`
	RndUpper        float64         `json:"Rnd"`
	Variations      []TierVariation `json:"variations,omitempty"`
	Models          []SKU           `json:"models,omitempty"`
}

type Shop struct {
	ShopID   int64  `json:"shopid"`
	Location string `json:"location"`
}

type Category struct {
	CatID           int64  `json:"catid"`
	DisplayName     string `json:"display_name"`
	NoSub           bool   `json:"no_sub"`
	IsDefaultSubcat bool   `json:"is_default_subcat"`
}

// TierVariation is one option dimension of a listing, e.g. "Warna" with its options.
type TierVariation struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
	Images  []string `json:"images,omitempty"`
}

// SKU is one purchasable option combination. TierIndex points into the
// record's Variations, one index per dimension.
type SKU struct {
	ModelID   int64  `json:"model_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
	Sold      int    `json:"sold"`
	TierIndex []int  `json:"tier_index"`
}

// ProductURL builds the canonical listing URL for a shop/item pair.
func ProductURL(shopID, itemID int64) string {
	return fmt.Sprintf("%sproduct/%d/%d/", BaseURL, shopID, itemID)
}

// Key identifies a record across the store.
func (r *CanonicalRecord) Key() string {
	return fmt.Sprintf("%s:%d", r.Marketplace, r.ID)
}

func (r *CanonicalRecord) Validate() []string {
	var errors []string

	if r.Marketplace == "" {
		errors = append(errors, "marketplace is required")
	}

	if r.ID <= 0 {
		errors = append(errors, "id must be positive")
	}

	if r.Name == "" {
		errors = append(errors, "name is required")
	}

	if r.Namespace == "" {
		errors = append(errors, "namespace is required")
	}

	return errors
}
