package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

const (
	// priceScale converts marketplace price units to whole rupiah.
	priceScale = 100000

	defaultRnd      = 0.25390100699475204
	defaultRndUpper = 0.38799338406558054
)

type ShopeeParser struct{}

func NewShopeeParser() *ShopeeParser {
	return &ShopeeParser{}
}

type detailEnvelope struct {
	Error int             `json:"error"`
	Data  json.RawMessage `json:"data"`
}

type rawCategory struct {
	CatID           int64  `json:"catid"`
	DisplayName     string `json:"display_name"`
	NoSub           bool   `json:"no_sub"`
	IsDefaultSubcat bool   `json:"is_default_subcat"`
}

type rawModel struct {
	ModelID   int64  `json:"model_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
	Sold      int    `json:"sold"`
	TierIndex []int  `json:"tier_index"`
	Extinfo   struct {
		TierIndex []int `json:"tier_index"`
	} `json:"extinfo"`
}

type rawItem struct {
	ItemID         int64           `json:"item_id"`
	ShopID         int64           `json:"shop_id"`
	Title          string          `json:"title"`
	Image          string          `json:"image"`
	Price          int64           `json:"price"`
	Stock          int             `json:"stock"`
	Description    string          `json:"description"`
	ShopLocation   string          `json:"shop_location"`
	BrandID        *int64          `json:"brand_id"`
	Categories     []rawCategory   `json:"categories"`
	FECategories   []rawCategory   `json:"fe_categories"`
	Models         []rawModel      `json:"models"`
	TierVariations []rawVariation  `json:"tier_variations"`
}

type rawVariation struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
	Images  []string `json:"images"`
}

type detailData struct {
	Item          *rawItem `json:"item"`
	ProductImages struct {
		Images []string `json:"images"`
	} `json:"product_images"`
	ShopDetailed *struct {
		UserID int64 `json:"userid"`
	} `json:"shop_detailed"`
}

// ParseDetail maps a full detail-fetch response body.
func (p *ShopeeParser) ParseDetail(body []byte, namespace string) (*models.CanonicalRecord, error) {
	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode detail response: %w", err)
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, fmt.Errorf("%w (error code %d)", ErrNoData, env.Error)
	}

	return p.MapDetail(env.Data, namespace)
}

// MapDetail maps the data object of a detail-fetch response. Mapping the
// same bytes twice yields identical records.
func (p *ShopeeParser) MapDetail(data []byte, namespace string) (*models.CanonicalRecord, error) {
	var d detailData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode detail data: %w", err)
	}

	raw, err := decodeLoose(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode detail data: %w", err)
	}

	item := d.Item
	if item == nil {
		return nil, fmt.Errorf("%w: item", ErrMappingGap)
	}
	if item.ItemID == 0 {
		return nil, fmt.Errorf("%w: item.item_id", ErrMappingGap)
	}
	if item.ShopID == 0 {
		return nil, fmt.Errorf("%w: item.shop_id", ErrMappingGap)
	}
	if len(item.Categories) == 0 {
		return nil, fmt.Errorf("%w: item.categories", ErrMappingGap)
	}
	if d.ShopDetailed == nil {
		return nil, fmt.Errorf("%w: shop_detailed", ErrMappingGap)
	}

	catIDs := make([]int64, 0, len(item.Categories))
	categories := make([]models.Category, 0, len(item.Categories))
	for _, c := range item.Categories {
		catIDs = append(catIDs, c.CatID)
		categories = append(categories, models.Category(c))
	}
	last := item.Categories[len(item.Categories)-1]

	sold := 0
	skus := make([]models.SKU, 0, len(item.Models))
	for _, m := range item.Models {
		sold += m.Sold
		tier := m.TierIndex
		if len(tier) == 0 {
			tier = m.Extinfo.TierIndex
		}
		skus = append(skus, models.SKU{
			ModelID:   m.ModelID,
			Name:      m.Name,
			Price:     m.Price / priceScale,
			Stock:     m.Stock,
			Sold:      m.Sold,
			TierIndex: tier,
		})
	}

	variations := make([]models.TierVariation, 0, len(item.TierVariations))
	for _, v := range item.TierVariations {
		variations = append(variations, models.TierVariation(v))
	}

	images := d.ProductImages.Images
	if images == nil {
		images = []string{}
	}

	price := item.Price / priceScale

	return &models.CanonicalRecord{
		Processed:       false,
		Marketplace:     models.MarketplaceShopee,
		ID:              item.ItemID,
		ProductID:       item.ItemID,
		Name:            item.Title,
		Namespace:       namespace,
		Rnd:             defaultRnd,
		Image:           item.Image,
		Images:          images,
		Sold:            sold,
		Price:           price,
		PriceBeforeDisc: price,
		PriceAfterDisc:  price,
		Shop: models.Shop{
			ShopID:   item.ShopID,
			Location: item.ShopLocation,
		},
		ShopLocation: item.ShopLocation,
		CatID:        catIDs[0],
		Category:     catIDs,
		CategoryID:   last.CatID,
		CatName:      last.DisplayName,
		Categories:   categories,
		BrandID:      item.BrandID,
		Stock:        item.Stock,
		Desc:         item.Description,
		URL:          models.ProductURL(item.ShopID, item.ItemID),
		PublicCateg:  publicCategory(item),
		PublicSource: publicSource(raw, item, images, d.ShopDetailed.UserID, catIDs[0]),
		Type:         models.RecordTypePC,
		RndUpper:     defaultRndUpper,
		Variations:   variations,
		Models:       skus,
	}, nil
}

// publicCategory prefers the second front-end category, which is the
// department level on the marketplace.
func publicCategory(item *rawItem) int64 {
	switch n := len(item.FECategories); {
	case n >= 2:
		return item.FECategories[1].CatID
	case n == 1:
		return item.FECategories[0].CatID
	default:
		return item.Categories[len(item.Categories)-1].CatID
	}
}

func publicSource(raw map[string]any, item *rawItem, images []string, userID, catID int64) map[string]any {
	return map[string]any{
		"productitem":       stripUnderscores(raw["item"]),
		"productprice":      stripUnderscores(raw["product_price"]),
		"productreview":     stripUnderscores(raw["product_review"]),
		"productimages":     stripUnderscores(raw["product_images"]),
		"productshop":       stripUnderscores(raw["shop_detailed"]),
		"productattributes": stripUnderscores(raw["product_attributes"]),
		"productshipping":   stripUnderscores(raw["product_shipping"]),
		"shippingmeta":      stripUnderscores(raw["shipping_meta"]),
		"shopvouchers":      stripUnderscores(raw["shop_vouchers"]),
		"freereturn":        stripUnderscores(raw["free_return"]),
		"productinfo": map[string]any{
			"agegate":      stripUnderscores(raw["age_gate"]),
			"coininfo":     stripUnderscores(raw["coin_info"]),
			"flashsale":    stripUnderscores(raw["flash_sale"]),
			"shopvouchers": stripUnderscores(raw["shop_vouchers"]),
		},
		"itemid":                            item.ItemID,
		"name":                              item.Title,
		"sold":                              0,
		"imageurl":                          item.Image,
		"imageurls":                         images,
		"userid":                            userID,
		"catid":                             catID,
		"bundledealid":                      0,
		"canusebundledeal":                  false,
		"clipinfo":                          nil,
		"codflag":                           0,
		"coinearnlabel":                     nil,
		"creditinsurancedata":               map[string]any{"insuranceproducts": nil},
		"exclusivepriceinfo":                nil,
		"groupbuyinfo":                      nil,
		"haslowestpriceguarantee":           false,
		"isccinstallmentpaymenteligible":    false,
		"isgroupbuyitem":                    nil,
		"isnonccinstallmentpaymenteligible": false,
		"itemhaspost":                       false,
		"itemhassizerecommendation":         false,
		"makeups":                           nil,
		"presaleinfo":                       nil,
		"shopeeverified":                    false,
		"showfreereturn":                    nil,
		"showfreeshipping":                  false,
		"taxcode":                           nil,
		"upcomingflashsale":                 nil,
		"videoinfolist":                     []any{},
		"welcomepackageinfo":                nil,
		"wpeligibility":                     nil,
		"ispc":                              true,
	}
}

// decodeLoose decodes into generic maps, keeping numbers verbatim.
func decodeLoose(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripUnderscores removes underscores from every map key, recursively.
func stripUnderscores(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, "_", "")] = stripUnderscores(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripUnderscores(val)
		}
		return out
	default:
		return v
	}
}
