package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxVariantSlots is the number of numbered variant column groups per row.
const MaxVariantSlots = 100

// ExportRow is one parent product with its SKUs merged into numbered slots.
type ExportRow struct {
	ID           int64
	URL          string
	Name         string
	Price        int64
	Stock        int
	Sold         int
	Image        string
	Images       []string
	CategoryID   int64
	CatName      string
	ShopLocation string
	Namespace    string
	Variation1   string
	Variation2   string
	Slots        []VariantSlot
}

type VariantSlot struct {
	Value1 string
	Value2 string
	Price  int64
	Stock  int
	Image  string
}

var exportBaseColumns = []string{
	"id", "url", "name", "price", "stock", "sold", "image", "images",
	"category_id", "cat_name", "shop_location", "namespace",
	"variation1_name", "variation2_name",
}

// ExportHeader is the fixed column order of the variant export.
func ExportHeader() []string {
	header := make([]string, 0, len(exportBaseColumns)+MaxVariantSlots*5)
	header = append(header, exportBaseColumns...)
	for i := 1; i <= MaxVariantSlots; i++ {
		header = append(header,
			fmt.Sprintf("v%d_value1", i),
			fmt.Sprintf("v%d_value2", i),
			fmt.Sprintf("v%d_price", i),
			fmt.Sprintf("v%d_stock", i),
			fmt.Sprintf("v%d_image", i),
		)
	}
	return header
}

// Record renders the row in ExportHeader order. Unused slots are empty.
func (r ExportRow) Record() []string {
	out := make([]string, 0, len(exportBaseColumns)+MaxVariantSlots*5)
	out = append(out,
		strconv.FormatInt(r.ID, 10),
		r.URL,
		r.Name,
		strconv.FormatInt(r.Price, 10),
		strconv.Itoa(r.Stock),
		strconv.Itoa(r.Sold),
		r.Image,
		strings.Join(r.Images, ","),
		strconv.FormatInt(r.CategoryID, 10),
		r.CatName,
		r.ShopLocation,
		r.Namespace,
		r.Variation1,
		r.Variation2,
	)
	for i := 0; i < MaxVariantSlots; i++ {
		if i >= len(r.Slots) {
			out = append(out, "", "", "", "", "")
			continue
		}
		s := r.Slots[i]
		out = append(out, s.Value1, s.Value2, strconv.FormatInt(s.Price, 10), strconv.Itoa(s.Stock), s.Image)
	}
	return out
}
