package catalogapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DepartmentFacetGroup is the facet group that enumerates departments.
const DepartmentFacetGroup = "Department"

// APIResponse is the body returned by the product browse endpoint.
type APIResponse struct {
	Products     ProductPage `json:"products"`
	IsSuccessful bool        `json:"isSuccessful"`
	DasFacets    []DasFacet  `json:"dasFacets"`
}

type ProductPage struct {
	Items      []Item `json:"items"`
	TotalItems int    `json:"totalItems"`
}

// Products returns the product items of the page, dropping promotion tiles.
func (p ProductPage) Products() []Product {
	out := make([]Product, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Kind == KindProduct && item.Product != nil {
			out = append(out, *item.Product)
		}
	}
	return out
}

// DasFacet is a filter descriptor returned alongside search results.
type DasFacet struct {
	Key          string `json:"key"`
	Value        string `json:"value"`
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
	Group        string `json:"group"`
}

type ItemKind int

const (
	KindProduct ItemKind = iota + 1
	KindPromotionTile
)

func (k ItemKind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindPromotionTile:
		return "promotion_tile"
	default:
		return "unknown"
	}
}

// Item is one entry of products.items. Exactly one of Product or Promotion is
// set, as indicated by Kind.
type Item struct {
	Kind      ItemKind
	Product   *Product
	Promotion *PromotionTile
}

// UnmarshalJSON classifies the item by the fields it carries: a product has a
// barcode and a price block, a promotion tile has a name and an id. Anything
// else is rejected.
func (it *Item) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("catalog item is not an object: %w", err)
	}

	switch {
	case present(fields, "barcode") && present(fields, "price"):
		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("catalog product: %w", err)
		}
		*it = Item{Kind: KindProduct, Product: &p}
	case present(fields, "name") && present(fields, "id"):
		var tile PromotionTile
		if err := json.Unmarshal(data, &tile); err != nil {
			return fmt.Errorf("promotion tile: %w", err)
		}
		*it = Item{Kind: KindPromotionTile, Promotion: &tile}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownItemShape, truncate(data, 256))
	}
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	switch it.Kind {
	case KindProduct:
		return json.Marshal(it.Product)
	case KindPromotionTile:
		return json.Marshal(it.Promotion)
	default:
		return []byte("null"), nil
	}
}

func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Product is a sellable catalog entry as served by the retailer.
type Product struct {
	Name                         string       `json:"name"`
	Barcode                      string       `json:"barcode"`
	Variety                      *string      `json:"variety"`
	Brand                        string       `json:"brand"`
	Slug                         string       `json:"slug"`
	SKU                          *string      `json:"sku"`
	Unit                         string       `json:"unit"`
	Price                        Price        `json:"price"`
	Images                       Images       `json:"images"`
	Quantity                     Quantity     `json:"quantity"`
	StockLevel                   int          `json:"stockLevel"`
	EachUnitQuantity             *string      `json:"eachUnitQuantity"`
	AverageWeightPerUnit         *float64     `json:"averageWeightPerUnit"`
	Size                         Size         `json:"size"`
	Departments                  []Department `json:"departments"`
	SubsAllowed                  bool         `json:"subsAllowed"`
	SupportsBothEachAndKgPricing bool         `json:"supportsBothEachAndKgPricing"`
	AvailabilityStatus           string       `json:"availabilityStatus"`
	AdID                         *string      `json:"adId"`
}

// EffectivePrice is the sale price if present, else the original price, else 0.
func (p *Product) EffectivePrice() float64 {
	if p.Price.SalePrice != nil {
		return *p.Price.SalePrice
	}
	if p.Price.OriginalPrice != nil {
		return *p.Price.OriginalPrice
	}
	return 0
}

type Price struct {
	OriginalPrice             *float64 `json:"originalPrice"`
	SalePrice                 *float64 `json:"salePrice"`
	SavePrice                 *float64 `json:"savePrice"`
	SavePercentage            *float64 `json:"savePercentage"`
	CanShowSavings            bool     `json:"canShowSavings"`
	HasBonusPoints            bool     `json:"hasBonusPoints"`
	IsClubPrice               bool     `json:"isClubPrice"`
	IsSpecial                 bool     `json:"isSpecial"`
	IsNew                     bool     `json:"isNew"`
	CanShowOriginalPrice      bool     `json:"canShowOriginalPrice"`
	Discount                  *string  `json:"discount"`
	IsTargetedOffer           bool     `json:"isTargetedOffer"`
	AveragePricePerSingleUnit *float64 `json:"averagePricePerSingleUnit"`
	IsBoostOffer              bool     `json:"isBoostOffer"`
}

type Images struct {
	Small string `json:"small"`
	Big   string `json:"big"`
}

// Quantity values drift between numbers and strings upstream, so the loosely
// typed ones are kept raw.
type Quantity struct {
	Min                      *float64        `json:"min"`
	Max                      *float64        `json:"max"`
	Increment                *float64        `json:"increment"`
	Value                    json.RawMessage `json:"value"`
	QuantityInOrder          json.RawMessage `json:"quantityInOrder"`
	PurchasingQuantityString *string         `json:"purchasingQuantityString"`
}

// Size carries the free-text size hints used for unit extraction.
type Size struct {
	CupPrice    *float64 `json:"cupPrice"`
	CupMeasure  *string  `json:"cupMeasure"`
	PackageType *string  `json:"packageType"`
	VolumeSize  *string  `json:"volumeSize"`
}

type Department struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PromotionTile is an advertising tile interleaved with products.
type PromotionTile struct {
	Name    string  `json:"name"`
	ID      int     `json:"id"`
	Link    *string `json:"link"`
	Content *string `json:"content"`
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
