package catalogapi

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{
  "products": {
    "items": [
      {
        "name": "Anchor Blue Milk",
        "barcode": "9414742020139",
        "variety": "standard",
        "brand": "anchor",
        "slug": "anchor-milk-standard",
        "sku": "282765",
        "unit": "Each",
        "price": {"originalPrice": 6.2, "salePrice": 5.5, "savePrice": 0.7, "isSpecial": true},
        "images": {"small": "https://img/s.jpg", "big": "https://img/b.jpg?w=400&impolicy=Product"},
        "quantity": {"min": 1, "max": 100, "increment": 1, "value": null, "quantityInOrder": "2"},
        "stockLevel": 30,
        "size": {"cupPrice": 2.75, "cupMeasure": "1L", "packageType": "bottle", "volumeSize": "2L"},
        "departments": [{"id": 4, "name": "Fridge & Deli"}],
        "availabilityStatus": "In Stock"
      },
      {"name": "Spring sale", "id": 17, "link": "/promo", "content": null}
    ],
    "totalItems": 2
  },
  "isSuccessful": true,
  "dasFacets": [
    {"key": "Department", "value": "4", "name": "Fridge & Deli", "productCount": 900, "group": "Department"}
  ]
}`

func TestAPIResponse_DecodesTaggedItems(t *testing.T) {
	var resp APIResponse
	require.NoError(t, json.Unmarshal([]byte(samplePage), &resp))

	require.Len(t, resp.Products.Items, 2)
	assert.Equal(t, 2, resp.Products.TotalItems)
	assert.True(t, resp.IsSuccessful)

	first := resp.Products.Items[0]
	assert.Equal(t, KindProduct, first.Kind)
	require.NotNil(t, first.Product)
	assert.Nil(t, first.Promotion)
	assert.Equal(t, "9414742020139", first.Product.Barcode)
	require.NotNil(t, first.Product.Size.VolumeSize)
	assert.Equal(t, "2L", *first.Product.Size.VolumeSize)

	second := resp.Products.Items[1]
	assert.Equal(t, KindPromotionTile, second.Kind)
	require.NotNil(t, second.Promotion)
	assert.Equal(t, 17, second.Promotion.ID)

	products := resp.Products.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "Anchor Blue Milk", products[0].Name)
}

func TestItem_RejectsUnknownShape(t *testing.T) {
	var page ProductPage
	err := json.Unmarshal([]byte(`{"items": [{"title": "???"}], "totalItems": 1}`), &page)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownItemShape))
}

func TestItem_NullBarcodeIsNotAProduct(t *testing.T) {
	var item Item
	err := json.Unmarshal([]byte(`{"barcode": null, "price": {}, "name": "x", "id": 3}`), &item)
	require.NoError(t, err)
	assert.Equal(t, KindPromotionTile, item.Kind)
}

func TestItem_RejectsNonObject(t *testing.T) {
	var item Item
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &item))
}

func TestItem_MarshalRoundTripKeepsKind(t *testing.T) {
	tile := Item{Kind: KindPromotionTile, Promotion: &PromotionTile{Name: "promo", ID: 9}}
	raw, err := json.Marshal(tile)
	require.NoError(t, err)

	var decoded Item
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, KindPromotionTile, decoded.Kind)
	assert.Equal(t, "promo", decoded.Promotion.Name)
}

func TestProduct_EffectivePrice(t *testing.T) {
	sale, original := 3.5, 4.0

	tests := []struct {
		name     string
		price    Price
		expected float64
	}{
		{"sale wins", Price{SalePrice: &sale, OriginalPrice: &original}, 3.5},
		{"original fallback", Price{OriginalPrice: &original}, 4.0},
		{"no price", Price{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: tt.price}
			assert.Equal(t, tt.expected, p.EffectivePrice())
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Fruit & Veg":        "fruit-veg",
		"Fish, Seafood":      "fish-seafood",
		"Beer, Cider & Wine": "beer-cider-wine",
		"  Frozen   ":        "frozen",
		"Health & Body 24/7": "health-body",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "slugify %q", in)
	}
}

func TestDepartmentSlugs_FiltersGroups(t *testing.T) {
	facets := []DasFacet{
		{Name: "Fruit & Veg", Group: "Department"},
		{Name: "Pams", Group: "Brand"},
		{Name: "&&", Group: "Department"},
		{Name: "Fish, Seafood", Group: "Department"},
	}
	assert.Equal(t, []string{"fruit-veg", "fish-seafood"}, DepartmentSlugs(facets))
	assert.Empty(t, DepartmentSlugs(nil))
}

func TestPayloadDecodeError_Snippet(t *testing.T) {
	body := make([]byte, 5000)
	for i := range body {
		body[i] = 'x'
	}
	err := &PayloadDecodeError{Body: body, Err: errors.New("boom")}
	assert.Len(t, err.Snippet(), maxBodySnippet+3)
	assert.Contains(t, err.Error(), "boom")
}

func TestStatusError_IsTransient(t *testing.T) {
	err := error(&StatusError{StatusCode: 503})
	assert.ErrorIs(t, err, ErrTransientFetch)
	assert.Contains(t, err.Error(), "503")
}
