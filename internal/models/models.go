package models

import "time"

// CatalogProduct is a deduplicated product record, keyed in practice by barcode.
type CatalogProduct struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Variety     *string   `db:"variety" json:"variety,omitempty"`
	Brand       *string   `db:"brand" json:"brand,omitempty"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	Barcode     *string   `db:"barcode" json:"barcode,omitempty"`
	Size        *float64  `db:"size" json:"size,omitempty"`
	Unit        *string   `db:"unit" json:"unit,omitempty"`
	Quantity    int       `db:"quantity" json:"quantity"`
	FirstSeenAt time.Time `db:"first_seen_at" json:"first_seen_at"`
}

// BarcodeValue returns the barcode or "" when it is unset.
func (p *CatalogProduct) BarcodeValue() string {
	if p.Barcode == nil {
		return ""
	}
	return *p.Barcode
}

// NewCatalogProduct holds the fields supplied when creating a catalog entry.
// The store assigns the id and first-seen timestamp.
type NewCatalogProduct struct {
	Title    string   `db:"title"`
	Variety  *string  `db:"variety"`
	Brand    *string  `db:"brand"`
	ImageURL *string  `db:"image_url"`
	Barcode  *string  `db:"barcode"`
	Size     *float64 `db:"size"`
	Unit     *string  `db:"unit"`
	Quantity int      `db:"quantity"`
}

// RetailerLocation is one store (or the online shop) of a retailer brand.
// (BrandName, LocationID) is unique.
type RetailerLocation struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	BrandName  string `db:"brand_name" json:"brand_name"`
	Location   string `db:"location" json:"location"`
	LocationID string `db:"location_id" json:"location_id"`
}

// PriceObservation is an append-only price reading.
type PriceObservation struct {
	ID            int64     `db:"id" json:"id"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
	LocationID    int64     `db:"location_id" json:"location_id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	Price         float64   `db:"price" json:"price"`
	OnSpecial     *bool     `db:"on_special" json:"on_special,omitempty"`
	OriginalPrice *float64  `db:"original_price" json:"original_price,omitempty"`
}

// NewPriceObservation is the record handed to the store for insertion.
type NewPriceObservation struct {
	LocationID    int64    `db:"location_id"`
	ProductID     int64    `db:"product_id"`
	Price         float64  `db:"price"`
	OnSpecial     *bool    `db:"on_special"`
	OriginalPrice *float64 `db:"original_price"`
}
