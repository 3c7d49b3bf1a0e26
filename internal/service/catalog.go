package service

import "github.com/Fallstop/super-tracker-nz/internal/models"

// Catalog is the in-memory snapshot of known products for one ingestion pass.
// It is not safe for concurrent use; the matcher owns it for the whole pass.
type Catalog struct {
	products  []models.CatalogProduct
	byBarcode map[string]int
}

// NewCatalog indexes products by barcode. When the store already holds
// duplicates, the first one wins.
func NewCatalog(products []models.CatalogProduct) *Catalog {
	c := &Catalog{
		products:  make([]models.CatalogProduct, 0, len(products)),
		byBarcode: make(map[string]int, len(products)),
	}
	for _, p := range products {
		c.Add(p)
	}
	return c
}

// Lookup returns the entry with the given barcode.
func (c *Catalog) Lookup(barcode string) (*models.CatalogProduct, bool) {
	if barcode == "" {
		return nil, false
	}
	i, ok := c.byBarcode[barcode]
	if !ok {
		return nil, false
	}
	return &c.products[i], true
}

// Add appends p to the snapshot so later items in the pass can match it.
func (c *Catalog) Add(p models.CatalogProduct) {
	c.products = append(c.products, p)
	barcode := p.BarcodeValue()
	if barcode == "" {
		return
	}
	if _, exists := c.byBarcode[barcode]; !exists {
		c.byBarcode[barcode] = len(c.products) - 1
	}
}

func (c *Catalog) Len() int {
	return len(c.products)
}
