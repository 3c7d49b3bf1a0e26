package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Fallstop/super-tracker-nz/internal/models"
)

const productColumns = `id, title, variety, brand, image_url, barcode, size, unit, quantity, first_seen_at`

// GetExistingCatalog loads every catalog product in creation order.
func (s *Store) GetExistingCatalog(ctx context.Context) ([]models.CatalogProduct, error) {
	products := []models.CatalogProduct{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM catalog_product ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return products, nil
}

// CreateProduct inserts a catalog entry; the database assigns its id and
// first-seen timestamp.
func (s *Store) CreateProduct(ctx context.Context, p *models.NewCatalogProduct) (*models.CatalogProduct, error) {
	query := `
		INSERT INTO catalog_product (title, variety, brand, image_url, barcode, size, unit, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + productColumns

	quantity := p.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var created models.CatalogProduct
	err := s.db.GetContext(ctx, &created, query,
		p.Title, p.Variety, p.Brand, p.ImageURL, p.Barcode, p.Size, p.Unit, quantity)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetProductByBarcode returns the oldest entry with the barcode.
func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM catalog_product WHERE barcode = $1 ORDER BY id LIMIT 1", barcode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product with barcode %s: %w", barcode, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}
