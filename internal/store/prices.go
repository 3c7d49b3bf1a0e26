package store

import (
	"context"
	"fmt"

	"github.com/Fallstop/super-tracker-nz/internal/models"
)

const observationColumns = `id, "timestamp", location_id, product_id, price, on_special, original_price`

// AppendPriceObservation inserts one price reading.
func (s *Store) AppendPriceObservation(ctx context.Context, obs *models.NewPriceObservation) (*models.PriceObservation, error) {
	query := `
		INSERT INTO price_observation (location_id, product_id, price, on_special, original_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + observationColumns

	var recorded models.PriceObservation
	err := s.db.GetContext(ctx, &recorded, query,
		obs.LocationID, obs.ProductID, obs.Price, obs.OnSpecial, obs.OriginalPrice)
	if err != nil {
		return nil, err
	}
	return &recorded, nil
}

// GetPriceHistory returns the newest observations for a product, newest first.
func (s *Store) GetPriceHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	if limit <= 0 {
		limit = 50
	}

	history := []models.PriceObservation{}
	err := s.db.SelectContext(ctx, &history,
		`SELECT `+observationColumns+` FROM price_observation
		 WHERE product_id = $1
		 ORDER BY "timestamp" DESC, id DESC
		 LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}
	return history, nil
}
