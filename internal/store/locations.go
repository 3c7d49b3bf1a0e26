package store

import (
	"context"
	"fmt"
)

// GetOrCreateLocation returns the id of the (brand, locationID) row, inserting
// it on first sight. Existing rows are never updated.
func (s *Store) GetOrCreateLocation(ctx context.Context, name, brand, location, locationID string) (int64, error) {
	query := `
		WITH inserted AS (
			INSERT INTO retailer_location (name, brand_name, location, location_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (brand_name, location_id) DO NOTHING
			RETURNING id
		)
		SELECT id FROM inserted
		UNION ALL
		SELECT id FROM retailer_location WHERE brand_name = $2 AND location_id = $4
		LIMIT 1`

	var id int64
	if err := s.db.GetContext(ctx, &id, query, name, brand, location, locationID); err != nil {
		return 0, fmt.Errorf("failed to upsert location %s/%s: %w", brand, locationID, err)
	}
	return id, nil
}
