package service

import (
	"context"
	"fmt"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
)

// PriceEmitter records one price observation per matched product.
type PriceEmitter struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewPriceEmitter(store CatalogStore) *PriceEmitter {
	return &PriceEmitter{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Emit pairs products with ids positionally and appends an observation for
// every id that is not InvalidProductID. Store failures are not retried.
func (e *PriceEmitter) Emit(ctx context.Context, products []catalogapi.Product, ids []int64, locationID int64) ([]models.PriceObservation, error) {
	ctx, span := util.StartSpan(ctx, "PriceEmitter.Emit")
	defer span.End()

	if len(products) != len(ids) {
		return nil, fmt.Errorf("products and ids differ in length: %d != %d", len(products), len(ids))
	}

	observations := make([]models.PriceObservation, 0, len(ids))
	for i, id := range ids {
		if id == InvalidProductID {
			continue
		}

		obs, err := e.store.AppendPriceObservation(ctx, NewObservation(&products[i], id, locationID))
		if err != nil {
			return observations, fmt.Errorf("failed to record price for product %d: %w", id, err)
		}
		observations = append(observations, *obs)
	}

	util.PriceObservationsTotal.Add(float64(len(observations)))
	e.logger.Debug("Recorded price observations",
		zap.Int64("location_id", locationID),
		zap.Int("observations", len(observations)))

	return observations, nil
}

// NewObservation builds the price record for a fetched product.
func NewObservation(p *catalogapi.Product, productID, locationID int64) *models.NewPriceObservation {
	onSpecial := p.Price.IsSpecial
	return &models.NewPriceObservation{
		LocationID:    locationID,
		ProductID:     productID,
		Price:         p.EffectivePrice(),
		OnSpecial:     &onSpecial,
		OriginalPrice: p.Price.OriginalPrice,
	}
}
