package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
)

// InvalidProductID marks a fetched product that must not be priced.
const InvalidProductID int64 = -1

// ErrProductCreation is returned when the store rejects a new catalog entry.
var ErrProductCreation = errors.New("failed to create catalog product")

// CatalogStore is the persistence the ingestion pipeline depends on.
type CatalogStore interface {
	GetExistingCatalog(ctx context.Context) ([]models.CatalogProduct, error)
	CreateProduct(ctx context.Context, p *models.NewCatalogProduct) (*models.CatalogProduct, error)
	GetOrCreateLocation(ctx context.Context, name, brand, location, locationID string) (int64, error)
	AppendPriceObservation(ctx context.Context, obs *models.NewPriceObservation) (*models.PriceObservation, error)
}

// MatchResult holds one id per input product, in input order, plus the
// entries created along the way.
type MatchResult struct {
	IDs     []int64
	Created []models.CatalogProduct
	Matched int
	Invalid int
}

// ProductMatcher resolves fetched products to catalog ids by exact barcode,
// creating entries for barcodes it has not seen.
type ProductMatcher struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewProductMatcher(store CatalogStore) *ProductMatcher {
	return &ProductMatcher{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Match resolves products against catalog, appending new entries to it.
// A store failure aborts the batch; ids resolved so far are returned with the error.
func (m *ProductMatcher) Match(ctx context.Context, products []catalogapi.Product, catalog *Catalog) (*MatchResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductMatcher.Match")
	defer span.End()

	start := time.Now()
	result := &MatchResult{IDs: make([]int64, 0, len(products))}

	for i := range products {
		p := &products[i]

		price := p.EffectivePrice()
		if price == 0 {
			m.logger.Info("Price is zero, skipping product",
				zap.String("name", p.Name),
				zap.String("barcode", p.Barcode))
			util.ProductsInvalidTotal.WithLabelValues("zero_price").Inc()
			result.IDs = append(result.IDs, InvalidProductID)
			result.Invalid++
			continue
		}
		if p.Barcode == "" {
			m.logger.Info("Product has no barcode, skipping", zap.String("name", p.Name))
			util.ProductsInvalidTotal.WithLabelValues("missing_barcode").Inc()
			result.IDs = append(result.IDs, InvalidProductID)
			result.Invalid++
			continue
		}

		if existing, ok := catalog.Lookup(p.Barcode); ok {
			result.IDs = append(result.IDs, existing.ID)
			result.Matched++
			continue
		}

		created, err := m.store.CreateProduct(ctx, newCatalogEntry(p, price))
		if err != nil {
			return result, fmt.Errorf("%w: barcode %s: %w", ErrProductCreation, p.Barcode, err)
		}

		catalog.Add(*created)
		result.IDs = append(result.IDs, created.ID)
		result.Created = append(result.Created, *created)
	}

	util.ProductsMatchedTotal.Add(float64(result.Matched))
	util.ProductsCreatedTotal.Add(float64(len(result.Created)))

	m.logger.Info("Matched products",
		zap.Int("products", len(products)),
		zap.Int("matched", result.Matched),
		zap.Int("created", len(result.Created)),
		zap.Int("invalid", result.Invalid),
		zap.Int("catalog_size", catalog.Len()),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func newCatalogEntry(p *catalogapi.Product, price float64) *models.NewCatalogProduct {
	su := ExtractSizeUnit(p, price)

	entry := &models.NewCatalogProduct{
		Title:    p.Name,
		Variety:  p.Variety,
		Barcode:  stringPtr(p.Barcode),
		Size:     su.Size,
		Unit:     su.Unit,
		Quantity: su.Quantity,
	}
	if p.Brand != "" {
		entry.Brand = stringPtr(p.Brand)
	}
	if img := NormalizeImageURL(p.Images.Big); img != "" {
		entry.ImageURL = &img
	}
	return entry
}

// NormalizeImageURL strips every query parameter except impolicy, which
// selects the rendition. Unparsable input is returned unchanged.
func NormalizeImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if policy, ok := u.Query()["impolicy"]; ok {
		u.RawQuery = url.Values{"impolicy": policy}.Encode()
	} else {
		u.RawQuery = ""
	}
	u.ForceQuery = false
	return u.String()
}

func stringPtr(s string) *string {
	return &s
}
