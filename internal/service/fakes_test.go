package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/models"
)

type memoryStore struct {
	mu           sync.Mutex
	products     []models.CatalogProduct
	locations    []models.RetailerLocation
	observations []models.PriceObservation
	nextID       int64

	createErr  error
	appendErr  error
	catalogErr error
}

func newMemoryStore(existing ...models.CatalogProduct) *memoryStore {
	s := &memoryStore{nextID: 1000}
	s.products = append(s.products, existing...)
	return s
}

func (s *memoryStore) GetExistingCatalog(ctx context.Context) ([]models.CatalogProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	out := make([]models.CatalogProduct, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *memoryStore) CreateProduct(ctx context.Context, p *models.NewCatalogProduct) (*models.CatalogProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	created := models.CatalogProduct{
		ID:          s.nextID,
		Title:       p.Title,
		Variety:     p.Variety,
		Brand:       p.Brand,
		ImageURL:    p.ImageURL,
		Barcode:     p.Barcode,
		Size:        p.Size,
		Unit:        p.Unit,
		Quantity:    p.Quantity,
		FirstSeenAt: time.Now(),
	}
	s.products = append(s.products, created)
	return &created, nil
}

func (s *memoryStore) GetOrCreateLocation(ctx context.Context, name, brand, location, locationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.BrandName == brand && l.LocationID == locationID {
			return l.ID, nil
		}
	}
	loc := models.RetailerLocation{
		ID:         int64(len(s.locations) + 1),
		Name:       name,
		BrandName:  brand,
		Location:   location,
		LocationID: locationID,
	}
	s.locations = append(s.locations, loc)
	return loc.ID, nil
}

func (s *memoryStore) AppendPriceObservation(ctx context.Context, obs *models.NewPriceObservation) (*models.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	recorded := models.PriceObservation{
		ID:            int64(len(s.observations) + 1),
		Timestamp:     time.Now(),
		LocationID:    obs.LocationID,
		ProductID:     obs.ProductID,
		Price:         obs.Price,
		OnSpecial:     obs.OnSpecial,
		OriginalPrice: obs.OriginalPrice,
	}
	s.observations = append(s.observations, recorded)
	return &recorded, nil
}

func (s *memoryStore) createdCount(since int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products) - since
}

type fakeSource struct {
	mu          sync.Mutex
	departments []string
	byDept      map[string][]catalogapi.Product
	listCalls   int
	fetched     []string
	fetchErr    map[string]error
}

func (f *fakeSource) ListDepartments(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.departments, nil
}

func (f *fakeSource) FetchDepartment(ctx context.Context, department string, maxItems int) ([]catalogapi.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, department)
	if err := f.fetchErr[department]; err != nil {
		return nil, err
	}
	products := f.byDept[department]
	if len(products) > maxItems {
		products = products[:maxItems]
	}
	return products, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	created   []*models.ProductCreatedEvent
	observed  []*models.PriceObservedEvent
	completed []*models.PassCompletedEvent
	fail      bool
}

var errPublish = errors.New("broker unavailable")

func (p *recordingPublisher) PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.created = append(p.created, event)
	return nil
}

func (p *recordingPublisher) PublishPricesObserved(ctx context.Context, events []*models.PriceObservedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.observed = append(p.observed, events...)
	return nil
}

func (p *recordingPublisher) PublishPassCompleted(ctx context.Context, event *models.PassCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.completed = append(p.completed, event)
	return nil
}

type memoryDepartmentCache struct {
	departments []string
	sets        int
}

func (c *memoryDepartmentCache) GetDepartments(ctx context.Context) ([]string, error) {
	return c.departments, nil
}

func (c *memoryDepartmentCache) SetDepartments(ctx context.Context, departments []string) error {
	c.departments = departments
	c.sets++
	return nil
}

func product(name, barcode string, price float64) catalogapi.Product {
	p := catalogapi.Product{
		Name:    name,
		Barcode: barcode,
		Brand:   "pams",
		Images:  catalogapi.Images{Big: "https://img/" + barcode + ".jpg?w=400&impolicy=Product"},
	}
	if price != 0 {
		p.Price.OriginalPrice = &price
	}
	return p
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
