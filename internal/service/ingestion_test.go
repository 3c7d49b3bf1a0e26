package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIngestionConfig() IngestionConfig {
	return IngestionConfig{
		RetailerName:       "Countdown Online",
		RetailerBrand:      "Countdown",
		RetailerLocation:   "Online",
		RetailerLocationID: "online",
		MaxProducts:        100,
		Concurrency:        1,
		PassTimeout:        time.Minute,
	}
}

func TestRunPass_EndToEnd(t *testing.T) {
	store := newMemoryStore(models.CatalogProduct{ID: 1, Title: "Known milk", Barcode: strPtr("milk")})
	source := &fakeSource{
		departments: []string{"fruit-veg", "fridge-deli"},
		byDept: map[string][]catalogapi.Product{
			"fruit-veg": {
				product("Bananas", "banana", 3.5),
				product("Free sample", "sample", 0),
			},
			"fridge-deli": {
				product("Milk", "milk", 5.0),
				product("Cheese", "cheese", 9.0),
			},
		},
	}
	publisher := &recordingPublisher{}
	svc := NewIngestionService(source, store, publisher, nil, testIngestionConfig())

	summary, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.PassID)
	assert.Equal(t, int64(1), summary.LocationID)
	assert.Equal(t, 2, summary.Departments)
	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 3, summary.Observations)
	assert.Empty(t, summary.Error)

	assert.Equal(t, []string{"fruit-veg", "fridge-deli"}, source.fetched)
	assert.Len(t, store.products, 3)
	assert.Len(t, store.observations, 3)
	for _, obs := range store.observations {
		assert.Equal(t, int64(1), obs.LocationID)
	}

	assert.Len(t, publisher.created, 2)
	assert.Len(t, publisher.observed, 3)
	require.Len(t, publisher.completed, 1)
	assert.Equal(t, summary.PassID, publisher.completed[0].PassID)
	assert.Equal(t, 3, publisher.completed[0].Observations)
}

func TestRunPass_SecondPassReusesLocationAndCatalog(t *testing.T) {
	store := newMemoryStore()
	source := &fakeSource{
		departments: []string{"pantry"},
		byDept:      map[string][]catalogapi.Product{"pantry": {product("Rice", "rice", 2.0)}},
	}
	svc := NewIngestionService(source, store, &recordingPublisher{}, nil, testIngestionConfig())

	first, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	second, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.PassID, second.PassID)
	assert.Equal(t, first.LocationID, second.LocationID)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Matched)
	assert.Len(t, store.locations, 1)
	assert.Len(t, store.observations, 2)
}

func TestRunPass_ConcurrentDepartmentsShareBarcodes(t *testing.T) {
	shared := product("Chocolate", "choc", 4.0)

	departments := []string{"a", "b", "c", "d", "e", "f"}
	byDept := make(map[string][]catalogapi.Product, len(departments))
	for _, d := range departments {
		byDept[d] = []catalogapi.Product{shared, product("Only in "+d, "only-"+d, 1.0)}
	}

	store := newMemoryStore()
	cfg := testIngestionConfig()
	cfg.Concurrency = 4
	svc := NewIngestionService(&fakeSource{departments: departments, byDept: byDept}, store, &recordingPublisher{}, nil, cfg)

	summary, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	// One entry for the shared barcode plus one per department.
	assert.Equal(t, 1+len(departments), store.createdCount(0))
	assert.Equal(t, 1+len(departments), summary.Created)
	assert.Equal(t, len(departments)-1, summary.Matched)

	// The shared product is priced once per pass.
	assert.Equal(t, 1+len(departments), summary.Observations)
	assert.Len(t, store.observations, 1+len(departments))
}

func TestRunPass_UsesDepartmentCache(t *testing.T) {
	cache := &memoryDepartmentCache{}
	source := &fakeSource{
		departments: []string{"bakery"},
		byDept:      map[string][]catalogapi.Product{"bakery": {product("Bread", "bread", 3.0)}},
	}
	svc := NewIngestionService(source, newMemoryStore(), &recordingPublisher{}, cache, testIngestionConfig())

	_, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	_, err = svc.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, []string{"bakery", "bakery"}, source.fetched)
}

func TestRunPass_FetchFailureAbortsPass(t *testing.T) {
	source := &fakeSource{
		departments: []string{"ok", "broken"},
		byDept:      map[string][]catalogapi.Product{"ok": {product("Bread", "bread", 3.0)}},
		fetchErr:    map[string]error{"broken": catalogapi.ErrTransientFetch},
	}
	publisher := &recordingPublisher{}
	svc := NewIngestionService(source, newMemoryStore(), publisher, nil, testIngestionConfig())

	summary, err := svc.RunPass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogapi.ErrTransientFetch)
	assert.Contains(t, err.Error(), "broken")
	assert.NotEmpty(t, summary.Error)
	assert.Empty(t, publisher.completed)
}

func TestRunPass_CreationFailureAbortsPass(t *testing.T) {
	store := newMemoryStore()
	store.createErr = errors.New("unique violation")
	source := &fakeSource{
		departments: []string{"pantry"},
		byDept:      map[string][]catalogapi.Product{"pantry": {product("Rice", "rice", 2.0)}},
	}
	svc := NewIngestionService(source, store, &recordingPublisher{}, nil, testIngestionConfig())

	_, err := svc.RunPass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProductCreation)
	assert.Empty(t, store.observations)
}

func TestRunPass_CatalogLoadFailure(t *testing.T) {
	store := newMemoryStore()
	store.catalogErr = errors.New("timeout")
	source := &fakeSource{departments: []string{"pantry"}}
	svc := NewIngestionService(source, store, &recordingPublisher{}, nil, testIngestionConfig())

	_, err := svc.RunPass(context.Background())
	require.Error(t, err)
	assert.Empty(t, source.fetched)
}

func TestRunPass_PublishFailureIsNotFatal(t *testing.T) {
	source := &fakeSource{
		departments: []string{"pantry"},
		byDept:      map[string][]catalogapi.Product{"pantry": {product("Rice", "rice", 2.0)}},
	}
	svc := NewIngestionService(source, newMemoryStore(), &recordingPublisher{fail: true}, nil, testIngestionConfig())

	summary, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Observations)
}

func TestRunPass_CancelledContext(t *testing.T) {
	source := &fakeSource{
		departments: []string{"pantry"},
		byDept:      map[string][]catalogapi.Product{"pantry": {product("Rice", "rice", 2.0)}},
	}
	svc := NewIngestionService(source, newMemoryStore(), &recordingPublisher{}, nil, testIngestionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSkipPriced(t *testing.T) {
	priced := map[int64]struct{}{5: {}}

	out := skipPriced([]int64{5, 6, InvalidProductID, 6}, priced)

	assert.Equal(t, []int64{InvalidProductID, 6, InvalidProductID, InvalidProductID}, out)
	assert.Contains(t, priced, int64(6))
}
