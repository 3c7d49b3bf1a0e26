package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CatalogSource is the retailer API as seen by a pass.
type CatalogSource interface {
	ListDepartments(ctx context.Context) ([]string, error)
	FetchDepartment(ctx context.Context, department string, maxItems int) ([]catalogapi.Product, error)
}

// EventPublisher receives the events produced by a pass.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error
	PublishPricesObserved(ctx context.Context, events []*models.PriceObservedEvent) error
	PublishPassCompleted(ctx context.Context, event *models.PassCompletedEvent) error
}

// DepartmentCache remembers the department list between passes. A miss is
// reported as a nil slice with a nil error.
type DepartmentCache interface {
	GetDepartments(ctx context.Context) ([]string, error)
	SetDepartments(ctx context.Context, departments []string) error
}

type IngestionConfig struct {
	RetailerName       string
	RetailerBrand      string
	RetailerLocation   string
	RetailerLocationID string
	// MaxProducts caps the items fetched per department.
	MaxProducts int
	Concurrency int
	PassTimeout time.Duration
}

// PassSummary describes one finished ingestion pass.
type PassSummary struct {
	PassID          string    `json:"pass_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	LocationID      int64     `json:"location_id"`
	Departments     int       `json:"departments"`
	Fetched         int       `json:"fetched"`
	Matched         int       `json:"matched"`
	Created         int       `json:"created"`
	Invalid         int       `json:"invalid"`
	Observations    int       `json:"observations"`
	Error           string    `json:"error,omitempty"`
}

// IngestionService runs full catalog sweeps: list departments, fetch them,
// match products against the catalog and record prices.
type IngestionService struct {
	source    CatalogSource
	store     CatalogStore
	matcher   *ProductMatcher
	emitter   *PriceEmitter
	publisher EventPublisher
	cache     DepartmentCache
	cfg       IngestionConfig
	logger    *zap.Logger
}

// NewIngestionService creates the pipeline. cache may be nil.
func NewIngestionService(
	source CatalogSource,
	store CatalogStore,
	publisher EventPublisher,
	cache DepartmentCache,
	cfg IngestionConfig,
) *IngestionService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &IngestionService{
		source:    source,
		store:     store,
		matcher:   NewProductMatcher(store),
		emitter:   NewPriceEmitter(store),
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

type departmentBatch struct {
	department string
	products   []catalogapi.Product
}

// RunPass performs one sweep. The returned summary is populated even when the
// pass fails part way; a failed pass is not resumed.
func (s *IngestionService) RunPass(ctx context.Context) (*PassSummary, error) {
	summary := &PassSummary{
		PassID:    uuid.New().String(),
		StartedAt: time.Now(),
	}

	ctx, span := util.StartSpan(ctx, "IngestionService.RunPass")
	defer span.End()

	if s.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PassTimeout)
		defer cancel()
	}

	logger := s.logger.With(zap.String("pass_id", summary.PassID))
	logger.Info("Starting ingestion pass", zap.String("retailer", s.cfg.RetailerBrand))

	err := s.runPass(ctx, summary, logger)

	summary.FinishedAt = time.Now()
	summary.DurationSeconds = summary.FinishedAt.Sub(summary.StartedAt).Seconds()
	util.IngestionPassDuration.Observe(summary.DurationSeconds)

	if err != nil {
		summary.Error = err.Error()
		util.IngestionPassesTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		logger.Error("Ingestion pass failed", zap.Error(err), zap.Any("summary", summary))
		return summary, err
	}

	util.IngestionPassesTotal.WithLabelValues("success").Inc()
	logger.Info("Ingestion pass completed",
		zap.Int("departments", summary.Departments),
		zap.Int("fetched", summary.Fetched),
		zap.Int("matched", summary.Matched),
		zap.Int("created", summary.Created),
		zap.Int("invalid", summary.Invalid),
		zap.Int("observations", summary.Observations),
		zap.Float64("duration_seconds", summary.DurationSeconds))

	s.publishPassCompleted(ctx, summary)
	return summary, nil
}

func (s *IngestionService) runPass(ctx context.Context, summary *PassSummary, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	locationID, err := s.store.GetOrCreateLocation(ctx,
		s.cfg.RetailerName, s.cfg.RetailerBrand, s.cfg.RetailerLocation, s.cfg.RetailerLocationID)
	if err != nil {
		return fmt.Errorf("failed to resolve retailer location: %w", err)
	}
	summary.LocationID = locationID

	departments, err := s.listDepartments(ctx, logger)
	if err != nil {
		return err
	}
	summary.Departments = len(departments)

	existing, err := s.store.GetExistingCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	catalog := NewCatalog(existing)
	logger.Info("Loaded catalog snapshot",
		zap.Int("products", catalog.Len()),
		zap.Int("departments", len(departments)))

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan departmentBatch)

	// Departments fetch concurrently; matching below stays on this goroutine
	// so only one writer ever touches the catalog snapshot.
	g.Go(func() error {
		defer close(batches)
		return s.fetchDepartments(gctx, departments, batches, logger)
	})

	g.Go(func() error {
		priced := make(map[int64]struct{})
		for batch := range batches {
			if err := s.ingestBatch(gctx, batch, catalog, locationID, priced, summary, logger); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (s *IngestionService) listDepartments(ctx context.Context, logger *zap.Logger) ([]string, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDepartments(ctx)
		if err != nil {
			logger.Warn("Department cache read failed", zap.Error(err))
		} else if len(cached) > 0 {
			logger.Debug("Using cached departments", zap.Int("departments", len(cached)))
			return cached, nil
		}
	}

	departments, err := s.source.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(departments) > 0 {
		if err := s.cache.SetDepartments(ctx, departments); err != nil {
			logger.Warn("Department cache write failed", zap.Error(err))
		}
	}
	return departments, nil
}

func (s *IngestionService) fetchDepartments(ctx context.Context, departments []string, out chan<- departmentBatch, logger *zap.Logger) error {
	jobs := make(chan string)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, d := range departments {
			select {
			case jobs <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < s.cfg.Concurrency; i++ {
		g.Go(func() error {
			for department := range jobs {
				start := time.Now()
				products, err := s.source.FetchDepartment(ctx, department, s.cfg.MaxProducts)
				if err != nil {
					return fmt.Errorf("failed to fetch department %q: %w", department, err)
				}
				logger.Info("Fetched department",
					zap.String("department", department),
					zap.Int("products", len(products)),
					zap.Duration("elapsed", time.Since(start)))

				select {
				case out <- departmentBatch{department: department, products: products}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *IngestionService) ingestBatch(
	ctx context.Context,
	batch departmentBatch,
	catalog *Catalog,
	locationID int64,
	priced map[int64]struct{},
	summary *PassSummary,
	logger *zap.Logger,
) error {
	summary.Fetched += len(batch.products)
	util.ProductsFetchedTotal.Add(float64(len(batch.products)))

	result, err := s.matcher.Match(ctx, batch.products, catalog)
	if result != nil {
		summary.Matched += result.Matched
		summary.Created += len(result.Created)
		summary.Invalid += result.Invalid
		s.publishCreated(ctx, summary.PassID, result.Created)
	}
	if err != nil {
		return fmt.Errorf("department %q: %w", batch.department, err)
	}

	ids := skipPriced(result.IDs, priced)
	observations, err := s.emitter.Emit(ctx, batch.products, ids, locationID)
	summary.Observations += len(observations)
	s.publishObserved(ctx, summary.PassID, observations)
	if err != nil {
		return fmt.Errorf("department %q: %w", batch.department, err)
	}

	logger.Debug("Ingested department",
		zap.String("department", batch.department),
		zap.Int("observations", len(observations)))
	return nil
}

// skipPriced hides ids already priced in this pass, so a product listed under
// two departments gets a single observation, and records the rest as priced.
func skipPriced(ids []int64, priced map[int64]struct{}) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		if id == InvalidProductID {
			out[i] = id
			continue
		}
		if _, seen := priced[id]; seen {
			out[i] = InvalidProductID
			continue
		}
		priced[id] = struct{}{}
		out[i] = id
	}
	return out
}

func (s *IngestionService) publishCreated(ctx context.Context, passID string, created []models.CatalogProduct) {
	for i := range created {
		p := &created[i]
		event := &models.ProductCreatedEvent{
			BaseEvent: newBaseEvent(models.EventTypeProductCreated),
			PassID:    passID,
			ProductID: p.ID,
			Title:     p.Title,
			Barcode:   p.BarcodeValue(),
			Brand:     p.Brand,
			Size:      p.Size,
			Unit:      p.Unit,
			Quantity:  p.Quantity,
		}
		if err := s.publisher.PublishProductCreated(ctx, event); err != nil {
			util.EventsPublishFailed.WithLabelValues(models.EventTypeProductCreated).Inc()
			s.logger.Error("Failed to publish ProductCreated event",
				zap.Int64("product_id", p.ID), zap.Error(err))
		}
	}
}

func (s *IngestionService) publishObserved(ctx context.Context, passID string, observations []models.PriceObservation) {
	if len(observations) == 0 {
		return
	}

	events := make([]*models.PriceObservedEvent, 0, len(observations))
	for _, obs := range observations {
		events = append(events, &models.PriceObservedEvent{
			BaseEvent:     newBaseEvent(models.EventTypePriceObserved),
			PassID:        passID,
			ProductID:     obs.ProductID,
			LocationID:    obs.LocationID,
			Price:         obs.Price,
			OriginalPrice: obs.OriginalPrice,
			OnSpecial:     obs.OnSpecial != nil && *obs.OnSpecial,
		})
	}

	if err := s.publisher.PublishPricesObserved(ctx, events); err != nil {
		util.EventsPublishFailed.WithLabelValues(models.EventTypePriceObserved).Inc()
		s.logger.Error("Failed to publish PriceObserved events",
			zap.Int("events", len(events)), zap.Error(err))
	}
}

func (s *IngestionService) publishPassCompleted(ctx context.Context, summary *PassSummary) {
	event := &models.PassCompletedEvent{
		BaseEvent:    newBaseEvent(models.EventTypePassCompleted),
		PassID:       summary.PassID,
		Departments:  summary.Departments,
		Fetched:      summary.Fetched,
		Matched:      summary.Matched,
		Created:      summary.Created,
		Invalid:      summary.Invalid,
		Observations: summary.Observations,
		DurationSecs: summary.DurationSeconds,
	}
	if err := s.publisher.PublishPassCompleted(ctx, event); err != nil {
		util.EventsPublishFailed.WithLabelValues(models.EventTypePassCompleted).Inc()
		s.logger.Error("Failed to publish PassCompleted event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
