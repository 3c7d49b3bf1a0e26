package models

import "time"

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypePriceObserved  = "PRICE_OBSERVED"
	EventTypePassCompleted  = "PASS_COMPLETED"
	EventTypeSweepRequested = "SWEEP_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductCreatedEvent is published when an unseen barcode gets a catalog entry.
type ProductCreatedEvent struct {
	BaseEvent
	PassID    string   `json:"pass_id"`
	ProductID int64    `json:"product_id"`
	Title     string   `json:"title"`
	Barcode   string   `json:"barcode"`
	Brand     *string  `json:"brand,omitempty"`
	Size      *float64 `json:"size,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	Quantity  int      `json:"quantity"`
}

// PriceObservedEvent is published for every recorded price observation.
type PriceObservedEvent struct {
	BaseEvent
	PassID        string   `json:"pass_id"`
	ProductID     int64    `json:"product_id"`
	LocationID    int64    `json:"location_id"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	OnSpecial     bool     `json:"on_special"`
}

// PassCompletedEvent summarises a finished ingestion pass.
type PassCompletedEvent struct {
	BaseEvent
	PassID       string  `json:"pass_id"`
	Departments  int     `json:"departments"`
	Fetched      int     `json:"fetched"`
	Matched      int     `json:"matched"`
	Created      int     `json:"created"`
	Invalid      int     `json:"invalid"`
	Observations int     `json:"observations"`
	DurationSecs float64 `json:"duration_seconds"`
}

// SweepRequestedEvent asks the scraper to start a pass now.
type SweepRequestedEvent struct {
	BaseEvent
	RequestedBy string `json:"requested_by"`
}
