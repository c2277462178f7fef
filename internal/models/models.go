// package models defines the data model for the photo library
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the photo library.
// Implementations include Album and Classification.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// ClassificationOrder selects the sort policy for an album's classifications.
type ClassificationOrder int

const (
	// OrderByConfidence sorts by descending confidence, ties broken by insertion order.
	OrderByConfidence ClassificationOrder = iota
	// OrderByTimestamp sorts by ascending timestamp, ties broken by insertion order.
	OrderByTimestamp
)

func (o ClassificationOrder) String() string {
	switch o {
	case OrderByConfidence:
		return "confidence"
	case OrderByTimestamp:
		return "timestamp"
	default:
		return ""
	}
}

// ParseClassificationOrder maps "confidence" or "timestamp" to a [ClassificationOrder].
// An empty string selects [OrderByConfidence].
func ParseClassificationOrder(s string) (ClassificationOrder, bool) {
	switch s {
	case "", "confidence":
		return OrderByConfidence, true
	case "timestamp", "time":
		return OrderByTimestamp, true
	default:
		return OrderByConfidence, false
	}
}
