package services

import (
	"context"
	"image"
)

// Oracle classifies a single image.
type Oracle interface {
	// Predict returns predictions ordered best first. An empty slice means the oracle had no answer.
	Predict(ctx context.Context, in Input) ([]Prediction, error)

	// Name identifies the backend in logs, e.g. "http" or "tflite".
	Name() string
}

// Input carries one image to an [Oracle]: the bytes as supplied, the decoded pixels, and the detected
// format name ("jpeg", "png", "gif", "webp").
type Input struct {
	Data   []byte
	Image  image.Image
	Format string
}

// Prediction is one label with its confidence in [0,1].
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}
