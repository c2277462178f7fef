//go:build !tflite

package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/visionary/internal/shared"
)

// TFLiteOracle is unavailable in builds without the tflite tag.
type TFLiteOracle struct{}

// NewTFLiteOracle always fails with [shared.ErrNotImplemented]. Rebuild with -tags tflite.
func NewTFLiteOracle(cfg shared.TFLiteOracle, logger *log.Logger) (*TFLiteOracle, error) {
	return nil, fmt.Errorf("%w: tflite backend requires a build with -tags tflite", shared.ErrNotImplemented)
}

func (o *TFLiteOracle) Name() string { return shared.BackendTFLite }

func (o *TFLiteOracle) Predict(ctx context.Context, in Input) ([]Prediction, error) {
	return nil, shared.ErrNotImplemented
}

func (o *TFLiteOracle) Close() error { return nil }
