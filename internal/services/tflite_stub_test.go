//go:build !tflite

package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/visionary/internal/shared"
)

func TestNewTFLiteOracleStub(t *testing.T) {
	if _, err := NewTFLiteOracle(shared.DefaultConfig().Classifier.TFLite, nil); !errors.Is(err, shared.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}
