package main

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/visionary/internal/services"
	"github.com/desertthunder/visionary/internal/shared"
)

// newOracle builds the classifier selected by classifier.backend. The returned closer may be nil.
func newOracle(config *shared.Config, logger *log.Logger) (services.Oracle, func() error, error) {
	switch config.Classifier.Backend {
	case shared.BackendHTTP:
		oracle, err := services.NewHTTPOracle(config.Classifier.HTTP, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using http classifier", "endpoint", config.Classifier.HTTP.Endpoint, "oauth", config.Classifier.HTTP.OAuth.Enabled())
		return oracle, nil, nil
	case shared.BackendTFLite:
		oracle, err := services.NewTFLiteOracle(config.Classifier.TFLite, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using tflite classifier", "model", config.Classifier.TFLite.ModelPath)
		return oracle, oracle.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown classifier backend %q", shared.ErrInvalidConfig, config.Classifier.Backend)
	}
}
