package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/desertthunder/visionary/internal/services"
	"github.com/desertthunder/visionary/internal/shared"
)

// Result is the gateway's answer for one photo.
type Result struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Format     string      `json:"format"`
	Image      image.Image `json:"-"`
}

// Gateway wraps an oracle with decoding, validation and an optional time bound.
type Gateway struct {
	oracle  services.Oracle
	timeout time.Duration
}

// NewGateway creates a Gateway. A non-positive timeout leaves calls bounded only by the caller's context.
func NewGateway(oracle services.Oracle, timeout time.Duration) *Gateway {
	return &Gateway{oracle: oracle, timeout: timeout}
}

// Oracle returns the wrapped oracle.
func (g *Gateway) Oracle() services.Oracle { return g.oracle }

// Decode decodes JPEG, PNG, GIF or WebP bytes and reports the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return img, format, nil
}

// Classify decodes data and returns the oracle's first prediction.
//
// The oracle is called once with no retry. Its ranking is trusted as is. Errors:
//   - [shared.ErrInvalidInput] for empty input
//   - [shared.ErrDecode] for bytes that are not a supported image
//   - [shared.ErrTimeout] when the gateway's own timeout expires
//   - [shared.ErrClassifier] for oracle failures, empty answers, and confidences outside [0,1]
func (g *Gateway) Classify(ctx context.Context, data []byte) (*Result, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	preds, err := g.predict(ctx, services.Input{Data: data, Image: img, Format: format})
	if err != nil {
		return nil, err
	}

	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: %s returned no predictions", shared.ErrClassifier, g.oracle.Name())
	}

	best := preds[0]
	if best.Label == "" {
		return nil, fmt.Errorf("%w: %s returned an empty label", shared.ErrClassifier, g.oracle.Name())
	}
	if math.IsNaN(best.Confidence) || best.Confidence < 0 || best.Confidence > 1 {
		return nil, fmt.Errorf("%w: %s returned confidence %v outside [0,1]", shared.ErrClassifier, g.oracle.Name(), best.Confidence)
	}

	return &Result{Label: best.Label, Confidence: best.Confidence, Format: format, Image: img}, nil
}

type prediction struct {
	preds []services.Prediction
	err   error
}

// predict runs the oracle under the gateway timeout. The result channel is buffered so an oracle
// that ignores cancellation can still finish and exit.
func (g *Gateway) predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan prediction, 1)
	go func() {
		preds, err := g.oracle.Predict(callCtx, in)
		done <- prediction{preds: preds, err: err}
	}()

	select {
	case p := <-done:
		if p.err != nil {
			return nil, g.wrap(ctx, callCtx, p.err)
		}
		return p.preds, nil
	case <-callCtx.Done():
		return nil, g.wrap(ctx, callCtx, callCtx.Err())
	}
}

func (g *Gateway) wrap(parent, callCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: no answer from %s within %s", shared.ErrTimeout, shared.ErrClassifier, g.oracle.Name(), g.timeout)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrClassifier, g.oracle.Name(), err)
}
