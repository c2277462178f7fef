package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/visionary/internal/metrics"
	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/repositories"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/vision"
)

// DefaultLowConfidence flags results the classifier was unsure about.
const DefaultLowConfidence = 0.5

// Outcome is the result of filing one photo.
type Outcome struct {
	Classification *models.Classification `json:"classification"`
	Album          *models.Album          `json:"album"`
	LowConfidence  bool                   `json:"low_confidence"`
}

// PipelineOpts configures a [Pipeline]. Zero values select the defaults noted on each field.
type PipelineOpts struct {
	JPEGQuality   int              // 0 stores the original bytes
	MaxImageBytes int64            // 0 disables the cap for ClassifyFile
	LowConfidence float64          // 0 selects DefaultLowConfidence
	Clock         func() time.Time // time.Now when nil
	Logger        *log.Logger      // discards when nil
	Metrics       *metrics.Metrics // records nothing when nil
}

// Pipeline files photos into the library: gateway → compression → fingerprint → persist.
type Pipeline struct {
	gateway       *vision.Gateway
	library       *repositories.Library
	jpegQuality   int
	maxImageBytes int64
	lowConfidence float64
	clock         func() time.Time
	logger        *log.Logger
	metrics       *metrics.Metrics
}

// NewPipeline creates a Pipeline over gateway and library.
func NewPipeline(gateway *vision.Gateway, library *repositories.Library, opts PipelineOpts) *Pipeline {
	if opts.LowConfidence <= 0 {
		opts.LowConfidence = DefaultLowConfidence
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Pipeline{
		gateway:       gateway,
		library:       library,
		jpegQuality:   opts.JPEGQuality,
		maxImageBytes: opts.MaxImageBytes,
		lowConfidence: opts.LowConfidence,
		clock:         opts.Clock,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Library returns the library photos are filed into.
func (p *Pipeline) Library() *repositories.Library { return p.library }

// Classify labels data and files it in the album named after the label.
//
// Nothing is persisted unless classification succeeds. When JPEG compression fails the
// classification is stored without image bytes.
func (p *Pipeline) Classify(ctx context.Context, data []byte) (out *Outcome, err error) {
	start := time.Now()
	backend := p.gateway.Oracle().Name()
	defer func() {
		p.metrics.ObserveClassification(backend, err, time.Since(start), out != nil && out.LowConfidence)
	}()

	result, err := p.gateway.Classify(ctx, data)
	if err != nil {
		p.logger.Debug("classification failed", "backend", backend, "kind", shared.ErrorKind(err), "error", err)
		return nil, err
	}

	image := p.compress(result, data)

	var opts []repositories.ClassificationOption
	if hash, err := vision.Fingerprint(result.Image); err == nil {
		opts = append(opts, repositories.WithFingerprint(hash))
	} else {
		p.logger.Warn("fingerprint skipped", "error", err)
	}
	if captured, ok := vision.CaptureTime(data, result.Format); ok {
		opts = append(opts, repositories.WithCapturedAt(captured))
	}

	c, err := p.library.CreateClassification(result.Label, result.Confidence, p.clock(), image, opts...)
	if err != nil {
		p.logger.Error("failed to save classification", "label", result.Label, "error", err)
		return nil, err
	}

	out = &Outcome{
		Classification: c,
		LowConfidence:  c.Confidence() < p.lowConfidence,
	}

	if album, err := p.library.GetAlbum(c.AlbumID()); err == nil {
		out.Album = album
	} else {
		p.logger.Warn("album lookup after save failed", "album", c.AlbumID(), "error", err)
	}

	p.logger.Info("photo filed",
		"album", c.AlbumName(),
		"confidence", shared.FormatConfidence(c.Confidence()),
		"low_confidence", out.LowConfidence,
		"bytes", len(image),
	)
	return out, nil
}

// compress returns the bytes to store for a photo.
func (p *Pipeline) compress(result *vision.Result, original []byte) []byte {
	if p.jpegQuality == 0 {
		return original
	}

	b, err := vision.Compress(result.Image, p.jpegQuality)
	if err != nil {
		p.logger.Warn("jpeg compression failed, storing without image", "error", err)
		return nil
	}
	return b
}

// ClassifyFile reads the photo at path and classifies it.
func (p *Pipeline) ClassifyFile(ctx context.Context, path string) (*Outcome, error) {
	data, err := p.readFile(path)
	if err != nil {
		return nil, err
	}
	return p.Classify(ctx, data)
}

func (p *Pipeline) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidInput, path)
	}
	if p.maxImageBytes > 0 && info.Size() > p.maxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", shared.ErrInvalidInput, path, info.Size(), p.maxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return data, nil
}
