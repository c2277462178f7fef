package tasks

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/desertthunder/visionary/internal/metrics"
	"github.com/desertthunder/visionary/internal/repositories"
	"github.com/desertthunder/visionary/internal/services"
	"github.com/desertthunder/visionary/internal/shared"
	tu "github.com/desertthunder/visionary/internal/testing"
	"github.com/desertthunder/visionary/internal/vision"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func newLibrary(t *testing.T) *repositories.Library {
	t.Helper()
	lib, err := repositories.OpenPath(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func newPipeline(t *testing.T, oracle services.Oracle, opts PipelineOpts) *Pipeline {
	t.Helper()
	return NewPipeline(vision.NewGateway(oracle, 0), newLibrary(t), opts)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestPipelineClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("Files Photo In Label Album", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.92), PipelineOpts{})

		out, err := p.Classify(ctx, tu.PNG(t, 32, 32))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		if out.Classification.AlbumName() != "cat" || out.Classification.Label() != "cat" {
			t.Errorf("expected album cat, got %s", out.Classification.AlbumName())
		}
		if out.Album == nil || out.Album.Name() != "cat" || out.Album.PhotoCount() != 1 {
			t.Errorf("expected album cat with one photo, got %+v", out.Album)
		}
		if out.LowConfidence {
			t.Error("0.92 should not be flagged as low confidence")
		}
		if out.Classification.Fingerprint() == nil {
			t.Error("expected fingerprint to be stored")
		}

		albums, err := p.Library().ListAlbums()
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 1 {
			t.Errorf("expected exactly one album, got %d", len(albums))
		}
	})

	t.Run("Low Confidence", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.40), PipelineOpts{})

		out, err := p.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if !out.LowConfidence {
			t.Error("0.40 should be flagged as low confidence")
		}
	})

	t.Run("Custom Threshold", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.6), PipelineOpts{LowConfidence: 0.75})

		out, err := p.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if !out.LowConfidence {
			t.Error("0.6 should be flagged under a 0.75 threshold")
		}
	})

	t.Run("Uses Injected Clock", func(t *testing.T) {
		fixed := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{Clock: func() time.Time { return fixed }})

		out, err := p.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if !out.Classification.Timestamp().Equal(fixed) {
			t.Errorf("expected timestamp %v, got %v", fixed, out.Classification.Timestamp())
		}
	})

	t.Run("Compresses To JPEG", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{JPEGQuality: 80})

		out, err := p.Classify(ctx, tu.PNG(t, 32, 32))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		stored, err := p.Library().GetClassification(out.Classification.ID())
		if err != nil {
			t.Fatalf("failed to reload classification: %v", err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(stored.Image())); err != nil {
			t.Errorf("stored image should be jpeg: %v", err)
		}
	})

	t.Run("Keeps Original Bytes", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{JPEGQuality: 0})
		data := tu.PNG(t, 16, 16)

		out, err := p.Classify(ctx, data)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if !bytes.Equal(out.Classification.Image(), data) {
			t.Error("expected original bytes to be stored")
		}
	})

	t.Run("Compression Failure Stores No Image", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{JPEGQuality: 250})

		out, err := p.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify should still succeed: %v", err)
		}
		if out.Classification.HasImage() {
			t.Error("expected no image after compression failure")
		}
	})

	t.Run("Records Capture Time", func(t *testing.T) {
		captured := time.Date(2023, 6, 15, 14, 30, 0, 0, time.UTC)
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{})

		out, err := p.Classify(ctx, tu.JPEGWithCaptureTime(t, 16, 16, captured))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if got := out.Classification.CapturedAt(); got == nil || !got.Equal(captured) {
			t.Errorf("expected captured_at %v, got %v", captured, got)
		}
	})

	t.Run("Decode Failure Persists Nothing", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{})

		_, err := p.Classify(ctx, []byte("definitely not an image"))
		if !errors.Is(err, shared.ErrDecode) {
			t.Fatalf("expected ErrDecode, got %v", err)
		}

		albums, _ := p.Library().ListAlbums()
		if len(albums) != 0 {
			t.Errorf("expected no albums, got %d", len(albums))
		}
	})

	t.Run("Oracle Failure Persists Nothing", func(t *testing.T) {
		p := newPipeline(t, &tu.FailingOracle{}, PipelineOpts{})

		if _, err := p.Classify(ctx, tu.PNG(t, 16, 16)); !errors.Is(err, shared.ErrClassifier) {
			t.Fatalf("expected ErrClassifier, got %v", err)
		}

		albums, _ := p.Library().ListAlbums()
		if len(albums) != 0 {
			t.Errorf("expected no albums, got %d", len(albums))
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		gateway := vision.NewGateway(tu.NewSlowOracle(time.Second, "cat", 0.9), 20*time.Millisecond)
		p := NewPipeline(gateway, newLibrary(t), PipelineOpts{})

		if _, err := p.Classify(ctx, tu.PNG(t, 16, 16)); !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}

		albums, _ := p.Library().ListAlbums()
		if len(albums) != 0 {
			t.Errorf("expected no albums after timeout, got %d", len(albums))
		}
	})

	t.Run("Scenario cat twice", func(t *testing.T) {
		lib := newLibrary(t)
		high := NewPipeline(vision.NewGateway(tu.NewStubOracle("cat", 0.92), 0), lib, PipelineOpts{})
		low := NewPipeline(vision.NewGateway(tu.NewStubOracle("cat", 0.40), 0), lib, PipelineOpts{})

		first, err := high.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		second, err := low.Classify(ctx, tu.PNG(t, 16, 16))
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		if first.Album.ID() != second.Album.ID() {
			t.Error("both photos should land in the same album")
		}
		if second.Album.PhotoCount() != 2 {
			t.Errorf("expected 2 photos, got %d", second.Album.PhotoCount())
		}
	})

	t.Run("Concurrent Same Label", func(t *testing.T) {
		dir := t.TempDir()
		lib, err := repositories.OpenPath(filepath.Join(dir, "library.db"))
		if err != nil {
			t.Fatalf("failed to open library: %v", err)
		}
		defer lib.Close()

		p := NewPipeline(vision.NewGateway(tu.NewStubOracle("cat", 0.7), 0), lib, PipelineOpts{})
		data := tu.PNG(t, 16, 16)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := p.Classify(ctx, data)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent classify failed: %v", err)
			}
		}

		albums, err := lib.ListAlbums()
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 1 || albums[0].PhotoCount() != 8 {
			t.Errorf("expected one album with 8 photos, got %d albums", len(albums))
		}
	})

	t.Run("Records Metrics", func(t *testing.T) {
		m, err := metrics.New()
		if err != nil {
			t.Fatalf("failed to create metrics: %v", err)
		}
		p := newPipeline(t, tu.NewStubOracle("cat", 0.3), PipelineOpts{Metrics: m})

		if _, err := p.Classify(ctx, tu.PNG(t, 16, 16)); err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if _, err := p.Classify(ctx, nil); err == nil {
			t.Fatal("expected error for empty input")
		}

		if got := testutil.ToFloat64(m.ClassificationTotal.WithLabelValues("stub", "ok")); got != 1 {
			t.Errorf("expected 1 ok classification, got %v", got)
		}
		if got := testutil.ToFloat64(m.ClassificationTotal.WithLabelValues("stub", shared.KindInvalid)); got != 1 {
			t.Errorf("expected 1 invalid input, got %v", got)
		}
		if got := testutil.ToFloat64(m.LowConfidenceTotal); got != 1 {
			t.Errorf("expected 1 low confidence result, got %v", got)
		}
	})
}

func TestPipelineClassifyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "cat.png", tu.PNG(t, 32, 32))

	t.Run("Reads File", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{})

		out, err := p.ClassifyFile(ctx, path)
		if err != nil {
			t.Fatalf("classify file failed: %v", err)
		}
		if out.Classification.AlbumName() != "cat" {
			t.Errorf("expected album cat, got %s", out.Classification.AlbumName())
		}
	})

	t.Run("Size Limit", func(t *testing.T) {
		oracle := tu.NewStubOracle("cat", 0.9)
		p := newPipeline(t, oracle, PipelineOpts{MaxImageBytes: 10})

		if _, err := p.ClassifyFile(ctx, path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if oracle.Calls() != 0 {
			t.Error("oversized files should not reach the oracle")
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{})

		if _, err := p.ClassifyFile(ctx, filepath.Join(dir, "missing.png")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Directory", func(t *testing.T) {
		p := newPipeline(t, tu.NewStubOracle("cat", 0.9), PipelineOpts{})

		if _, err := p.ClassifyFile(ctx, dir); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestBulkClassify(t *testing.T) {
	labelBySize := &tu.FuncOracle{Fn: func(in services.Input) (services.Prediction, error) {
		if in.Image.Bounds().Dx() > 20 {
			return services.Prediction{Label: "large", Confidence: 0.9}, nil
		}
		return services.Prediction{Label: "small", Confidence: 0.6}, nil
	}}

	t.Run("Mixed Batch", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{
			writeFile(t, dir, "a.png", tu.PNG(t, 32, 32)),
			writeFile(t, dir, "b.png", tu.PNG(t, 8, 8)),
			writeFile(t, dir, "broken.png", []byte("garbage")),
			writeFile(t, dir, "c.jpg", tu.JPEG(t, 40, 40)),
			filepath.Join(dir, "missing.png"),
		}

		p := newPipeline(t, labelBySize, PipelineOpts{})
		progress := make(chan ProgressUpdate, 100)

		result := p.BulkClassify(context.Background(), progress, paths, BulkOpts{NumWorkers: 3})
		close(progress)

		if result.Total != 5 || result.Succeeded != 3 || result.Failed != 2 {
			t.Fatalf("expected 3 ok and 2 failed of 5, got %+v", result)
		}

		for i, r := range result.Results {
			if r.Path != paths[i] {
				t.Errorf("result %d out of order: %s", i, r.Path)
			}
		}
		if result.Results[2].Kind != shared.KindDecode {
			t.Errorf("expected decode failure for broken.png, got %q", result.Results[2].Kind)
		}
		if result.Results[4].Kind != shared.KindInvalid {
			t.Errorf("expected invalid input for missing file, got %q", result.Results[4].Kind)
		}
		if got := result.Results[0].Outcome.Classification.AlbumName(); got != "large" {
			t.Errorf("expected album large, got %s", got)
		}

		albums, err := p.Library().ListAlbums()
		if err != nil {
			t.Fatalf("failed to list albums: %v", err)
		}
		if len(albums) != 2 {
			t.Errorf("expected albums large and small, got %d", len(albums))
		}

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[PhotoFiled] != 3 || phases[PhotoFailed] != 2 || phases[BatchDone] != 1 {
			t.Errorf("unexpected progress counts %v", phases)
		}
	})

	t.Run("Nil Progress", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{writeFile(t, dir, "a.png", tu.PNG(t, 8, 8))}

		result := newPipeline(t, labelBySize, PipelineOpts{}).BulkClassify(context.Background(), nil, paths, BulkOpts{})
		if result.Succeeded != 1 {
			t.Errorf("expected 1 success, got %+v", result)
		}
	})

	t.Run("Slow Reader Does Not Block", func(t *testing.T) {
		dir := t.TempDir()
		var paths []string
		for i := range 6 {
			paths = append(paths, writeFile(t, dir, string(rune('a'+i))+".png", tu.PNG(t, 8, 8)))
		}

		progress := make(chan ProgressUpdate)
		result := newPipeline(t, labelBySize, PipelineOpts{}).BulkClassify(context.Background(), progress, paths, BulkOpts{NumWorkers: 2})
		if result.Succeeded != 6 {
			t.Errorf("expected 6 successes, got %+v", result)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{
			writeFile(t, dir, "a.png", tu.PNG(t, 8, 8)),
			writeFile(t, dir, "b.png", tu.PNG(t, 8, 8)),
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := newPipeline(t, labelBySize, PipelineOpts{})
		result := p.BulkClassify(ctx, nil, paths, BulkOpts{})

		if result.Succeeded != 0 || result.Failed != 2 {
			t.Fatalf("expected every file to fail, got %+v", result)
		}
		for _, r := range result.Results {
			if !errors.Is(r.Error, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", r.Error)
			}
		}

		albums, _ := p.Library().ListAlbums()
		if len(albums) != 0 {
			t.Errorf("expected no albums, got %d", len(albums))
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		dir := t.TempDir()
		var paths []string
		for i := range 3 {
			paths = append(paths, writeFile(t, dir, string(rune('a'+i))+".png", tu.PNG(t, 8, 8)))
		}

		start := time.Now()
		result := newPipeline(t, labelBySize, PipelineOpts{}).BulkClassify(context.Background(), nil, paths, BulkOpts{RateLimit: 20})
		if result.Succeeded != 3 {
			t.Fatalf("expected 3 successes, got %+v", result)
		}
		if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
			t.Errorf("expected pacing at 20/s, took %v", elapsed)
		}
	})
}
