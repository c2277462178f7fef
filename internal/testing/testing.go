// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/visionary/internal/services"
)

// StubOracle is a test double for [services.Oracle] that always answers with one prediction
type StubOracle struct {
	Label      string
	Confidence float64
	calls      atomic.Int64
}

func NewStubOracle(label string, confidence float64) *StubOracle {
	return &StubOracle{Label: label, Confidence: confidence}
}

func (s *StubOracle) Predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	s.calls.Add(1)
	return []services.Prediction{{Label: s.Label, Confidence: s.Confidence}}, nil
}

func (s *StubOracle) Name() string { return "stub" }

// Calls reports how many times Predict ran.
func (s *StubOracle) Calls() int { return int(s.calls.Load()) }

// ListOracle answers with a fixed prediction list, which may be empty
type ListOracle struct {
	Predictions []services.Prediction
}

func (l *ListOracle) Predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	return l.Predictions, nil
}

func (l *ListOracle) Name() string { return "list" }

// FuncOracle labels each image with the result of Fn
type FuncOracle struct {
	Fn func(in services.Input) (services.Prediction, error)
}

func (f *FuncOracle) Predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	p, err := f.Fn(in)
	if err != nil {
		return nil, err
	}
	return []services.Prediction{p}, nil
}

func (f *FuncOracle) Name() string { return "func" }

// FailingOracle always returns Err, or a generic error when Err is nil
type FailingOracle struct {
	Err error
}

func (f *FailingOracle) Predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, errors.New("oracle unavailable")
}

func (f *FailingOracle) Name() string { return "failing" }

// SlowOracle waits for Delay or context cancellation before answering
type SlowOracle struct {
	Delay time.Duration
	StubOracle
}

func NewSlowOracle(delay time.Duration, label string, confidence float64) *SlowOracle {
	return &SlowOracle{Delay: delay, StubOracle: StubOracle{Label: label, Confidence: confidence}}
}

func (s *SlowOracle) Predict(ctx context.Context, in services.Input) ([]services.Prediction, error) {
	select {
	case <-time.After(s.Delay):
		return s.StubOracle.Predict(ctx, in)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SlowOracle) Name() string { return "slow" }

// Gradient returns a w x h image whose brightness rises left to right, shifted by offset.
// Different offsets or sizes give different perceptual hashes.
func Gradient(w, h int, offset uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x*255/max(w-1, 1)) + offset
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: uint8(y), A: 255})
		}
	}
	return img
}

// PNG encodes a gradient image as PNG bytes.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h, 0)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a gradient image as JPEG bytes.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h, 0), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// JPEGWithCaptureTime encodes a gradient JPEG carrying an EXIF DateTimeOriginal tag.
func JPEGWithCaptureTime(t testing.TB, w, h int, captured time.Time) []byte {
	t.Helper()
	plain := JPEG(t, w, h)

	// Little-endian TIFF: IFD0 holds one pointer to the Exif IFD, which holds DateTimeOriginal.
	var tiff bytes.Buffer
	le := binary.LittleEndian
	tiff.WriteString("II")
	binary.Write(&tiff, le, uint16(42))
	binary.Write(&tiff, le, uint32(8))

	binary.Write(&tiff, le, uint16(1))
	binary.Write(&tiff, le, uint16(0x8769))
	binary.Write(&tiff, le, uint16(4))
	binary.Write(&tiff, le, uint32(1))
	binary.Write(&tiff, le, uint32(26))
	binary.Write(&tiff, le, uint32(0))

	binary.Write(&tiff, le, uint16(1))
	binary.Write(&tiff, le, uint16(0x9003))
	binary.Write(&tiff, le, uint16(2))
	binary.Write(&tiff, le, uint32(20))
	binary.Write(&tiff, le, uint32(44))
	binary.Write(&tiff, le, uint32(0))

	tiff.WriteString(captured.Format("2006:01:02 15:04:05"))
	tiff.WriteByte(0)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(plain[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(plain[2:])
	return out.Bytes()
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// SyncBuffer is a [bytes.Buffer] safe for concurrent writers, for capturing log output
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *SyncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *SyncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
