package services

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestTensor(t *testing.T) {
	t.Run("Resize", func(t *testing.T) {
		out := Resize(solid(40, 20, color.RGBA{R: 255, A: 255}), 8, 8)
		if out.Bounds().Dx() != 8 || out.Bounds().Dy() != 8 {
			t.Fatalf("expected 8x8, got %v", out.Bounds())
		}
		if got := out.RGBAAt(4, 4); got.R != 255 || got.G != 0 {
			t.Errorf("expected red pixel, got %v", got)
		}
	})

	t.Run("Float32Tensor", func(t *testing.T) {
		tensor := Float32Tensor(solid(10, 10, color.RGBA{R: 255, G: 0, B: 127, A: 255}), 4, 4, 127.5, 127.5)
		if len(tensor) != 4*4*3 {
			t.Fatalf("expected %d values, got %d", 4*4*3, len(tensor))
		}
		if math.Abs(float64(tensor[0]-1)) > 1e-3 {
			t.Errorf("expected red channel 1, got %v", tensor[0])
		}
		if math.Abs(float64(tensor[1]+1)) > 1e-3 {
			t.Errorf("expected green channel -1, got %v", tensor[1])
		}
	})

	t.Run("Float32Tensor Zero Std", func(t *testing.T) {
		tensor := Float32Tensor(solid(2, 2, color.RGBA{R: 10, A: 255}), 1, 1, 0, 0)
		if tensor[0] != 10 {
			t.Errorf("zero std should leave values unscaled, got %v", tensor[0])
		}
	})

	t.Run("Uint8Tensor", func(t *testing.T) {
		tensor := Uint8Tensor(solid(3, 3, color.RGBA{R: 1, G: 2, B: 3, A: 255}), 2, 2)
		want := []uint8{1, 2, 3}
		if len(tensor) != 12 {
			t.Fatalf("expected 12 values, got %d", len(tensor))
		}
		for i, v := range want {
			if tensor[i] != v {
				t.Errorf("channel %d: expected %d, got %d", i, v, tensor[i])
			}
		}
	})

	t.Run("Softmax", func(t *testing.T) {
		out := Softmax([]float32{1, 2, 3})
		var sum float32
		for _, v := range out {
			sum += v
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("expected sum 1, got %v", sum)
		}
		if !(out[2] > out[1] && out[1] > out[0]) {
			t.Errorf("softmax should preserve order, got %v", out)
		}
		if Softmax(nil) != nil {
			t.Error("expected nil for empty input")
		}
	})

	t.Run("Probabilities", func(t *testing.T) {
		if !Probabilities([]float32{0, 0.5, 1}) {
			t.Error("expected values in range to be probabilities")
		}
		if Probabilities([]float32{0.5, 2.1}) {
			t.Error("expected logits to need softmax")
		}
	})

	t.Run("Rank", func(t *testing.T) {
		preds := Rank([]string{"cat", "dog", "bird"}, []float32{0.2, 0.7, 0.2, 0.9})

		want := []string{"3", "dog", "cat", "bird"}
		for i, p := range preds {
			if p.Label != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], p.Label)
			}
		}
	})
}

func TestLoadLabels(t *testing.T) {
	t.Run("Reads Lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		if err := os.WriteFile(path, []byte("cat\n\n dog \nbird\n"), 0644); err != nil {
			t.Fatalf("failed to write labels: %v", err)
		}

		labels, err := LoadLabels(path)
		if err != nil {
			t.Fatalf("failed to load labels: %v", err)
		}
		if len(labels) != 3 || labels[1] != "dog" {
			t.Errorf("unexpected labels %v", labels)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		if err := os.WriteFile(path, []byte("\n"), 0644); err != nil {
			t.Fatalf("failed to write labels: %v", err)
		}
		if _, err := LoadLabels(path); err == nil {
			t.Error("expected error for empty labels file")
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
			t.Error("expected error for missing labels file")
		}
	})
}
