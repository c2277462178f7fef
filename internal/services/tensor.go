package services

import (
	"image"
	"math"
	"sort"
	"strconv"

	"golang.org/x/image/draw"
)

// Resize scales img to width x height with bilinear interpolation, ignoring aspect ratio.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Float32Tensor resizes img and returns its pixels as height x width x RGB floats, each channel
// normalised to (v - mean) / std.
func Float32Tensor(img image.Image, width, height int, mean, std float32) []float32 {
	if std == 0 {
		std = 1
	}

	rgba := Resize(img, width, height)
	out := make([]float32, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := rgba.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				out = append(out, (float32(rgba.Pix[off+c])-mean)/std)
			}
		}
	}
	return out
}

// Uint8Tensor resizes img and returns its raw RGB bytes in height x width x channel order.
func Uint8Tensor(img image.Image, width, height int) []uint8 {
	rgba := Resize(img, width, height)
	out := make([]uint8, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := rgba.PixOffset(x, y)
			out = append(out, rgba.Pix[off], rgba.Pix[off+1], rgba.Pix[off+2])
		}
	}
	return out
}

// Softmax converts raw scores into probabilities that sum to 1.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float32, len(scores))
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - maxScore))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// Probabilities reports whether every score already lies within [0,1].
func Probabilities(scores []float32) bool {
	for _, s := range scores {
		if s < 0 || s > 1 || math.IsNaN(float64(s)) {
			return false
		}
	}
	return true
}

// Rank pairs scores with labels and sorts them best first. Ties keep label order.
// Scores beyond the label list are reported with their index as the label.
func Rank(labels []string, scores []float32) []Prediction {
	preds := make([]Prediction, len(scores))
	for i, s := range scores {
		label := strconv.Itoa(i)
		if i < len(labels) {
			label = labels[i]
		}
		preds[i] = Prediction{Label: label, Confidence: float64(s)}
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
	return preds
}
