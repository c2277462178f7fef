package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"time"

	"github.com/bep/imagemeta"
	"github.com/corona10/goimagehash"
)

const exifDateTime = "2006:01:02 15:04:05"

var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
}

// Compress re-encodes img as JPEG at the given quality (1-100).
func Compress(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d outside [1,100]", quality)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Fingerprint returns the 64-bit difference hash of img.
func Fingerprint(img image.Image) (uint64, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("failed to hash image: %w", err)
	}
	return hash.GetHash(), nil
}

// Distance returns the number of differing bits between two fingerprints.
func Distance(a, b uint64) (int, error) {
	return goimagehash.NewImageHash(a, goimagehash.DHash).Distance(goimagehash.NewImageHash(b, goimagehash.DHash))
}

// CaptureTime reads the EXIF DateTimeOriginal tag from raw image bytes of the given format
// ("jpeg", "png" or "webp"). It reports false when the image has no readable capture time.
func CaptureTime(data []byte, format string) (time.Time, bool) {
	imageFormat, ok := metaFormats[format]
	if !ok || len(data) == 0 {
		return time.Time{}, false
	}

	var (
		captured time.Time
		found    bool
	)

	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imageFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && ti.Tag == "DateTimeOriginal"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch v := ti.Value.(type) {
			case time.Time:
				captured, found = v, !v.IsZero()
			case string:
				if t, err := time.Parse(exifDateTime, strings.TrimRight(v, "\x00 ")); err == nil {
					captured, found = t, true
				}
			}
			return nil
		},
	})
	if err != nil || !found {
		return time.Time{}, false
	}

	return captured.UTC(), true
}
