package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/visionary/internal/shared"
)

// Classification is one classified photo: the predicted label and its confidence, the
// creation timestamp, optional compressed image bytes, and the owning [Album].
type Classification struct {
	id          string
	sequence    int
	albumID     string
	albumName   string
	label       string
	confidence  float64
	timestamp   time.Time
	image       []byte
	fingerprint *uint64
	capturedAt  *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewClassification creates an unlinked [Classification].
//
// The timestamp is normalised to UTC so that chronological ordering holds across zones.
func NewClassification(sequence int, label string, confidence float64, timestamp time.Time, image []byte) *Classification {
	now := time.Now().UTC()
	return &Classification{
		sequence:   sequence,
		label:      label,
		confidence: confidence,
		timestamp:  timestamp.UTC(),
		image:      image,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (c *Classification) ID() string             { return c.id }
func (c *Classification) Sequence() int          { return c.sequence }
func (c *Classification) AlbumID() string        { return c.albumID }
func (c *Classification) AlbumName() string      { return c.albumName }
func (c *Classification) Label() string          { return c.label }
func (c *Classification) Confidence() float64    { return c.confidence }
func (c *Classification) Timestamp() time.Time   { return c.timestamp }
func (c *Classification) Image() []byte          { return c.image }
func (c *Classification) HasImage() bool         { return len(c.image) > 0 }
func (c *Classification) Fingerprint() *uint64   { return c.fingerprint }
func (c *Classification) CapturedAt() *time.Time { return c.capturedAt }
func (c *Classification) CreatedAt() time.Time   { return c.createdAt }
func (c *Classification) UpdatedAt() time.Time   { return c.updatedAt }
func (c *Classification) DeletedAt() *time.Time  { return c.deletedAt }
func (c *Classification) IsDeleted() bool        { return c.deletedAt != nil }

func (c *Classification) SetID(id string)           { c.id = id }
func (c *Classification) SetSequence(seq int)       { c.sequence = seq }
func (c *Classification) SetImage(b []byte)         { c.image = b }
func (c *Classification) SetFingerprint(h *uint64)  { c.fingerprint = h }
func (c *Classification) SetCreatedAt(t time.Time)  { c.createdAt = t }
func (c *Classification) SetUpdatedAt(t time.Time)  { c.updatedAt = t }
func (c *Classification) SetDeletedAt(t *time.Time) { c.deletedAt = t }

// SetCapturedAt records the capture time read from image metadata.
func (c *Classification) SetCapturedAt(t *time.Time) {
	if t != nil {
		utc := t.UTC()
		t = &utc
	}
	c.capturedAt = t
}

// LinkAlbum sets the owning album.
func (c *Classification) LinkAlbum(album *Album) {
	c.albumID = album.ID()
	c.albumName = album.Name()
}

// SetAlbum sets the owning album by ID and name, as read back from storage.
func (c *Classification) SetAlbum(id, name string) {
	c.albumID = id
	c.albumName = name
}

// Validate checks the label, the confidence range, and the album link.
func (c *Classification) Validate() error {
	if c.id == "" {
		return fmt.Errorf("%w: classification id is required", shared.ErrInvalidInput)
	}
	if err := ValidatePrediction(c.label, c.confidence); err != nil {
		return err
	}
	if c.albumID == "" {
		return fmt.Errorf("%w: classification must belong to an album", shared.ErrInvalidInput)
	}
	if c.timestamp.IsZero() {
		return fmt.Errorf("%w: classification timestamp is required", shared.ErrInvalidInput)
	}
	return nil
}

// ValidatePrediction checks that label is non-blank and confidence lies within [0,1].
func ValidatePrediction(label string, confidence float64) error {
	if shared.NormalizeName(label) == "" {
		return fmt.Errorf("%w: label is required", shared.ErrInvalidInput)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", shared.ErrInvalidInput, confidence)
	}
	return nil
}

type classificationJSON struct {
	ID         string     `json:"id"`
	AlbumID    string     `json:"album_id"`
	AlbumName  string     `json:"album_name"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
	HasImage   bool       `json:"has_image"`
	ImageBytes int        `json:"image_bytes"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// MarshalJSON implements [json.Marshaler]. Image bytes are omitted, only their size is reported.
func (c *Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(classificationJSON{
		ID:         c.id,
		AlbumID:    c.albumID,
		AlbumName:  c.albumName,
		Label:      c.label,
		Confidence: c.confidence,
		Timestamp:  c.timestamp,
		HasImage:   c.HasImage(),
		ImageBytes: len(c.image),
		CapturedAt: c.capturedAt,
	})
}
