package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/visionary/internal/shared"
)

// Album is a named grouping of [Classification] records.
//
// The name is the grouping key used by find-or-create lookups. It is not unique: renaming may
// leave two albums sharing a name.
type Album struct {
	id              string
	sequence        int
	name            string
	photoCount      int
	classifications []*Classification
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewAlbum creates an [Album] with the given sequence and name and the current time as its timestamps.
func NewAlbum(sequence int, name string) *Album {
	now := time.Now().UTC()
	return &Album{
		sequence:  sequence,
		name:      name,
		createdAt: now,
		updatedAt: now,
	}
}

func (a *Album) ID() string                         { return a.id }
func (a *Album) Sequence() int                      { return a.sequence }
func (a *Album) Name() string                       { return a.name }
func (a *Album) PhotoCount() int                    { return a.photoCount }
func (a *Album) Classifications() []*Classification { return a.classifications }
func (a *Album) CreatedAt() time.Time               { return a.createdAt }
func (a *Album) UpdatedAt() time.Time               { return a.updatedAt }
func (a *Album) DeletedAt() *time.Time              { return a.deletedAt }
func (a *Album) IsDeleted() bool                    { return a.deletedAt != nil }

func (a *Album) SetID(id string)                { a.id = id }
func (a *Album) SetSequence(seq int)            { a.sequence = seq }
func (a *Album) SetName(name string)            { a.name = name }
func (a *Album) SetPhotoCount(n int)            { a.photoCount = n }
func (a *Album) SetCreatedAt(t time.Time)       { a.createdAt = t }
func (a *Album) SetUpdatedAt(t time.Time)       { a.updatedAt = t }
func (a *Album) SetDeletedAt(t *time.Time)      { a.deletedAt = t }

// SetClassifications replaces the album's own photo collection and its count.
func (a *Album) SetClassifications(c []*Classification) {
	a.classifications = c
	a.photoCount = len(c)
}

// Validate checks that the album has an ID and a non-blank name.
func (a *Album) Validate() error {
	if a.id == "" {
		return fmt.Errorf("%w: album id is required", shared.ErrInvalidInput)
	}
	if shared.NormalizeName(a.name) == "" {
		return fmt.Errorf("%w: album name is required", shared.ErrInvalidInput)
	}
	return nil
}

type albumJSON struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	PhotoCount      int               `json:"photo_count"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Classifications []*Classification `json:"classifications,omitempty"`
}

// MarshalJSON implements [json.Marshaler].
func (a *Album) MarshalJSON() ([]byte, error) {
	return json.Marshal(albumJSON{
		ID:              a.id,
		Name:            a.name,
		PhotoCount:      a.photoCount,
		CreatedAt:       a.createdAt,
		UpdatedAt:       a.updatedAt,
		Classifications: a.classifications,
	})
}
