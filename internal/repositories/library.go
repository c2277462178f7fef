package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/vision"
)

// Library is the opened photo library: albums, their classifications, and the writer lock.
//
// Every mutation holds the lock and runs in one immediate transaction, so concurrent find-or-create calls
// with the same name resolve to one album. Reads do not take the lock.
type Library struct {
	db              *sql.DB
	owned           bool
	mu              sync.Mutex
	albums          *AlbumRepository
	classifications *ClassificationRepository
}

// ClassificationOption sets optional fields on a classification before it is persisted.
type ClassificationOption func(*models.Classification)

// WithFingerprint attaches a perceptual hash.
func WithFingerprint(h uint64) ClassificationOption {
	return func(c *models.Classification) { c.SetFingerprint(&h) }
}

// WithCapturedAt attaches the capture time read from image metadata.
func WithCapturedAt(t time.Time) ClassificationOption {
	return func(c *models.Classification) { c.SetCapturedAt(&t) }
}

// Match is a classification returned by [Library.FindSimilar] with its fingerprint distance.
type Match struct {
	Classification *models.Classification `json:"classification"`
	Distance       int                    `json:"distance"`
}

// PurgeResult reports how many soft-deleted rows [Library.Purge] removed.
type PurgeResult struct {
	Albums          int `json:"albums"`
	Classifications int `json:"classifications"`
}

// Open wraps an existing database whose schema is already migrated. Close leaves db open.
func Open(db *sql.DB) *Library {
	return &Library{
		db:              db,
		albums:          NewAlbumRepository(db),
		classifications: NewClassificationRepository(db),
	}
}

// OpenPath opens the SQLite database at path, applies pending migrations, and returns a [Library]
// that owns the connection.
func OpenPath(path string) (*Library, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}

	lib := Open(db)
	lib.owned = true
	return lib, nil
}

// Close releases the database if the library opened it.
func (l *Library) Close() error {
	if !l.owned {
		return nil
	}
	return l.db.Close()
}

// DB returns the underlying database.
func (l *Library) DB() *sql.DB { return l.db }

// write runs fn under the writer lock in a single transaction, committing only if fn succeeds.
func (l *Library) write(fn func(albums *AlbumRepository, classifications *ClassificationRepository) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", shared.ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := fn(NewAlbumRepository(tx), NewClassificationRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", shared.ErrPersistence, err)
	}
	return nil
}

// FindOrCreateAlbum returns the live album named name, creating it when none exists.
func (l *Library) FindOrCreateAlbum(name string) (*models.Album, error) {
	var album *models.Album
	err := l.write(func(albums *AlbumRepository, _ *ClassificationRepository) error {
		var err error
		album, err = findOrCreate(albums, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

func findOrCreate(albums *AlbumRepository, name string) (*models.Album, error) {
	name = shared.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: album name is required", shared.ErrInvalidInput)
	}

	album, err := albums.FindByName(name)
	if err == nil {
		return album, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	album = models.NewAlbum(0, name)
	if err := albums.Create(album); err != nil {
		return nil, err
	}
	return album, nil
}

// CreateClassification records a classified photo in the album named label, creating the album
// if needed. The album lookup and the insert commit together: on failure neither is visible.
func (l *Library) CreateClassification(label string, confidence float64, timestamp time.Time, image []byte, opts ...ClassificationOption) (*models.Classification, error) {
	label = shared.NormalizeName(label)
	if err := models.ValidatePrediction(label, confidence); err != nil {
		return nil, err
	}

	c := models.NewClassification(0, label, confidence, timestamp, image)
	for _, opt := range opts {
		opt(c)
	}

	err := l.write(func(albums *AlbumRepository, classifications *ClassificationRepository) error {
		album, err := findOrCreate(albums, label)
		if err != nil {
			return err
		}
		c.LinkAlbum(album)
		return classifications.Create(c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetAlbum retrieves a live album with its photo count.
func (l *Library) GetAlbum(id string) (*models.Album, error) {
	return l.albums.Get(id)
}

// LoadAlbum retrieves a live album with its classifications in ascending timestamp order.
func (l *Library) LoadAlbum(id string) (*models.Album, error) {
	album, err := l.albums.Get(id)
	if err != nil {
		return nil, err
	}

	classifications, err := l.classifications.ListByAlbum(id, models.OrderByTimestamp)
	if err != nil {
		return nil, err
	}

	album.SetClassifications(classifications)
	return album, nil
}

// ListAlbums returns all live albums in creation order.
func (l *Library) ListAlbums() ([]*models.Album, error) {
	return l.albums.List(nil)
}

// ListClassifications returns an album's live classifications in the given order.
func (l *Library) ListClassifications(albumID string, order models.ClassificationOrder) ([]*models.Classification, error) {
	if _, err := l.albums.Get(albumID); err != nil {
		return nil, err
	}
	return l.classifications.ListByAlbum(albumID, order)
}

// GetClassification retrieves a live classification.
func (l *Library) GetClassification(id string) (*models.Classification, error) {
	return l.classifications.Get(id)
}

// DeleteClassification soft-deletes a classification. Deleting it again is a no-op.
func (l *Library) DeleteClassification(id string) error {
	return l.write(func(_ *AlbumRepository, classifications *ClassificationRepository) error {
		return classifications.Delete(id)
	})
}

// RenameAlbum changes an album's name in place. The new name is not checked for uniqueness.
func (l *Library) RenameAlbum(albumID, newName string) (*models.Album, error) {
	newName = shared.NormalizeName(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: album name is required", shared.ErrInvalidInput)
	}

	var album *models.Album
	err := l.write(func(albums *AlbumRepository, _ *ClassificationRepository) error {
		var err error
		if album, err = albums.Get(albumID); err != nil {
			return err
		}
		album.SetName(newName)
		return albums.Update(album)
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

// MoveClassification reassigns a classification to another live album.
// Moving it to the album it already belongs to changes nothing.
func (l *Library) MoveClassification(id, toAlbumID string) (*models.Classification, error) {
	var c *models.Classification
	err := l.write(func(albums *AlbumRepository, classifications *ClassificationRepository) error {
		var err error
		if c, err = classifications.Get(id); err != nil {
			return err
		}

		target, err := albums.Get(toAlbumID)
		if err != nil {
			return err
		}

		if c.AlbumID() == target.ID() {
			return nil
		}

		c.LinkAlbum(target)
		return classifications.Update(c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteAlbum soft-deletes an album together with all its live classifications.
// Deleting it again is a no-op.
func (l *Library) DeleteAlbum(id string) error {
	return l.write(func(albums *AlbumRepository, classifications *ClassificationRepository) error {
		if _, err := classifications.DeleteByAlbum(id); err != nil {
			return err
		}
		return albums.Delete(id)
	})
}

// FindSimilar returns live classifications other than id whose fingerprint lies within maxDistance
// bits of its fingerprint, nearest first. A classification without a fingerprint has no matches.
func (l *Library) FindSimilar(id string, maxDistance int) ([]Match, error) {
	source, err := l.classifications.Get(id)
	if err != nil {
		return nil, err
	}
	if source.Fingerprint() == nil {
		return []Match{}, nil
	}

	candidates, err := l.classifications.List(map[string]any{"fingerprinted": true})
	if err != nil {
		return nil, err
	}

	matches := []Match{}
	for _, c := range candidates {
		if c.ID() == source.ID() {
			continue
		}
		d, err := vision.Distance(*source.Fingerprint(), *c.Fingerprint())
		if err != nil {
			return nil, fmt.Errorf("failed to compare fingerprints: %w", err)
		}
		if d <= maxDistance {
			matches = append(matches, Match{Classification: c, Distance: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

// Purge hard-deletes soft-deleted albums and classifications.
func (l *Library) Purge() (PurgeResult, error) {
	var result PurgeResult
	err := l.write(func(albums *AlbumRepository, classifications *ClassificationRepository) error {
		var err error
		if result.Classifications, err = classifications.Purge(); err != nil {
			return err
		}
		result.Albums, err = albums.Purge()
		return err
	})
	return result, err
}
