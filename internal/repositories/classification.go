package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
)

const classificationSelect = `
	SELECT c.id, c.sequence, c.album_id, a.name, c.label, c.confidence, c.taken_at, c.image,
		c.fingerprint, c.captured_at, c.created_at, c.updated_at, c.deleted_at
	FROM classifications c
	JOIN albums a ON a.id = c.album_id
`

// ClassificationRepository implements models.Repository[*models.Classification].
//
// The album name on each returned record is read through the owning album, so renames are
// visible without touching classification rows.
type ClassificationRepository struct {
	db DBTX
}

// NewClassificationRepository creates a new ClassificationRepository bound to db, which may be a transaction.
func NewClassificationRepository(db DBTX) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

// Create inserts a new classification with a generated ID and sequence.
// The classification must already be linked to an album.
func (r *ClassificationRepository) Create(c *models.Classification) error {
	sequence, err := NextSequence(r.db, "classifications")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	c.SetID(shared.GenerateID())
	c.SetSequence(sequence)

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO classifications (id, sequence, album_id, label, confidence, taken_at, image, fingerprint, captured_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		c.ID(),
		sequence,
		c.AlbumID(),
		c.Label(),
		c.Confidence(),
		c.Timestamp(),
		nullBytes(c.Image()),
		fingerprintValue(c.Fingerprint()),
		nullTime(c.CapturedAt()),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert classification: %w", shared.ErrPersistence, err)
	}

	return nil
}

// Get retrieves a live classification by ID
func (r *ClassificationRepository) Get(id string) (*models.Classification, error) {
	row := r.db.QueryRow(classificationSelect+` WHERE c.id = ? AND c.deleted_at IS NULL`, id)

	c, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: classification %s", shared.ErrNotFound, id)
	}
	return c, err
}

// Update persists the classification's album link.
//
// Label, confidence and timestamp are fixed at creation.
func (r *ClassificationRepository) Update(c *models.Classification) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `UPDATE classifications SET album_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, c.AlbumID(), now, c.ID())
	if err != nil {
		return fmt.Errorf("%w: failed to update classification: %w", shared.ErrPersistence, err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: classification %s", shared.ErrNotFound, c.ID())
	}

	c.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a classification by ID.
//
// A record that is already deleted is left alone and nil is returned. An ID that never existed
// yields [shared.ErrNotFound].
func (r *ClassificationRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE classifications SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete classification: %w", shared.ErrPersistence, err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return softDeleteState(r.db, "classifications", "classification", id)
	}
	return nil
}

// DeleteByAlbum soft-deletes every live classification of an album and returns how many were deleted.
func (r *ClassificationRepository) DeleteByAlbum(albumID string) (int, error) {
	result, err := r.db.Exec(`UPDATE classifications SET deleted_at = ? WHERE album_id = ? AND deleted_at IS NULL`, time.Now().UTC(), albumID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete album classifications: %w", shared.ErrPersistence, err)
	}
	n, err := affected(result)
	return int(n), err
}

// List retrieves live classifications.
//
// Supported criteria: "album_id" (string), "order" ([models.ClassificationOrder], confidence by default)
// and "fingerprinted" (bool, only records with a fingerprint).
func (r *ClassificationRepository) List(criteria map[string]any) ([]*models.Classification, error) {
	query := classificationSelect + ` WHERE c.deleted_at IS NULL`
	args := []any{}

	if albumID, ok := criteria["album_id"].(string); ok && albumID != "" {
		query += " AND c.album_id = ?"
		args = append(args, albumID)
	}

	if fp, ok := criteria["fingerprinted"].(bool); ok && fp {
		query += " AND c.fingerprint IS NOT NULL"
	}

	order, _ := criteria["order"].(models.ClassificationOrder)
	switch order {
	case models.OrderByTimestamp:
		query += " ORDER BY c.taken_at ASC, c.sequence ASC"
	default:
		query += " ORDER BY c.confidence DESC, c.sequence ASC"
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query classifications: %w", shared.ErrPersistence, err)
	}
	defer rows.Close()

	classifications := []*models.Classification{}
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		classifications = append(classifications, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %w", shared.ErrPersistence, err)
	}

	return classifications, nil
}

// ListByAlbum retrieves an album's live classifications in the given order.
func (r *ClassificationRepository) ListByAlbum(albumID string, order models.ClassificationOrder) ([]*models.Classification, error) {
	return r.List(map[string]any{"album_id": albumID, "order": order})
}

// Purge hard-deletes soft-deleted classifications, and those whose album is soft-deleted,
// returning how many rows were removed.
func (r *ClassificationRepository) Purge() (int, error) {
	query := `
		DELETE FROM classifications
		WHERE deleted_at IS NOT NULL
		   OR album_id IN (SELECT id FROM albums WHERE deleted_at IS NOT NULL)
	`
	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge classifications: %w", shared.ErrPersistence, err)
	}
	n, err := affected(result)
	return int(n), err
}

func (r *ClassificationRepository) scan(row scanner) (*models.Classification, error) {
	var (
		id          string
		sequence    int
		albumID     string
		albumName   string
		label       string
		confidence  float64
		takenAt     time.Time
		image       []byte
		fingerprint sql.NullInt64
		capturedAt  sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &albumID, &albumName, &label, &confidence, &takenAt, &image,
		&fingerprint, &capturedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan classification: %w", shared.ErrPersistence, err)
	}

	c := models.NewClassification(sequence, label, confidence, takenAt, image)
	c.SetID(id)
	c.SetAlbum(albumID, albumName)
	c.SetCreatedAt(createdAt)
	c.SetUpdatedAt(updatedAt)
	if fingerprint.Valid {
		h := uint64(fingerprint.Int64)
		c.SetFingerprint(&h)
	}
	if capturedAt.Valid {
		c.SetCapturedAt(&capturedAt.Time)
	}
	if deletedAt.Valid {
		c.SetDeletedAt(&deletedAt.Time)
	}

	return c, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// fingerprintValue stores the hash bit pattern as a signed integer since database/sql rejects
// uint64 values with the high bit set.
func fingerprintValue(h *uint64) any {
	if h == nil {
		return nil
	}
	return int64(*h)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
