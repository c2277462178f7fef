package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
)

const albumColumns = `
	a.id, a.sequence, a.name, a.created_at, a.updated_at, a.deleted_at,
	(SELECT COUNT(*) FROM classifications c WHERE c.album_id = a.id AND c.deleted_at IS NULL)
`

// AlbumRepository implements models.Repository[*models.Album].
//
// Reads fill the album's live photo count. Name lookups are exact and prefer the oldest album.
type AlbumRepository struct {
	db DBTX
}

// NewAlbumRepository creates a new AlbumRepository bound to db, which may be a transaction.
func NewAlbumRepository(db DBTX) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create inserts a new album with a generated ID and sequence
func (r *AlbumRepository) Create(album *models.Album) error {
	sequence, err := NextSequence(r.db, "albums")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	album.SetID(shared.GenerateID())
	album.SetSequence(sequence)

	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO albums (id, sequence, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, album.ID(), sequence, album.Name(), album.CreatedAt(), album.UpdatedAt())
	if err != nil {
		return fmt.Errorf("%w: failed to insert album: %w", shared.ErrPersistence, err)
	}

	return nil
}

// Get retrieves a live album by ID
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums a WHERE a.id = ? AND a.deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// FindByName retrieves the oldest live album whose name equals name exactly.
func (r *AlbumRepository) FindByName(name string) (*models.Album, error) {
	query := `
		SELECT ` + albumColumns + `
		FROM albums a
		WHERE a.name = ? AND a.deleted_at IS NULL
		ORDER BY a.sequence ASC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(query, name), name)
}

// Update persists the album's name
func (r *AlbumRepository) Update(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `UPDATE albums SET name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, album.Name(), now, album.ID())
	if err != nil {
		return fmt.Errorf("%w: failed to update album: %w", shared.ErrPersistence, err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: album %s", shared.ErrNotFound, album.ID())
	}

	album.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes an album by ID.
//
// Deleting an album that is already deleted does nothing. Classifications are not touched here.
func (r *AlbumRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE albums SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete album: %w", shared.ErrPersistence, err)
	}

	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return softDeleteState(r.db, "albums", "album", id)
	}
	return nil
}

// List retrieves live albums in insertion order.
//
// Supported criteria: "name" (exact match).
func (r *AlbumRepository) List(criteria map[string]any) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums a WHERE a.deleted_at IS NULL`
	args := []any{}

	if name, ok := criteria["name"].(string); ok && name != "" {
		query += " AND a.name = ?"
		args = append(args, name)
	}

	query += " ORDER BY a.sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query albums: %w", shared.ErrPersistence, err)
	}
	defer rows.Close()

	albums := []*models.Album{}
	for rows.Next() {
		album, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %w", shared.ErrPersistence, err)
	}

	return albums, nil
}

// Purge hard-deletes soft-deleted albums and returns how many were removed.
func (r *AlbumRepository) Purge() (int, error) {
	result, err := r.db.Exec(`DELETE FROM albums WHERE deleted_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge albums: %w", shared.ErrPersistence, err)
	}
	n, err := affected(result)
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single row into a [models.Album], reporting [shared.ErrNotFound] for no rows
func (r *AlbumRepository) scanOne(row *sql.Row, key string) (*models.Album, error) {
	album, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, key)
	}
	return album, err
}

func (r *AlbumRepository) scan(row scanner) (*models.Album, error) {
	var (
		id         string
		sequence   int
		name       string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
		photoCount int
	)

	err := row.Scan(&id, &sequence, &name, &createdAt, &updatedAt, &deletedAt, &photoCount)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan album: %w", shared.ErrPersistence, err)
	}

	album := models.NewAlbum(sequence, name)
	album.SetID(id)
	album.SetCreatedAt(createdAt)
	album.SetUpdatedAt(updatedAt)
	album.SetPhotoCount(photoCount)
	if deletedAt.Valid {
		album.SetDeletedAt(&deletedAt.Time)
	}

	return album, nil
}
