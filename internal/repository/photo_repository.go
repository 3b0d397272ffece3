package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decentra/internal/database"
	"decentra/internal/models"
)

type PhotoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `id, user_id, position, bucket, object_key, content_type, size_bytes,
	rust, dent, scratch, dust, damage_classes, masks,
	analysis_status, analysis_attempts, last_updated, created_at`

// ReplaceUserSet stores a fresh photo set and points the user's photo_ids
// at it in one transaction.
func (r *PhotoRepository) ReplaceUserSet(ctx context.Context, userID int64, photos []models.Photo) ([]models.Photo, error) {
	stored := make([]models.Photo, 0, len(photos))

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		ids := make([]int64, 0, len(photos))
		for _, photo := range photos {
			photo.UserID = userID
			saved, err := insertPhoto(ctx, tx, photo)
			if err != nil {
				return err
			}
			stored = append(stored, saved)
			ids = append(ids, saved.ID)
		}

		cmd, err := tx.Exec(ctx, `UPDATE users SET photo_ids = $2 WHERE id = $1`, userID, ids)
		if err != nil {
			return fmt.Errorf("update user photos: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func insertPhoto(ctx context.Context, q database.DBTX, photo models.Photo) (models.Photo, error) {
	const query = `
		INSERT INTO photos (
			user_id, position, bucket, object_key, content_type, size_bytes,
			rust, dent, scratch, dust, damage_classes, masks,
			analysis_status, analysis_attempts
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14
		)
		RETURNING id, last_updated, created_at
	`

	classes, masks, err := encodeFindings(photo.Findings)
	if err != nil {
		return models.Photo{}, err
	}

	err = q.QueryRow(ctx, query,
		photo.UserID,
		photo.Position,
		photo.Bucket,
		photo.ObjectKey,
		photo.ContentType,
		photo.SizeBytes,
		photo.Findings.Rust,
		photo.Findings.Dent,
		photo.Findings.Scratch,
		photo.Findings.Dust,
		classes,
		masks,
		photo.AnalysisStatus,
		photo.AnalysisAttempts,
	).Scan(&photo.ID, &photo.LastUpdated, &photo.CreatedAt)
	if err != nil {
		return models.Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	return photo, nil
}

func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`
	photo, err := scanPhoto(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Photo{}, ErrPhotoNotFound
	}
	return photo, err
}

// ListByIDs returns the photos in the order of ids. Unknown ids are skipped.
func (r *PhotoRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + photoColumns + `
		FROM photos
		WHERE id = ANY($1)
		ORDER BY array_position($1, id)`
	return r.list(ctx, query, ids)
}

// ListPending returns photos still waiting for analysis that were last
// touched before the cutoff.
func (r *PhotoRepository) ListPending(ctx context.Context, before time.Time, limit int) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + `
		FROM photos
		WHERE analysis_status = 'pending' AND last_updated < $1
		ORDER BY last_updated
		LIMIT $2`
	return r.list(ctx, query, before, limit)
}

func (r *PhotoRepository) SaveFindings(ctx context.Context, id int64, findings models.Findings) error {
	const query = `
		UPDATE photos
		SET rust = $2, dent = $3, scratch = $4, dust = $5,
		    damage_classes = $6, masks = $7,
		    analysis_status = 'done', last_updated = NOW()
		WHERE id = $1
	`
	classes, masks, err := encodeFindings(findings)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query, id,
		findings.Rust, findings.Dent, findings.Scratch, findings.Dust, classes, masks)
	if err != nil {
		return fmt.Errorf("save findings: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// RecordAttempt bumps the analysis attempt counter and returns the new value.
func (r *PhotoRepository) RecordAttempt(ctx context.Context, id int64) (int, error) {
	const query = `
		UPDATE photos
		SET analysis_attempts = analysis_attempts + 1, last_updated = NOW()
		WHERE id = $1
		RETURNING analysis_attempts
	`
	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPhotoNotFound
		}
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return attempts, nil
}

func (r *PhotoRepository) MarkFailed(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE photos SET analysis_status = 'failed', last_updated = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark photo failed: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) list(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanPhoto(row pgx.Row) (models.Photo, error) {
	var (
		photo   models.Photo
		classes []byte
		masks   []byte
	)
	if err := row.Scan(
		&photo.ID,
		&photo.UserID,
		&photo.Position,
		&photo.Bucket,
		&photo.ObjectKey,
		&photo.ContentType,
		&photo.SizeBytes,
		&photo.Findings.Rust,
		&photo.Findings.Dent,
		&photo.Findings.Scratch,
		&photo.Findings.Dust,
		&classes,
		&masks,
		&photo.AnalysisStatus,
		&photo.AnalysisAttempts,
		&photo.LastUpdated,
		&photo.CreatedAt,
	); err != nil {
		return models.Photo{}, err
	}
	if len(classes) > 0 {
		if err := json.Unmarshal(classes, &photo.Findings.DamageClasses); err != nil {
			return models.Photo{}, fmt.Errorf("decode damage classes: %w", err)
		}
	}
	photo.Findings.Masks = json.RawMessage(masks)
	return photo, nil
}

// encodeFindings renders the JSONB columns, defaulting to empty values.
func encodeFindings(f models.Findings) (string, string, error) {
	classes := f.DamageClasses
	if classes == nil {
		classes = []string{}
	}
	encoded, err := json.Marshal(classes)
	if err != nil {
		return "", "", fmt.Errorf("encode damage classes: %w", err)
	}
	masks := `{"instances":[]}`
	if len(f.Masks) > 0 {
		masks = string(f.Masks)
	}
	return string(encoded), masks, nil
}
