package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decentra/internal/database"
	"decentra/internal/models"
)

type AppealRepository struct {
	pool *pgxpool.Pool
}

func NewAppealRepository(pool *pgxpool.Pool) *AppealRepository {
	return &AppealRepository{pool: pool}
}

const appealColumns = `id, user_id, photo_ids, description, appealed, created_at, updated_at`

// Create stores the appeal and links it to its author.
func (r *AppealRepository) Create(ctx context.Context, appeal models.Appeal) (models.Appeal, error) {
	const insert = `
		INSERT INTO appeals (user_id, photo_ids, description, appealed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	if appeal.PhotoIDs == nil {
		appeal.PhotoIDs = []int64{}
	}

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insert,
			appeal.UserID,
			appeal.PhotoIDs,
			appeal.Description,
			appeal.Appealed,
		).Scan(&appeal.ID, &appeal.CreatedAt, &appeal.UpdatedAt); err != nil {
			return fmt.Errorf("insert appeal: %w", err)
		}

		cmd, err := tx.Exec(ctx, `UPDATE users SET appeal_id = $2 WHERE id = $1`, appeal.UserID, appeal.ID)
		if err != nil {
			return fmt.Errorf("link appeal: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return models.Appeal{}, err
	}
	return appeal, nil
}

func (r *AppealRepository) GetByID(ctx context.Context, id int64) (models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`
	return scanAppeal(r.pool.QueryRow(ctx, query, id))
}

func (r *AppealRepository) List(ctx context.Context, limit, offset int) ([]models.Appeal, error) {
	query := `SELECT ` + appealColumns + `
		FROM appeals
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appeals []models.Appeal
	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
	}
	return appeals, rows.Err()
}

func (r *AppealRepository) SetAppealed(ctx context.Context, id int64, appealed bool) (models.Appeal, error) {
	query := `UPDATE appeals SET appealed = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + appealColumns
	return scanAppeal(r.pool.QueryRow(ctx, query, id, appealed))
}

func scanAppeal(row pgx.Row) (models.Appeal, error) {
	var appeal models.Appeal
	if err := row.Scan(
		&appeal.ID,
		&appeal.UserID,
		&appeal.PhotoIDs,
		&appeal.Description,
		&appeal.Appealed,
		&appeal.CreatedAt,
		&appeal.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appeal{}, ErrAppealNotFound
		}
		return models.Appeal{}, err
	}
	return appeal, nil
}
