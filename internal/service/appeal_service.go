package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"decentra/internal/models"
	"decentra/internal/repository"
)

type AppealStore interface {
	Create(ctx context.Context, appeal models.Appeal) (models.Appeal, error)
	GetByID(ctx context.Context, id int64) (models.Appeal, error)
	List(ctx context.Context, limit, offset int) ([]models.Appeal, error)
	SetAppealed(ctx context.Context, id int64, appealed bool) (models.Appeal, error)
}

type PhotoViewer interface {
	Views(ctx context.Context, photoIDs []int64) ([]PhotoView, error)
}

type AppealService struct {
	appeals AppealStore
	users   UserReader
	photos  PhotoViewer
	log     zerolog.Logger
}

func NewAppealService(appeals AppealStore, users UserReader, photos PhotoViewer, log zerolog.Logger) *AppealService {
	return &AppealService{
		appeals: appeals,
		users:   users,
		photos:  photos,
		log:     log,
	}
}

type CreateAppealInput struct {
	PhotoIDs    []int64
	Description string
}

// Create files an appeal against photos from the caller's current set.
func (s *AppealService) Create(ctx context.Context, userID int64, input CreateAppealInput) (models.Appeal, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return models.Appeal{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if len(input.PhotoIDs) == 0 {
		return models.Appeal{}, fmt.Errorf("%w: at least one photo id is required", ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Appeal{}, ErrNotAuthenticated
		}
		return models.Appeal{}, fmt.Errorf("load user: %w", err)
	}
	if len(user.PhotoIDs) == 0 {
		return models.Appeal{}, fmt.Errorf("%w: user has no photos", ErrInvalidInput)
	}

	owned := make(map[int64]struct{}, len(user.PhotoIDs))
	for _, id := range user.PhotoIDs {
		owned[id] = struct{}{}
	}
	photoIDs := make([]int64, 0, len(input.PhotoIDs))
	seen := make(map[int64]struct{}, len(input.PhotoIDs))
	var foreign []string
	for _, id := range input.PhotoIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := owned[id]; !ok {
			foreign = append(foreign, fmt.Sprint(id))
			continue
		}
		photoIDs = append(photoIDs, id)
	}
	if len(foreign) > 0 {
		return models.Appeal{}, fmt.Errorf("%w: invalid photo ids: %s", ErrInvalidInput, strings.Join(foreign, ", "))
	}

	views, err := s.photos.Views(ctx, photoIDs)
	if err != nil {
		return models.Appeal{}, err
	}
	if len(views) != len(photoIDs) {
		return models.Appeal{}, fmt.Errorf("%w: some photos no longer exist", ErrInvalidInput)
	}

	appeal, err := s.appeals.Create(ctx, models.Appeal{
		UserID:      userID,
		PhotoIDs:    photoIDs,
		Description: description,
	})
	if err != nil {
		return models.Appeal{}, fmt.Errorf("create appeal: %w", err)
	}

	s.log.Info().Int64("appeal_id", appeal.ID).Int64("user_id", userID).Msg("appeal submitted")
	return appeal, nil
}

func (s *AppealService) List(ctx context.Context, limit, offset int) ([]models.Appeal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	appeals, err := s.appeals.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	return appeals, nil
}

type AppealDetail struct {
	Appeal models.Appeal
	Photos []PhotoView
}

func (s *AppealService) Get(ctx context.Context, id int64) (AppealDetail, error) {
	appeal, err := s.appeals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAppealNotFound) {
			return AppealDetail{}, ErrNotFound
		}
		return AppealDetail{}, fmt.Errorf("load appeal: %w", err)
	}

	photos, err := s.photos.Views(ctx, appeal.PhotoIDs)
	if err != nil {
		return AppealDetail{}, err
	}
	return AppealDetail{Appeal: appeal, Photos: photos}, nil
}

func (s *AppealService) SetStatus(ctx context.Context, id int64, appealed bool) (models.Appeal, error) {
	appeal, err := s.appeals.SetAppealed(ctx, id, appealed)
	if err != nil {
		if errors.Is(err, repository.ErrAppealNotFound) {
			return models.Appeal{}, ErrNotFound
		}
		return models.Appeal{}, fmt.Errorf("update appeal: %w", err)
	}
	s.log.Info().Int64("appeal_id", id).Bool("appealed", appealed).Msg("appeal status changed")
	return appeal, nil
}
