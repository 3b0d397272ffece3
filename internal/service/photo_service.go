package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"decentra/internal/analysis"
	"decentra/internal/ids"
	"decentra/internal/media/sniffer"
	"decentra/internal/models"
	"decentra/internal/queue"
	"decentra/internal/repository"
)

const MaxPhotoSize = 10 << 20

var ErrAnalysisDeferred = errors.New("analysis deferred")

type PhotoStore interface {
	ReplaceUserSet(ctx context.Context, userID int64, photos []models.Photo) ([]models.Photo, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Photo, error)
	ListPending(ctx context.Context, before time.Time, limit int) ([]models.Photo, error)
	SaveFindings(ctx context.Context, id int64, findings models.Findings) error
	RecordAttempt(ctx context.Context, id int64) (int, error)
	MarkFailed(ctx context.Context, id int64) error
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	PresignGet(ctx context.Context, bucket, key string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, files []analysis.File) ([]models.Findings, error)
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type PhotoService struct {
	photos   PhotoStore
	users    UserReader
	blobs    BlobStore
	analyzer Analyzer
	tasks    TaskQueue
	log      zerolog.Logger
	now      func() time.Time
}

func NewPhotoService(photos PhotoStore, users UserReader, blobs BlobStore, analyzer Analyzer, tasks TaskQueue, log zerolog.Logger) *PhotoService {
	return &PhotoService{
		photos:   photos,
		users:    users,
		blobs:    blobs,
		analyzer: analyzer,
		tasks:    tasks,
		log:      log,
		now:      time.Now,
	}
}

// UploadFile is one form file as received by the handler.
type UploadFile struct {
	Position models.PhotoPosition
	Filename string
	Data     []byte
}

type UploadResult struct {
	PhotoIDs []int64
	Analyzed bool
}

// Upload validates a full four-sided photo set, stores the bytes, analyzes
// them and replaces the user's current set. When the analyzer is down the
// photos are kept pending and handed to the worker.
func (s *PhotoService) Upload(ctx context.Context, userID int64, files []UploadFile) (UploadResult, error) {
	ordered, err := orderUpload(files)
	if err != nil {
		return UploadResult{}, err
	}

	photos := make([]models.Photo, len(ordered))
	batch := make([]analysis.File, len(ordered))
	prefix := path.Join(strconv.FormatInt(userID, 10), s.now().UTC().Format("2006/01/02"))
	for i, f := range ordered {
		mime, ext, err := checkImage(f)
		if err != nil {
			return UploadResult{}, err
		}
		photos[i] = models.Photo{
			Position:       f.Position,
			Bucket:         s.blobs.Bucket(),
			ObjectKey:      path.Join(prefix, ids.New()+"."+ext),
			ContentType:    mime,
			SizeBytes:      int64(len(f.Data)),
			AnalysisStatus: models.AnalysisPending,
		}
		batch[i] = analysis.File{Name: f.Filename, ContentType: mime, Data: f.Data}
	}

	for i, p := range photos {
		if err := s.blobs.Put(ctx, p.ObjectKey, batch[i].Data, p.ContentType); err != nil {
			return UploadResult{}, fmt.Errorf("store %s: %w", p.Position, err)
		}
	}

	analyzed := true
	findings, err := s.analyzer.Analyze(ctx, batch)
	if err != nil {
		analyzed = false
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("analysis unavailable, deferring to worker")
	} else {
		for i := range photos {
			photos[i].Findings = findings[i]
			photos[i].AnalysisStatus = models.AnalysisDone
		}
	}

	stored, err := s.photos.ReplaceUserSet(ctx, userID, photos)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return UploadResult{}, ErrNotAuthenticated
		}
		return UploadResult{}, fmt.Errorf("save photos: %w", err)
	}

	photoIDs := make([]int64, len(stored))
	for i, p := range stored {
		photoIDs[i] = p.ID
	}

	if !analyzed {
		if err := s.tasks.Enqueue(ctx, queue.Task{Type: queue.TaskAnalyze, PhotoIDs: photoIDs}); err != nil {
			// The sweep picks the set up later.
			s.log.Error().Err(err).Int64("user_id", userID).Msg("enqueue analysis failed")
		}
	}

	return UploadResult{PhotoIDs: photoIDs, Analyzed: analyzed}, nil
}

func orderUpload(files []UploadFile) ([]UploadFile, error) {
	byPosition := make(map[models.PhotoPosition]UploadFile, len(files))
	for _, f := range files {
		if !knownPosition(f.Position) {
			return nil, fmt.Errorf("%w: unexpected photo %q", ErrInvalidInput, f.Position)
		}
		if _, dup := byPosition[f.Position]; dup {
			return nil, fmt.Errorf("%w: duplicate %s photo", ErrInvalidInput, f.Position)
		}
		byPosition[f.Position] = f
	}

	ordered := make([]UploadFile, 0, len(models.PhotoPositions))
	for _, pos := range models.PhotoPositions {
		f, ok := byPosition[pos]
		if !ok {
			return nil, fmt.Errorf("%w: %s photo is required", ErrInvalidInput, pos)
		}
		ordered = append(ordered, f)
	}
	return ordered, nil
}

func knownPosition(pos models.PhotoPosition) bool {
	for _, p := range models.PhotoPositions {
		if p == pos {
			return true
		}
	}
	return false
}

func checkImage(f UploadFile) (string, string, error) {
	if len(f.Data) == 0 {
		return "", "", fmt.Errorf("%w: %s photo is empty", ErrInvalidInput, f.Position)
	}
	if len(f.Data) > MaxPhotoSize {
		return "", "", fmt.Errorf("%w: file %s exceeds maximum size of 10MB", ErrInvalidInput, f.Filename)
	}
	if _, ok := sniffer.TypeFromFilename(f.Filename); !ok {
		return "", "", fmt.Errorf("%w: file %s has unsupported format, allowed: jpg, jpeg, png, bmp", ErrInvalidInput, f.Filename)
	}
	detected, err := sniffer.DetectHead(f.Data)
	if err != nil {
		return "", "", fmt.Errorf("%w: file %s is not a jpeg, png or bmp image", ErrInvalidInput, f.Filename)
	}
	ext := string(detected.Type)
	if detected.Type == sniffer.TypeJPEG {
		ext = "jpg"
	}
	return detected.MIME, ext, nil
}

// PhotoView is a stored photo plus a temporary download link.
type PhotoView struct {
	Photo models.Photo
	URL   string
}

// ListForUser returns the user's current photo set in upload order.
func (s *PhotoService) ListForUser(ctx context.Context, userID int64) ([]PhotoView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.Views(ctx, user.PhotoIDs)
}

// Views loads photos by id, in id order, with download links.
func (s *PhotoService) Views(ctx context.Context, photoIDs []int64) ([]PhotoView, error) {
	photos, err := s.photos.ListByIDs(ctx, photoIDs)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	views := make([]PhotoView, 0, len(photos))
	for _, p := range photos {
		url, err := s.blobs.PresignGet(ctx, p.Bucket, p.ObjectKey)
		if err != nil {
			return nil, err
		}
		views = append(views, PhotoView{Photo: p, URL: url})
	}
	return views, nil
}

// Reanalyze retries analysis for the pending photos among photoIDs. It
// returns ErrAnalysisDeferred while some photo is still below maxAttempts so
// the caller can leave the task for a later retry.
func (s *PhotoService) Reanalyze(ctx context.Context, photoIDs []int64, maxAttempts int) error {
	photos, err := s.photos.ListByIDs(ctx, photoIDs)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}

	pending := photos[:0]
	for _, p := range photos {
		if p.AnalysisStatus == models.AnalysisPending {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	batch := make([]analysis.File, 0, len(pending))
	for _, p := range pending {
		data, err := s.blobs.Get(ctx, p.Bucket, p.ObjectKey)
		if err != nil {
			return s.recordFailure(ctx, pending, maxAttempts, err)
		}
		batch = append(batch, analysis.File{Name: path.Base(p.ObjectKey), ContentType: p.ContentType, Data: data})
	}

	findings, err := s.analyzer.Analyze(ctx, batch)
	if err != nil {
		return s.recordFailure(ctx, pending, maxAttempts, err)
	}

	for i, p := range pending {
		if err := s.photos.SaveFindings(ctx, p.ID, findings[i]); err != nil {
			return fmt.Errorf("save findings %d: %w", p.ID, err)
		}
	}
	s.log.Info().Int("photos", len(pending)).Msg("deferred analysis completed")
	return nil
}

func (s *PhotoService) recordFailure(ctx context.Context, pending []models.Photo, maxAttempts int, cause error) error {
	retry := false
	for _, p := range pending {
		attempts, err := s.photos.RecordAttempt(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("record attempt %d: %w", p.ID, err)
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			if err := s.photos.MarkFailed(ctx, p.ID); err != nil {
				return fmt.Errorf("mark failed %d: %w", p.ID, err)
			}
			s.log.Warn().Int64("photo_id", p.ID).Int("attempts", attempts).Msg("analysis given up")
			continue
		}
		retry = true
	}
	if retry {
		return fmt.Errorf("%w: %v", ErrAnalysisDeferred, cause)
	}
	return nil
}

// SweepPending enqueues one analyze task per user for photos that have been
// pending longer than minAge.
func (s *PhotoService) SweepPending(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	photos, err := s.photos.ListPending(ctx, s.now().Add(-minAge), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	byUser := make(map[int64][]int64)
	var order []int64
	for _, p := range photos {
		if _, seen := byUser[p.UserID]; !seen {
			order = append(order, p.UserID)
		}
		byUser[p.UserID] = append(byUser[p.UserID], p.ID)
	}

	for _, userID := range order {
		if err := s.tasks.Enqueue(ctx, queue.Task{Type: queue.TaskAnalyze, PhotoIDs: byUser[userID]}); err != nil {
			return 0, err
		}
	}
	return len(photos), nil
}
