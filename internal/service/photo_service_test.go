package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decentra/internal/models"
	"decentra/internal/queue"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

type photoFixture struct {
	svc      *PhotoService
	users    *memUsers
	photos   *memPhotos
	blobs    *memBlobs
	analyzer *stubAnalyzer
	queue    *memQueue
	userID   int64
}

func newPhotoFixture(t *testing.T) photoFixture {
	t.Helper()
	users := newMemUsers()
	user, err := users.Create(context.Background(), models.User{Phone: "+15551112233", Role: models.UserRoleUser, PasswordHash: []byte("x"), IsActive: true})
	require.NoError(t, err)

	photos := newMemPhotos(users)
	blobs := newMemBlobs()
	analyzer := &stubAnalyzer{}
	q := &memQueue{}
	return photoFixture{
		svc:      NewPhotoService(photos, users, blobs, analyzer, q, zerolog.Nop()),
		users:    users,
		photos:   photos,
		blobs:    blobs,
		analyzer: analyzer,
		queue:    q,
		userID:   user.ID,
	}
}

func fullSet() []UploadFile {
	return []UploadFile{
		{Position: models.PositionBack, Filename: "back.png", Data: pngBytes},
		{Position: models.PositionFront, Filename: "front.png", Data: pngBytes},
		{Position: models.PositionLeftSide, Filename: "left.png", Data: pngBytes},
		{Position: models.PositionRightSide, Filename: "right.png", Data: pngBytes},
	}
}

func TestUploadStoresAnalyzedSet(t *testing.T) {
	f := newPhotoFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, f.userID, fullSet())
	require.NoError(t, err)
	assert.True(t, res.Analyzed)
	require.Len(t, res.PhotoIDs, 4)

	user, err := f.users.GetByID(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, res.PhotoIDs, user.PhotoIDs)

	// Analyzer receives files in left, right, front, back order.
	require.Len(t, f.analyzer.files, 1)
	names := []string{}
	for _, file := range f.analyzer.files[0] {
		names = append(names, file.Name)
	}
	assert.Equal(t, []string{"left.png", "right.png", "front.png", "back.png"}, names)

	first := f.photos.get(res.PhotoIDs[0])
	assert.Equal(t, models.PositionLeftSide, first.Position)
	assert.Equal(t, models.AnalysisDone, first.AnalysisStatus)
	assert.Equal(t, "rust", first.Findings.Rust)
	assert.Equal(t, "image/png", first.ContentType)
	assert.Empty(t, f.queue.tasks)

	views, err := f.svc.ListForUser(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, views, 4)
	assert.Contains(t, views[0].URL, first.ObjectKey)
}

func TestUploadDefersWhenAnalyzerDown(t *testing.T) {
	f := newPhotoFixture(t)
	f.analyzer.err = errors.New("connection refused")

	res, err := f.svc.Upload(context.Background(), f.userID, fullSet())
	require.NoError(t, err)
	assert.False(t, res.Analyzed)

	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, queue.TaskAnalyze, f.queue.tasks[0].Type)
	assert.Equal(t, res.PhotoIDs, f.queue.tasks[0].PhotoIDs)
	for _, id := range res.PhotoIDs {
		assert.Equal(t, models.AnalysisPending, f.photos.get(id).AnalysisStatus)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newPhotoFixture(t)
	ctx := context.Background()

	missing := fullSet()[:3]
	_, err := f.svc.Upload(ctx, f.userID, missing)
	assert.ErrorIs(t, err, ErrInvalidInput)

	dup := append(fullSet(), UploadFile{Position: models.PositionBack, Filename: "b.png", Data: pngBytes})
	_, err = f.svc.Upload(ctx, f.userID, dup)
	assert.ErrorIs(t, err, ErrInvalidInput)

	unknown := append(fullSet(), UploadFile{Position: "roof", Filename: "r.png", Data: pngBytes})
	_, err = f.svc.Upload(ctx, f.userID, unknown)
	assert.ErrorIs(t, err, ErrInvalidInput)

	badExt := fullSet()
	badExt[0].Filename = "back.gif"
	_, err = f.svc.Upload(ctx, f.userID, badExt)
	assert.ErrorIs(t, err, ErrInvalidInput)

	notImage := fullSet()
	notImage[1].Data = []byte("plain text pretending to be png")
	_, err = f.svc.Upload(ctx, f.userID, notImage)
	assert.ErrorIs(t, err, ErrInvalidInput)

	tooBig := fullSet()
	tooBig[2].Data = append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, MaxPhotoSize)...)
	_, err = f.svc.Upload(ctx, f.userID, tooBig)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, f.analyzer.calls)
}

func TestReanalyzeCompletesPendingPhotos(t *testing.T) {
	f := newPhotoFixture(t)
	ctx := context.Background()
	f.analyzer.err = errors.New("down")
	res, err := f.svc.Upload(ctx, f.userID, fullSet())
	require.NoError(t, err)

	f.analyzer.err = nil
	require.NoError(t, f.svc.Reanalyze(ctx, res.PhotoIDs, 3))
	for _, id := range res.PhotoIDs {
		p := f.photos.get(id)
		assert.Equal(t, models.AnalysisDone, p.AnalysisStatus)
		assert.Equal(t, "rust", p.Findings.Rust)
	}

	// Nothing left pending, so no analyzer call.
	calls := f.analyzer.calls
	require.NoError(t, f.svc.Reanalyze(ctx, res.PhotoIDs, 3))
	assert.Equal(t, calls, f.analyzer.calls)
}

func TestReanalyzeGivesUpAfterMaxAttempts(t *testing.T) {
	f := newPhotoFixture(t)
	ctx := context.Background()
	f.analyzer.err = errors.New("down")
	res, err := f.svc.Upload(ctx, f.userID, fullSet())
	require.NoError(t, err)

	err = f.svc.Reanalyze(ctx, res.PhotoIDs, 2)
	assert.ErrorIs(t, err, ErrAnalysisDeferred)
	assert.Equal(t, models.AnalysisPending, f.photos.get(res.PhotoIDs[0]).AnalysisStatus)

	err = f.svc.Reanalyze(ctx, res.PhotoIDs, 2)
	assert.NoError(t, err)
	for _, id := range res.PhotoIDs {
		p := f.photos.get(id)
		assert.Equal(t, models.AnalysisFailed, p.AnalysisStatus)
		assert.Equal(t, 2, p.AnalysisAttempts)
	}
}

func TestSweepPendingGroupsByUser(t *testing.T) {
	f := newPhotoFixture(t)
	ctx := context.Background()
	f.analyzer.err = errors.New("down")
	res, err := f.svc.Upload(ctx, f.userID, fullSet())
	require.NoError(t, err)
	f.queue.tasks = nil

	n, err := f.svc.SweepPending(ctx, 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh photos are left alone")

	f.photos.age(time.Hour)
	n, err = f.svc.SweepPending(ctx, 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, f.queue.tasks, 1)
	assert.ElementsMatch(t, res.PhotoIDs, f.queue.tasks[0].PhotoIDs)
}
