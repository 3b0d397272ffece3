package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"decentra/internal/analysis"
	"decentra/internal/models"
	"decentra/internal/queue"
	"decentra/internal/repository"
	"decentra/internal/security"
)

var cheapArgon2 = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// memUsers mimics the users table, including the unique phone constraint.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]models.User)}
}

func (m *memUsers) Create(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Phone == user.Phone {
			return models.User{}, repository.ErrPhoneTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.byID[user.ID] = user
	return user, nil
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Phone == phone {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok, nil
}

func (m *memUsers) update(id int64, fn func(*models.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	fn(&u)
	m.byID[id] = u
}

func (m *memUsers) delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

type memPhotos struct {
	mu     sync.Mutex
	users  *memUsers
	nextID int64
	byID   map[int64]models.Photo
}

func newMemPhotos(users *memUsers) *memPhotos {
	return &memPhotos{users: users, byID: make(map[int64]models.Photo)}
}

func (m *memPhotos) ReplaceUserSet(ctx context.Context, userID int64, photos []models.Photo) ([]models.Photo, error) {
	if ok, _ := m.users.Exists(ctx, userID); !ok {
		return nil, repository.ErrUserNotFound
	}
	m.mu.Lock()
	stored := make([]models.Photo, 0, len(photos))
	ids := make([]int64, 0, len(photos))
	for _, p := range photos {
		m.nextID++
		p.ID = m.nextID
		p.UserID = userID
		p.CreatedAt = time.Now()
		p.LastUpdated = p.CreatedAt
		m.byID[p.ID] = p
		stored = append(stored, p)
		ids = append(ids, p.ID)
	}
	m.mu.Unlock()

	m.users.update(userID, func(u *models.User) { u.PhotoIDs = ids })
	return stored, nil
}

func (m *memPhotos) ListByIDs(_ context.Context, ids []int64) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Photo
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPhotos) ListPending(_ context.Context, before time.Time, limit int) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Photo
	for _, p := range m.byID {
		if p.AnalysisStatus == models.AnalysisPending && p.LastUpdated.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPhotos) SaveFindings(_ context.Context, id int64, f models.Findings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	p.Findings = f
	p.AnalysisStatus = models.AnalysisDone
	m.byID[id] = p
	return nil
}

func (m *memPhotos) RecordAttempt(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrPhotoNotFound
	}
	p.AnalysisAttempts++
	m.byID[id] = p
	return p.AnalysisAttempts, nil
}

func (m *memPhotos) MarkFailed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	p.AnalysisStatus = models.AnalysisFailed
	m.byID[id] = p
	return nil
}

func (m *memPhotos) get(id int64) models.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memPhotos) age(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.byID {
		p.LastUpdated = p.LastUpdated.Add(-d)
		m.byID[id] = p
	}
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Bucket() string { return "test-photos" }

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memBlobs) Get(_ context.Context, _ string, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, repository.ErrPhotoNotFound
	}
	return data, nil
}

func (m *memBlobs) PresignGet(_ context.Context, bucket, key string) (string, error) {
	return "https://storage.test/" + bucket + "/" + key, nil
}

type stubAnalyzer struct {
	err   error
	calls int
	files [][]analysis.File
}

func (s *stubAnalyzer) Analyze(_ context.Context, files []analysis.File) ([]models.Findings, error) {
	s.calls++
	s.files = append(s.files, files)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Findings, len(files))
	for i := range files {
		out[i] = models.Findings{Rust: "rust", DamageClasses: []string{"Rust"}}
	}
	return out, nil
}

type memQueue struct {
	tasks []queue.Task
}

func (q *memQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

type memAppeals struct {
	users  *memUsers
	nextID int64
	byID   map[int64]models.Appeal
}

func newMemAppeals(users *memUsers) *memAppeals {
	return &memAppeals{users: users, byID: make(map[int64]models.Appeal)}
}

func (m *memAppeals) Create(_ context.Context, a models.Appeal) (models.Appeal, error) {
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = a
	id := a.ID
	m.users.update(a.UserID, func(u *models.User) { u.AppealID = &id })
	return a, nil
}

func (m *memAppeals) GetByID(_ context.Context, id int64) (models.Appeal, error) {
	a, ok := m.byID[id]
	if !ok {
		return models.Appeal{}, repository.ErrAppealNotFound
	}
	return a, nil
}

func (m *memAppeals) List(_ context.Context, limit, offset int) ([]models.Appeal, error) {
	var out []models.Appeal
	for _, a := range m.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAppeals) SetAppealed(_ context.Context, id int64, appealed bool) (models.Appeal, error) {
	a, ok := m.byID[id]
	if !ok {
		return models.Appeal{}, repository.ErrAppealNotFound
	}
	a.Appealed = appealed
	a.UpdatedAt = time.Now()
	m.byID[id] = a
	return a, nil
}

type recordingRevoker struct {
	revoked map[string]time.Time
}

func (r *recordingRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if r.revoked == nil {
		r.revoked = make(map[string]time.Time)
	}
	r.revoked[tokenID] = expiresAt
	return nil
}
