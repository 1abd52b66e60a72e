package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfgrade/shelfgrade/internal/app"
	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
	"github.com/shelfgrade/shelfgrade/internal/services/evaluation"
	"github.com/shelfgrade/shelfgrade/internal/services/settings"
)

// --- In-memory storage fakes ---

type fakeInternalStore struct {
	mu     sync.Mutex
	users  map[string]*models.InternalUser
	events []*models.SettingEvent
}

func newFakeInternalStore() *fakeInternalStore {
	return &fakeInternalStore{users: map[string]*models.InternalUser{}}
}

func (f *fakeInternalStore) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func (f *fakeInternalStore) GetUserByEmail(ctx context.Context, email string) (*models.InternalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeInternalStore) SaveUser(ctx context.Context, user *models.InternalUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.UserID] = user
	return nil
}

func (f *fakeInternalStore) DeleteUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	return nil
}

func (f *fakeInternalStore) ListUsers(ctx context.Context) ([]*models.InternalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.InternalUser, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeInternalStore) AppendSettingEvent(ctx context.Context, event *models.SettingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeInternalStore) LatestSettings(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for _, ev := range f.events {
		out[ev.Key] = ev.Value
	}
	return out, nil
}

func (f *fakeInternalStore) ListSettingEvents(ctx context.Context, key string, limit int) ([]*models.SettingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SettingEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		if key != "" && f.events[i].Key != key {
			continue
		}
		out = append(out, f.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeInternalStore) Close() error { return nil }

type fakeEvaluationStore struct {
	mu         sync.Mutex
	byID       map[string]*models.Evaluation
	byClientID map[string]*models.Evaluation
}

func newFakeEvaluationStore() *fakeEvaluationStore {
	return &fakeEvaluationStore{
		byID:       map[string]*models.Evaluation{},
		byClientID: map[string]*models.Evaluation{},
	}
}

func (f *fakeEvaluationStore) Create(ctx context.Context, eval *models.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[eval.ID] = eval
	f.byClientID[eval.ClientEvalID] = eval
	return nil
}

func (f *fakeEvaluationStore) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeEvaluationStore) GetByClientEvalID(ctx context.Context, clientEvalID string) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byClientID[clientEvalID], nil
}

func (f *fakeEvaluationStore) List(ctx context.Context, opts interfaces.EvaluationListOptions) ([]*models.Evaluation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Evaluation
	for _, eval := range f.byID {
		if opts.StoreCode != "" && eval.StoreCode != opts.StoreCode {
			continue
		}
		if opts.EvaluatorID != "" && eval.EvaluatorID != opts.EvaluatorID {
			continue
		}
		out = append(out, eval)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeEvaluationStore) SetOverride(ctx context.Context, id string, ov *models.Override) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	eval, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	eval.Override = ov
	return nil
}

type fakeStoreDirectory struct {
	mu     sync.Mutex
	stores map[string]*models.Store
}

func newFakeStoreDirectory() *fakeStoreDirectory {
	return &fakeStoreDirectory{stores: map[string]*models.Store{}}
}

func (f *fakeStoreDirectory) Upsert(ctx context.Context, store *models.Store) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.stores[store.CustomerCode]
	f.stores[store.CustomerCode] = store
	return !exists, nil
}

func (f *fakeStoreDirectory) Get(ctx context.Context, customerCode string) (*models.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores[customerCode], nil
}

func (f *fakeStoreDirectory) List(ctx context.Context, region string) ([]*models.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Store
	for _, store := range f.stores {
		if region != "" && store.Region != region {
			continue
		}
		out = append(out, store)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerCode < out[j].CustomerCode })
	return out, nil
}

func (f *fakeStoreDirectory) Delete(ctx context.Context, customerCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stores, customerCode)
	return nil
}

type storedFile struct {
	data        []byte
	contentType string
}

type fakeFileStore struct {
	mu    sync.Mutex
	files map[string]storedFile
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: map[string]storedFile{}}
}

func (f *fakeFileStore) SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[category+"/"+key] = storedFile{data: data, contentType: contentType}
	return nil
}

func (f *fakeFileStore) GetFile(ctx context.Context, category, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[category+"/"+key]
	if !ok {
		return nil, "", models.ErrNotFound
	}
	return file.data, file.contentType, nil
}

func (f *fakeFileStore) DeleteFile(ctx context.Context, category, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, category+"/"+key)
	return nil
}

func (f *fakeFileStore) HasFile(ctx context.Context, category, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[category+"/"+key]
	return ok, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (f *fakeAuditStore) Append(ctx context.Context, record *models.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditStore) List(ctx context.Context, entityID string, limit int) ([]*models.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditRecord
	for _, record := range f.records {
		if entityID != "" && record.EntityID != entityID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

type fakeStorageManager struct {
	internal *fakeInternalStore
	evals    *fakeEvaluationStore
	dir      *fakeStoreDirectory
	files    *fakeFileStore
	audit    *fakeAuditStore
}

func (f *fakeStorageManager) InternalStore() interfaces.InternalStore     { return f.internal }
func (f *fakeStorageManager) EvaluationStore() interfaces.EvaluationStore { return f.evals }
func (f *fakeStorageManager) StoreDirectory() interfaces.StoreDirectory   { return f.dir }
func (f *fakeStorageManager) FileStore() interfaces.FileStore             { return f.files }
func (f *fakeStorageManager) AuditStore() interfaces.AuditStore           { return f.audit }
func (f *fakeStorageManager) Close() error                                { return nil }

// --- Harness ---

type serverHarness struct {
	srv     *Server
	config  *common.Config
	storage *fakeStorageManager
}

// newTestServer wires the real services over in-memory storage fakes. The
// vision service is nil, so submissions without an AI payload land on the
// placeholder path.
func newTestServer(t *testing.T) *serverHarness {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Auth.JWTSecret = "test-secret"
	logger := common.NewSilentLogger()

	storage := &fakeStorageManager{
		internal: newFakeInternalStore(),
		evals:    newFakeEvaluationStore(),
		dir:      newFakeStoreDirectory(),
		files:    newFakeFileStore(),
		audit:    &fakeAuditStore{},
	}
	storage.dir.stores["C0042"] = &models.Store{
		CustomerCode: "C0042",
		Name:         "Main Street Auto",
		Region:       "NORTH",
		BrandNames:   []string{"Acme"},
	}

	a := &app.App{
		Config:          config,
		Logger:          logger,
		Storage:         storage,
		SettingsService: settings.NewService(storage.internal, storage.audit, logger),
		EvaluationService: evaluation.NewService(
			storage.evals, storage.files, storage.audit, nil, storage.dir, logger,
		),
		StartupTime: time.Now(),
	}

	return &serverHarness{srv: NewServer(a), config: config, storage: storage}
}

// addUser creates an account with a bcrypt-hashed password.
func (h *serverHarness) addUser(t *testing.T, userID, email, password, role string) *models.InternalUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.InternalUser{
		UserID:       userID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, h.storage.internal.SaveUser(context.Background(), user))
	return user
}

// token signs a JWT for the user with the test secret.
func (h *serverHarness) token(t *testing.T, user *models.InternalUser) string {
	t.Helper()
	token, err := signJWT(user, &h.config.Auth)
	require.NoError(t, err)
	return token
}
