package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/middleware"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/remote"
	"github.com/loiht2/ai-vision-portal/repository"
	"github.com/loiht2/ai-vision-portal/security"
	"github.com/loiht2/ai-vision-portal/web"
)

type fakeStore struct {
	users       map[string]*config.User
	jobs        []config.TrainingJob
	predictions []config.Prediction
	failWrites  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*config.User{}}
}

func (s *fakeStore) CreateUser(_ context.Context, user *config.User) error {
	if s.failWrites {
		return errors.New("database is down")
	}
	user.ID = uint(len(s.users) + 1)
	s.users[user.Username] = user
	return nil
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (*config.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) ListRecentTrainingJobs(_ context.Context, limit int) ([]config.TrainingJob, error) {
	return s.jobs, nil
}

func (s *fakeStore) CountTrainingJobs(_ context.Context) (int64, error) {
	return int64(len(s.jobs)), nil
}

func (s *fakeStore) CreatePrediction(_ context.Context, p *config.Prediction) error {
	if s.failWrites {
		return errors.New("database is down")
	}
	p.ID = uint(len(s.predictions) + 1)
	s.predictions = append(s.predictions, *p)
	return nil
}

func (s *fakeStore) GetPrediction(_ context.Context, id uint) (*config.Prediction, error) {
	for i := range s.predictions {
		if s.predictions[i].ID == id {
			return &s.predictions[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) ListRecentPredictions(_ context.Context, limit int) ([]config.Prediction, error) {
	return s.predictions, nil
}

func (s *fakeStore) CountPredictions(_ context.Context) (int64, error) {
	return int64(len(s.predictions)), nil
}

type fakePredictor struct {
	resp  *remote.Response
	err   error
	calls int
}

func (p *fakePredictor) PostPrediction(_ context.Context, filename, contentType string, content []byte) (*remote.Response, error) {
	p.calls++
	return p.resp, p.err
}

type fakeTrainer struct {
	current  *config.TrainingJob
	saved    []*models.TrainingConfigForm
	startErr error
}

func (t *fakeTrainer) Current(_ context.Context) *config.TrainingJob {
	return t.current
}

func (t *fakeTrainer) Save(_ context.Context, form *models.TrainingConfigForm) (*config.TrainingJob, error) {
	t.saved = append(t.saved, form)
	t.current = &config.TrainingJob{
		ID:           uint(len(t.saved)),
		Status:       config.StatusConfigured,
		ModelName:    form.ModelName,
		Epochs:       form.Epochs,
		BatchSize:    form.BatchSize,
		LearningRate: form.LearningRate,
		Classes:      form.Classes,
		Augmentation: form.IsAugmented(),
	}
	return t.current, nil
}

func (t *fakeTrainer) StartTraining(_ context.Context) (*config.TrainingJob, error) {
	if t.current == nil {
		return nil, models.ErrNoConfiguration
	}
	if t.startErr != nil {
		return t.current, t.startErr
	}
	t.current.Status = config.StatusTraining
	return t.current, nil
}

type fakeImages struct {
	objects map[string][]byte
}

func (f *fakeImages) ArchiveImage(_ context.Context, filename, contentType string, content []byte) (string, error) {
	key := "uploads/test/" + filename
	f.objects[key] = content
	return key, nil
}

func (f *fakeImages) OpenThumbnail(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testEnv struct {
	store     *fakeStore
	predictor *fakePredictor
	trainer   *fakeTrainer
	images    *fakeImages
	issuer    *security.TokenIssuer
	router    *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := security.NewTokenIssuer("test-secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("Templates failed: %v", err)
	}

	env := &testEnv{
		store:     newFakeStore(),
		predictor: &fakePredictor{},
		trainer:   &fakeTrainer{},
		images:    &fakeImages{objects: map[string][]byte{}},
		issuer:    issuer,
	}
	handler := NewHandler(env.store, env.predictor, env.trainer, env.images, issuer)

	env.router = gin.New()
	env.router.SetHTMLTemplate(tmpl)
	env.router.Use(middleware.SessionMiddleware(issuer))
	handler.Routes(env.router)
	return env
}

// do sends req, authenticated unless anonymous is set
func (e *testEnv) do(t *testing.T, req *http.Request, anonymous bool) *httptest.ResponseRecorder {
	t.Helper()
	if !anonymous {
		token, err := e.issuer.Issue(security.Identity{UserID: 1, Username: "admin"})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPredictStoresSuccessfulResult(t *testing.T) {
	env := newTestEnv(t)
	env.predictor.resp = &remote.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"predictions":[{"class_name":"cat","confidence":0.87}]}`),
	}

	w := env.do(t, uploadRequest(t, "cat.jpg", []byte("fake image")), false)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cat") || !strings.Contains(w.Body.String(), "87.0%") {
		t.Errorf("Expected label and confidence in page, got %s", w.Body.String())
	}
	if len(env.store.predictions) != 1 {
		t.Fatalf("Expected 1 stored prediction, got %d", len(env.store.predictions))
	}
	p := env.store.predictions[0]
	if p.Filename != "cat.jpg" || p.PredictionText != "cat" || p.Confidence != 0.87 {
		t.Errorf("Unexpected prediction row %+v", p)
	}
	if p.ImagePath == nil || *p.ImagePath != "uploads/test/cat.jpg" {
		t.Errorf("Expected archived image path, got %v", p.ImagePath)
	}
}

func TestPredictFailuresStoreNothing(t *testing.T) {
	tests := []struct {
		name string
		resp *remote.Response
		err  error
		want string
	}{
		{
			name: "remote status",
			resp: &remote.Response{StatusCode: http.StatusInternalServerError, Body: []byte("boom")},
			want: "status 500",
		},
		{
			name: "timeout",
			err:  &models.TransportError{Endpoint: "http://predictor.test/predict", Timeout: true, Err: context.DeadlineExceeded},
			want: "timed out",
		},
		{
			name: "unreachable",
			err:  &models.TransportError{Endpoint: "http://predictor.test/predict", Err: errors.New("connection refused")},
			want: "unable to reach http://predictor.test/predict",
		},
		{
			name: "unrecognized body",
			resp: &remote.Response{StatusCode: http.StatusOK, Body: []byte(strings.Repeat("x", 60))},
			want: strings.Repeat("x", 60),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.predictor.resp = tt.resp
			env.predictor.err = tt.err

			w := env.do(t, uploadRequest(t, "cat.jpg", []byte("fake image")), false)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("Expected page to contain %q", tt.want)
			}
			if len(env.store.predictions) != 0 {
				t.Errorf("Expected no stored prediction, got %d", len(env.store.predictions))
			}
			if len(env.images.objects) != 0 {
				t.Errorf("Expected no archived image, got %d", len(env.images.objects))
			}
		})
	}
}

func TestPredictPersistenceFailureStillShowsResult(t *testing.T) {
	env := newTestEnv(t)
	env.store.failWrites = true
	env.predictor.resp = &remote.Response{StatusCode: http.StatusOK, Body: []byte(`{"label":"dog"}`)}

	w := env.do(t, uploadRequest(t, "dog.png", []byte("fake image")), false)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "dog") {
		t.Errorf("Expected result page with label, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "99.0%") {
		t.Error("Expected default confidence to be shown")
	}
}

func TestPredictWithoutFile(t *testing.T) {
	env := newTestEnv(t)

	req := formRequest("/predict", url.Values{})
	w := env.do(t, req, false)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if env.predictor.calls != 0 {
		t.Error("Expected no call to the inference service")
	}
}

func TestPagesRedirectAnonymous(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/dashboard", "/predict", "/train/get/config", "/train/update/config"} {
		w := env.do(t, httptest.NewRequest(http.MethodGet, path, nil), true)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
			t.Errorf("%s: expected redirect to /login, got %d %s", path, w.Code, w.Header().Get("Location"))
		}
	}
}

func TestStartTrainingRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest(http.MethodPost, "/train/start", nil), true)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] != "Not authenticated" {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestStartTraining(t *testing.T) {
	tests := []struct {
		name       string
		current    *config.TrainingJob
		startErr   error
		wantCode   int
		wantStatus string
		wantJob    string
	}{
		{
			name:       "accepted",
			current:    &config.TrainingJob{ID: 1, Status: config.StatusConfigured, ModelName: "yolo12", Epochs: 50},
			wantCode:   http.StatusOK,
			wantStatus: "started",
			wantJob:    config.StatusTraining,
		},
		{
			name:       "remote rejects",
			current:    &config.TrainingJob{ID: 1, Status: config.StatusSynced, ModelName: "yolo12", Epochs: 50},
			startErr:   &models.RemoteStatusError{Endpoint: "http://trainer.test", StatusCode: 500, Body: "busy"},
			wantCode:   http.StatusBadGateway,
			wantStatus: "error",
			wantJob:    config.StatusSynced,
		},
		{
			name:       "no configuration",
			wantCode:   http.StatusBadRequest,
			wantStatus: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.trainer.current = tt.current
			env.trainer.startErr = tt.startErr

			w := env.do(t, httptest.NewRequest(http.MethodPost, "/train/start", nil), false)

			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, w.Code)
			}
			var resp models.StartTrainingResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Message == "" {
				t.Errorf("Unexpected response %+v", resp)
			}
			if tt.current != nil && tt.current.Status != tt.wantJob {
				t.Errorf("Expected job status %s, got %s", tt.wantJob, tt.current.Status)
			}
		})
	}
}

func TestSaveTrainingConfig(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, formRequest("/train/update/config", url.Values{
		"epochs":        {"10"},
		"batch_size":    {"16"},
		"learning_rate": {"0.001"},
		"model_name":    {"YOLO11"},
		"classes":       {"3"},
		"augmentation":  {"False"},
	}), false)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/train/get/config?adjusted=true" {
		t.Fatalf("Expected 303 to the adjusted view, got %d %s", w.Code, w.Header().Get("Location"))
	}
	if len(env.trainer.saved) != 1 {
		t.Fatalf("Expected one save, got %d", len(env.trainer.saved))
	}
	if form := env.trainer.saved[0]; form.Epochs != 10 || form.IsAugmented() {
		t.Errorf("Unexpected form %+v", form)
	}

	w = env.do(t, formRequest("/train/update/config", url.Values{"epochs": {"10"}}), false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for incomplete form, got %d", w.Code)
	}
	if len(env.trainer.saved) != 1 {
		t.Error("Expected incomplete form not to be saved")
	}
}

func TestTrainViewRendersCurrent(t *testing.T) {
	env := newTestEnv(t)
	env.trainer.current = &config.TrainingJob{ID: 4, Status: config.StatusSynced, ModelName: "yolo11", Epochs: 25}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/train/get/config?adjusted=true", nil), false)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	for _, want := range []string{"yolo11", "25", "synced", "Configuration saved"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}

	env.trainer.current = nil
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/train/update/config", nil), false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `value="yolo12"`) {
		t.Errorf("Expected defaults in update form, got %d", w.Code)
	}
}

func TestLoginAndSignup(t *testing.T) {
	env := newTestEnv(t)
	if err := SeedAdmin(context.Background(), env.store); err != nil {
		t.Fatalf("SeedAdmin failed: %v", err)
	}
	if err := SeedAdmin(context.Background(), env.store); err != nil {
		t.Fatalf("SeedAdmin is not idempotent: %v", err)
	}

	w := env.do(t, formRequest("/auth/login", url.Values{"username": {"admin"}, "password": {"admin123"}}), true)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("Expected redirect to dashboard, got %d", w.Code)
	}
	if !hasSessionCookie(w) {
		t.Error("Expected session cookie")
	}

	w = env.do(t, formRequest("/auth/login", url.Values{"username": {"admin"}, "password": {"wrong"}}), true)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Errorf("Expected invalid credentials, got %d", w.Code)
	}

	w = env.do(t, formRequest("/auth/signup", url.Values{"username": {"alice"}, "password": {"pw"}}), true)
	if w.Code != http.StatusSeeOther || !hasSessionCookie(w) {
		t.Errorf("Expected signup to log in, got %d", w.Code)
	}
	if _, ok := env.store.users["alice"]; !ok {
		t.Error("Expected alice to be stored")
	}

	w = env.do(t, formRequest("/auth/signup", url.Values{"username": {"alice"}, "password": {"pw"}}), true)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "Username already exists") {
		t.Errorf("Expected duplicate signup to fail, got %d", w.Code)
	}
}

func hasSessionCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.store.jobs = []config.TrainingJob{{ID: 2, Status: config.StatusConfigured, ModelName: "yolo12"}}
	env.store.predictions = []config.Prediction{{ID: 1, Filename: "a.jpg", PredictionText: "bird", Confidence: 0.5}}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), false)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	for _, want := range []string{"yolo12", "bird", "50.0%", "admin"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("Expected dashboard to contain %q", want)
		}
	}
}

func TestPredictionImage(t *testing.T) {
	env := newTestEnv(t)
	key := "uploads/test/a.jpg"
	env.images.objects[key] = []byte("jpeg bytes")
	env.store.predictions = []config.Prediction{{ID: 1, Filename: "a.jpg", ImagePath: &key}, {ID: 2, Filename: "b.jpg"}}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/predictions/1/image", nil), false)
	if w.Code != http.StatusOK || w.Body.String() != "jpeg bytes" {
		t.Errorf("Expected thumbnail bytes, got %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}

	for _, id := range []int{2, 9} {
		w = env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/predictions/%d/image", id), nil), false)
		if w.Code != http.StatusNotFound {
			t.Errorf("Prediction %d: expected 404, got %d", id, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), true)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected health response %d %s", w.Code, w.Body.String())
	}
}
