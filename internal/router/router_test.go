package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/handler"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/linguahub/quiz-backend/internal/service"
	"github.com/linguahub/quiz-backend/internal/validator"
	ws "github.com/linguahub/quiz-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ─── In-memory stores ─────────────────────────────────────────────────

type memQuizzes struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
}

func (s *memQuizzes) GetDefinition(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	cp.Attempts = nil
	return &cp, nil
}

func (s *memQuizzes) List(_ context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QuizSummary{}
	for _, q := range s.quizzes {
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		out = append(out, model.QuizSummary{ID: q.ID, Title: q.Title, Status: q.Status, QuestionCount: len(q.Questions)})
	}
	total := len(out)
	if offset >= total {
		return []model.QuizSummary{}, total, nil
	}
	return out[offset:min(total, offset+limit)], total, nil
}

func (s *memQuizzes) Create(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memQuizzes) Update(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.quizzes[q.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	cp.Attempts = existing.Attempts
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memQuizzes) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.quizzes, id)
	return nil
}

func (s *memQuizzes) CountByUser(ctx context.Context, quizID, userID uuid.UUID) (int, error) {
	attempts, err := s.ListByUser(ctx, quizID, userID)
	return len(attempts), err
}

func (s *memQuizzes) ListByUser(_ context.Context, quizID, userID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Attempt{}
	if q, ok := s.quizzes[quizID]; ok {
		for _, a := range q.Attempts {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *memQuizzes) ListAll(_ context.Context, quizID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quizzes[quizID]; ok {
		return slices.Clone(q.Attempts), nil
	}
	return []model.Attempt{}, nil
}

func (s *memQuizzes) Append(_ context.Context, quizID uuid.UUID, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	if !ok {
		return repository.ErrNotFound
	}
	if !q.IsPublished() {
		return repository.ErrQuizNotPublished
	}
	q.Attempts = append(q.Attempts, *a)
	return nil
}

func (s *memQuizzes) Stats(_ context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.QuizStats{QuizID: quizID}
	if q, ok := s.quizzes[quizID]; ok {
		stats.TotalAttempts = len(q.Attempts)
	}
	return stats, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	m.users[u.ID] = u
	return nil
}

// ─── Harness ──────────────────────────────────────────────────────────

type testEnv struct {
	engine *gin.Engine
	auth   *service.AuthService
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	validator.Setup()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		GinMode:        gin.TestMode,
		JWTSecret:      "router-test-secret",
		JWTExpiry:      time.Hour,
		BcryptCost:     4,
		AuthCookieName: "token",
		AuthRateLimit:  1000,
		QuizCacheTTL:   time.Minute,
	}
	log := zerolog.New(io.Discard)

	store := &memQuizzes{quizzes: map[uuid.UUID]*model.Quiz{}}
	cache := repository.NewQuizCache(rdb, store, cfg.QuizCacheTTL, log)
	events := service.NewEventPublisher(rdb, log)

	authService := service.NewAuthService(cfg, &memUsers{users: map[uuid.UUID]*model.User{}}, rdb, log)
	quizService := service.NewQuizService(store, cache, log)
	attemptService := service.NewAttemptService(cache, store, events, log)

	handlers := &Handlers{
		Auth:    handler.NewAuthHandler(authService, cfg),
		Quiz:    handler.NewQuizHandler(quizService),
		Attempt: handler.NewAttemptHandler(attemptService),
		Monitor: handler.NewMonitorHandler(quizService, events, log, nil),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}, log),
	}

	return &testEnv{
		engine: SetupRouter(authService, handlers, cfg, log),
		auth:   authService,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, env
}

func (e *testEnv) expect(t *testing.T, method, path string, body any, token string, status int) envelope {
	t.Helper()
	rec, env := e.do(t, method, path, body, token)
	if rec.Code != status {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, rec.Code, rec.Body.String())
	}
	return env
}

func (e *testEnv) expectError(t *testing.T, method, path string, body any, token string, status int, code response.ErrCode) {
	t.Helper()
	env := e.expect(t, method, path, body, token, status)
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("%s %s: expected error %s, got %+v", method, path, code, env.Error)
	}
}

// login creates an account with role and returns a token for it.
func (e *testEnv) login(t *testing.T, role model.Role, email string) string {
	t.Helper()
	if _, err := e.auth.CreateUser(context.Background(), "Test User", email, "password123", role); err != nil {
		t.Fatalf("create user: %v", err)
	}
	env := e.expect(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": "password123"}, "", http.StatusOK)
	var res model.LoginResponse
	decode(t, env.Data, &res)
	return res.Token
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

var sampleQuizBody = map[string]any{
	"title":                      "Basic Spanish",
	"timeLimit":                  10,
	"passingScore":               50,
	"maxRetakes":                 2,
	"showAnswersAfterSubmission": true,
	"questions": []map[string]any{
		{
			"text":         "Cat in Spanish?",
			"questionType": "MultipleChoice",
			"options":      []map[string]any{{"text": "perro"}, {"text": "gato", "isCorrect": true}},
		},
		{
			"text":          "Hello in Spanish",
			"questionType":  "FillInTheBlank",
			"correctAnswer": "hola",
			"points":        2,
		},
	},
}

// createPublishedQuiz creates and publishes the sample quiz as the given instructor.
func (e *testEnv) createPublishedQuiz(t *testing.T, token string) *model.Quiz {
	t.Helper()
	env := e.expect(t, http.MethodPost, "/api/v1/quizzes", sampleQuizBody, token, http.StatusCreated)
	var created struct {
		Quiz model.Quiz `json:"quiz"`
	}
	decode(t, env.Data, &created)
	e.expect(t, http.MethodPost, "/api/v1/quizzes/"+created.Quiz.ID.String()+"/publish", nil, token, http.StatusOK)
	return &created.Quiz
}

func correctAnswers(q *model.Quiz) []map[string]string {
	var out []map[string]string
	for _, question := range q.Questions {
		answer := question.CorrectAnswer
		for _, o := range question.Options {
			if o.IsCorrect {
				answer = o.ID.String()
			}
		}
		out = append(out, map[string]string{"questionId": question.ID.String(), "userAnswer": answer})
	}
	return out
}

// ─── Tests ────────────────────────────────────────────────────────────

func TestQuizAttemptFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.login(t, model.RoleInstructor, "ana@example.com")

	reg := env.expect(t, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": "Sam", "email": "sam@example.com", "password": "password123"}, "", http.StatusCreated)
	var registered model.LoginResponse
	decode(t, reg.Data, &registered)
	student := registered.Token
	if registered.User.Role != model.RoleStudent {
		t.Fatalf("self registration must create students, got %s", registered.User.Role)
	}

	quiz := env.createPublishedQuiz(t, instructor)
	quizPath := "/api/v1/quizzes/" + quiz.ID.String()

	// Students see the sanitized view.
	rec, _ := env.do(t, http.MethodGet, quizPath, nil, student)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "isCorrect") || strings.Contains(rec.Body.String(), "hola") {
		t.Fatalf("student view leaked answers or failed (%d): %s", rec.Code, rec.Body.String())
	}

	list := env.expect(t, http.MethodGet, "/api/v1/quizzes?page=1&per_page=5", nil, student, http.StatusOK)
	var listed struct {
		Quizzes []model.QuizSummary `json:"quizzes"`
	}
	decode(t, list.Data, &listed)
	if len(listed.Quizzes) != 1 || listed.Quizzes[0].ID != quiz.ID {
		t.Fatalf("expected the published quiz in the listing, got %+v", listed.Quizzes)
	}

	started := env.expect(t, http.MethodPost, quizPath+"/attempt", nil, student, http.StatusOK)
	var start struct {
		Quiz model.AttemptStart `json:"quiz"`
	}
	decode(t, started.Data, &start)
	if len(start.Quiz.Questions) != 2 || start.Quiz.StartTime.IsZero() {
		t.Fatalf("unexpected attempt start %+v", start.Quiz)
	}

	submitted := env.expect(t, http.MethodPost, quizPath+"/submit", map[string]any{
		"answers":   correctAnswers(quiz),
		"startTime": start.Quiz.StartTime,
	}, student, http.StatusOK)
	var result struct {
		Result model.AttemptResult `json:"result"`
	}
	decode(t, submitted.Data, &result)
	if result.Result.Score != (model.Score{Earned: 3, Total: 3, Percentage: 100}) || !result.Result.Passed {
		t.Fatalf("unexpected result %+v", result.Result)
	}
	if !result.Result.ShowAnswers || result.Result.Answers[1].CorrectAnswer == nil {
		t.Fatalf("expected revealed answers, got %+v", result.Result.Answers)
	}

	results := env.expect(t, http.MethodGet, quizPath+"/results", nil, student, http.StatusOK)
	var summary struct {
		Results model.ResultsSummary `json:"results"`
	}
	decode(t, results.Data, &summary)
	if summary.Results.TotalAttempts != 1 || !summary.Results.CanRetake {
		t.Fatalf("unexpected summary %+v", summary.Results)
	}

	stats := env.expect(t, http.MethodGet, quizPath+"/stats", nil, instructor, http.StatusOK)
	var s struct {
		Stats model.QuizStats `json:"stats"`
	}
	decode(t, stats.Data, &s)
	if s.Stats.TotalAttempts != 1 {
		t.Fatalf("expected 1 attempt in stats, got %+v", s.Stats)
	}
}

func TestErrorMappingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.login(t, model.RoleInstructor, "ana@example.com")
	student := env.login(t, model.RoleStudent, "sam@example.com")
	quiz := env.createPublishedQuiz(t, instructor)
	quizPath := "/api/v1/quizzes/" + quiz.ID.String()
	unknown := "/api/v1/quizzes/" + uuid.NewString()

	env.expectError(t, http.MethodPost, "/api/v1/quizzes", sampleQuizBody, student, http.StatusForbidden, response.ErrPermissionDenied)
	env.expectError(t, http.MethodGet, "/api/v1/quizzes/not-a-uuid", nil, student, http.StatusBadRequest, response.ErrInvalidID)
	env.expectError(t, http.MethodPost, unknown+"/attempt", nil, student, http.StatusNotFound, response.ErrQuizNotFound)
	env.expectError(t, http.MethodGet, quizPath+"/results", nil, student, http.StatusNotFound, response.ErrNoAttempts)
	env.expectError(t, http.MethodPost, quizPath+"/submit", map[string]any{"answers": []any{}, "startTime": time.Now()}, student, http.StatusBadRequest, response.ErrValidation)
	env.expectError(t, http.MethodGet, quizPath+"/stats", nil, student, http.StatusForbidden, response.ErrPermissionDenied)
	env.expectError(t, http.MethodGet, quizPath, nil, "", http.StatusUnauthorized, response.ErrTokenRequired)
	env.expectError(t, http.MethodGet, quizPath, nil, "garbage", http.StatusUnauthorized, response.ErrTokenInvalid)

	late := map[string]any{"answers": correctAnswers(quiz), "startTime": time.Now().Add(-30 * time.Minute)}
	env.expectError(t, http.MethodPost, quizPath+"/submit", late, student, http.StatusForbidden, response.ErrTimeLimitExceeded)

	onTime := map[string]any{"answers": correctAnswers(quiz), "startTime": time.Now()}
	env.expect(t, http.MethodPost, quizPath+"/submit", onTime, student, http.StatusOK)
	env.expect(t, http.MethodPost, quizPath+"/submit", onTime, student, http.StatusOK)
	env.expectError(t, http.MethodPost, quizPath+"/attempt", nil, student, http.StatusForbidden, response.ErrRetakeLimitReached)

	other := env.login(t, model.RoleInstructor, "otro@example.com")
	env.expectError(t, http.MethodPut, quizPath, map[string]any{"title": "Hijacked"}, other, http.StatusForbidden, response.ErrNotQuizOwner)

	env.expect(t, http.MethodPost, quizPath+"/unpublish", nil, instructor, http.StatusOK)
	env.expectError(t, http.MethodPost, quizPath+"/submit", onTime, student, http.StatusForbidden, response.ErrQuizNotPublished)

	bad := map[string]any{"text": "Pick one", "questionType": "MultipleChoice", "options": []map[string]any{{"text": "only"}}}
	env.expectError(t, http.MethodPost, quizPath+"/questions", bad, instructor, http.StatusBadRequest, response.ErrInvalidQuestion)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, model.RoleStudent, "sam@example.com")

	env.expect(t, http.MethodGet, "/api/v1/auth/me", nil, token, http.StatusOK)
	env.expect(t, http.MethodPost, "/api/v1/auth/logout", nil, token, http.StatusOK)
	env.expectError(t, http.MethodGet, "/api/v1/auth/me", nil, token, http.StatusUnauthorized, response.ErrTokenRevoked)
}

func TestLoginSetsUsableCookie(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.auth.CreateUser(context.Background(), "Sam", "sam@example.com", "password123", model.RoleStudent); err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "SAM@example.com", "password": "password123"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "token" || !cookies[0].HttpOnly {
		t.Fatalf("expected an HttpOnly token cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookies[0])
	me := httptest.NewRecorder()
	env.engine.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("cookie auth failed: %d %s", me.Code, me.Body.String())
	}

	env.expectError(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "sam@example.com", "password": "wrong-password"}, "", http.StatusUnauthorized, response.ErrInvalidCredentials)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	body := env.expect(t, http.MethodGet, "/health", nil, "", http.StatusOK)
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, body.Data, &health)
	if health.Status != "ok" || health.Checks["redis"] != "up" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestMonitorStreamsSubmittedAttempts(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.login(t, model.RoleInstructor, "ana@example.com")
	student := env.login(t, model.RoleStudent, "sam@example.com")
	quiz := env.createPublishedQuiz(t, instructor)

	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/quizzes/" + quiz.ID.String() + "/monitor?token=" + instructor

	// Students lack the monitor permission and are refused before the upgrade.
	_, resp, err := websocket.DefaultDialer.Dial(strings.Replace(wsURL, instructor, student, 1), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a student, got %v (%v)", resp, err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial monitor: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ready ws.ReadyResponse
	if err := conn.ReadJSON(&ready); err != nil || ready.Event != ws.EventReady {
		t.Fatalf("expected ready event, got %+v (%v)", ready, err)
	}

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	var pong ws.PongResponse
	if err := conn.ReadJSON(&pong); err != nil || pong.Event != ws.EventPong {
		t.Fatalf("expected pong, got %+v (%v)", pong, err)
	}

	body, _ := json.Marshal(map[string]any{"answers": correctAnswers(quiz), "startTime": time.Now()})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/quizzes/"+quiz.ID.String()+"/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+student)
	submit, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	submit.Body.Close()
	if submit.StatusCode != http.StatusOK {
		t.Fatalf("submit returned %d", submit.StatusCode)
	}

	var got ws.AttemptResponse
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read attempt event: %v", err)
	}
	if got.Event != ws.EventAttempt || got.Attempt.QuizID != quiz.ID || got.Attempt.Percentage != 100 {
		t.Fatalf("unexpected attempt event %+v", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
