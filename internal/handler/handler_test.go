package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/ieltsprep/mockcenter/internal/i18n"
	"github.com/ieltsprep/mockcenter/internal/llm"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/results"
	"github.com/ieltsprep/mockcenter/internal/scoring"
	"github.com/ieltsprep/mockcenter/internal/store"
)

const testPassword = "pass123"

type fakeAssessor struct{}

func (fakeAssessor) AssessWriting(context.Context, string, string) (*llm.WritingAssessment, error) {
	b, _ := scoring.NumericBand(6.5)
	return &llm.WritingAssessment{Band: b, Feedback: "decent"}, nil
}

type brokenAssessor struct{}

func (brokenAssessor) AssessWriting(context.Context, string, string) (*llm.WritingAssessment, error) {
	return nil, fmt.Errorf("%w: band -3: out of range", llm.ErrBadResponse)
}

type testEnv struct {
	router http.Handler
	store  *store.Store
	ids    map[string]string // email -> uid
}

func fortyKey() model.AnswerKey {
	k := model.AnswerKey{}
	for i := 1; i <= 40; i++ {
		k[fmt.Sprintf("q%d", i)] = []string{"a"}
	}
	return k
}

func answersCorrect(n int) map[string]string {
	a := map[string]string{}
	for i := 1; i <= n; i++ {
		a[fmt.Sprintf("q%d", i)] = "a"
	}
	return a
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, fakeAssessor{})
}

func newTestEnvWith(t *testing.T, assessor results.WritingAssessor) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	env := &testEnv{store: s, ids: map[string]string{}}
	for _, u := range []struct {
		email string
		role  model.UserRole
	}{
		{"admin@example.com", model.UserRoleAdmin},
		{"teacher@example.com", model.UserRoleTeacher},
		{"alice@example.com", model.UserRoleStudent},
		{"bob@example.com", model.UserRoleStudent},
	} {
		id, err := s.CreateUser(model.User{Email: u.email, DisplayName: u.email, PasswordHash: string(hash), Role: u.role, Active: true})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		env.ids[u.email] = id
	}

	for _, tt := range []model.Test{
		{ID: "L1", Kind: model.KindListening, Title: "Listening 1", Answers: fortyKey()},
		{ID: "F1", Kind: model.KindFullMock, Title: "Full 1", ListeningAnswers: fortyKey(), ReadingAnswers: fortyKey()},
	} {
		if err := s.UpsertTest(tt); err != nil {
			t.Fatalf("UpsertTest: %v", err)
		}
	}

	svc := results.NewService(s, scoring.ModeRaw, assessor)
	h, err := New(s, svc, model.ServerConfig{JWTSecret: "test-secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	h.Routes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, "POST", "/api/login", "", map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return v
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(nil, nil, model.ServerConfig{}); err == nil {
		t.Error("expected error without jwt secret")
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"ok", map[string]string{"email": "ALICE@example.com", "password": testPassword}, http.StatusOK},
		{"wrong password", map[string]string{"email": "alice@example.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "carol@example.com", "password": testPassword}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"email": "alice@example.com"}, http.StatusBadRequest},
		{"bad json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/login", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t, "alice@example.com")

	if rec := env.do(t, "GET", "/api/me", tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	if rec := env.do(t, "POST", "/api/logout", tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/me", tok, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status %d, want 401", rec.Code)
	}
}

func loginCookie(t *testing.T, env *testEnv, email string) *http.Cookie {
	t.Helper()
	rec := env.do(t, "POST", "/api/login", "", map[string]string{"email": email, "password": testPassword})
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			if !c.HttpOnly {
				t.Error("session cookie must be HttpOnly")
			}
			return c
		}
	}
	t.Fatalf("no session cookie in login response")
	return nil
}

func TestSessionCookieOnlyOpensPages(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com")
	cookie := loginCookie(t, env, "admin@example.com")

	rec := env.do(t, "POST", "/api/results/listening", admin, results.SectionSubmission{TestID: "L1", Answers: answersCorrect(20)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
	}
	id := decode[model.SectionView](t, rec).Result.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"result page", "GET", "/results/listening/" + id, "", http.StatusOK},
		{"api read", "GET", "/api/me", "", http.StatusUnauthorized},
		{"api result", "GET", "/api/results/listening/" + id, "", http.StatusUnauthorized},
		{"create user", "POST", "/api/admin/createUser", `{"email":"evil@example.com","password":"pw","role":"admin"}`, http.StatusUnauthorized},
		{"delete result", "DELETE", "/api/results/listening/" + id, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "text/plain")
			req.AddCookie(cookie)
			out := httptest.NewRecorder()
			env.router.ServeHTTP(out, req)
			if out.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", out.Code, tt.want, out.Body)
			}
		})
	}

	if u, _ := env.store.GetUserByEmail("evil@example.com"); u != nil {
		t.Error("cookie-only request created a user")
	}
}

func TestAuthStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t, "alice@example.com")
	env.store.Close()

	if rec := env.do(t, "GET", "/api/me", tok, nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAdminCreateUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com")
	student := env.login(t, "alice@example.com")

	tests := []struct {
		name   string
		method string
		token  string
		body   any
		want   int
	}{
		{"wrong method", "GET", admin, nil, http.StatusMethodNotAllowed},
		{"no bearer", "POST", "", map[string]string{"email": "x@example.com", "password": "pw", "role": "student"}, http.StatusUnauthorized},
		{"bad bearer", "POST", "garbage", map[string]string{"email": "x@example.com", "password": "pw", "role": "student"}, http.StatusUnauthorized},
		{"not admin", "POST", student, map[string]string{"email": "x@example.com", "password": "pw", "role": "student"}, http.StatusForbidden},
		{"missing password", "POST", admin, map[string]string{"email": "x@example.com", "role": "student"}, http.StatusBadRequest},
		{"missing role", "POST", admin, map[string]string{"email": "x@example.com", "password": "pw"}, http.StatusBadRequest},
		{"bad role", "POST", admin, map[string]string{"email": "x@example.com", "password": "pw", "role": "owner"}, http.StatusBadRequest},
		{"duplicate", "POST", admin, map[string]string{"email": "alice@example.com", "password": "pw", "role": "student"}, http.StatusConflict},
		{"ok", "POST", admin, map[string]string{"email": "carol@example.com", "password": "pw", "role": "teacher"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, "/api/admin/createUser", tt.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusOK {
				resp := decode[adminResponse](t, rec)
				if !resp.Success || resp.UID == "" {
					t.Errorf("unexpected response %+v", resp)
				}
				u, _ := env.store.GetUserByID(resp.UID)
				if u == nil || u.Role != model.UserRoleTeacher {
					t.Errorf("created user = %+v", u)
				}
			}
		})
	}
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com")
	bob := env.login(t, "bob@example.com")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing uid", map[string]string{}, http.StatusBadRequest},
		{"self", map[string]string{"uid": env.ids["admin@example.com"]}, http.StatusBadRequest},
		{"unknown", map[string]string{"uid": "nope"}, http.StatusNotFound},
		{"ok", map[string]string{"uid": env.ids["bob@example.com"]}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/admin/deleteUser", admin, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
	if rec := env.do(t, "GET", "/api/me", bob, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted user's token: status %d, want 401", rec.Code)
	}
}

func TestToggleUserActive(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com")
	alice := env.login(t, "alice@example.com")

	rec := env.do(t, "POST", "/api/admin/users/"+env.ids["alice@example.com"]+"/toggle", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/me", alice, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("inactive user: status %d, want 401", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/admin/users", admin, nil); rec.Code != http.StatusOK || len(decode[[]model.User](t, rec)) != 4 {
		t.Errorf("list users: status %d", rec.Code)
	}
}

func TestListTestsHidesAnswerKeys(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice@example.com")
	teacher := env.login(t, "teacher@example.com")

	rec := env.do(t, "GET", "/api/tests?kind=listening", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "answers") {
		t.Error("students must not see answer keys")
	}
	summaries := decode[[]testSummary](t, rec)
	if len(summaries) != 1 || summaries[0].Questions != 40 {
		t.Errorf("unexpected summaries %+v", summaries)
	}

	rec = env.do(t, "GET", "/api/tests", teacher, nil)
	if !strings.Contains(rec.Body.String(), "listening_answers") {
		t.Error("staff should see answer keys")
	}
	if rec := env.do(t, "GET", "/api/tests?kind=speaking", teacher, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status %d", rec.Code)
	}
}

func TestSectionResultFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice@example.com")
	bob := env.login(t, "bob@example.com")
	teacher := env.login(t, "teacher@example.com")
	admin := env.login(t, "admin@example.com")

	rec := env.do(t, "POST", "/api/results/listening", alice, results.SectionSubmission{TestID: "L1", Answers: answersCorrect(30)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
	}
	v := decode[model.SectionView](t, rec)
	if v.Band.String() != "7.0" || v.Result.Score != 30 {
		t.Errorf("band %s score %d, want 7.0 and 30", v.Band, v.Result.Score)
	}
	path := "/api/results/listening/" + v.Result.ID

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"owner reads", "GET", path, alice, nil, http.StatusOK},
		{"other student", "GET", path, bob, nil, http.StatusForbidden},
		{"teacher reads", "GET", path, teacher, nil, http.StatusOK},
		{"html page", "GET", "/results/listening/" + v.Result.ID, alice, nil, http.StatusOK},
		{"unknown section", "GET", "/api/results/speaking/" + v.Result.ID, alice, nil, http.StatusNotFound},
		{"unknown result", "GET", "/api/results/listening/nope", alice, nil, http.StatusNotFound},
		{"wrong test kind", "POST", "/api/results/reading", alice, results.SectionSubmission{TestID: "L1", Answers: map[string]string{}}, http.StatusUnprocessableEntity},
		{"missing answers", "POST", "/api/results/listening", alice, map[string]string{"test_id": "L1"}, http.StatusUnprocessableEntity},
		{"missing test id", "POST", "/api/results/listening", alice, map[string]any{"answers": map[string]string{}}, http.StatusBadRequest},
		{"unknown test", "POST", "/api/results/listening", alice, results.SectionSubmission{TestID: "nope", Answers: map[string]string{}}, http.StatusNotFound},
		{"student delete", "DELETE", path, alice, nil, http.StatusForbidden},
		{"no token", "GET", path, "", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	page := env.do(t, "GET", "/results/listening/"+v.Result.ID+"?lang=ru", alice, nil)
	if !strings.Contains(page.Header().Get("Content-Type"), "text/html") || !strings.Contains(page.Body.String(), "Аудирование") {
		t.Errorf("expected localised html page, got %s", page.Body)
	}

	env.do(t, "POST", "/api/results/listening", bob, results.SectionSubmission{TestID: "L1", Answers: answersCorrect(10)})
	if list := decode[[]model.SectionView](t, env.do(t, "GET", "/api/results/listening", alice, nil)); len(list) != 1 {
		t.Errorf("student list has %d results, want 1", len(list))
	}
	if list := decode[[]model.SectionView](t, env.do(t, "GET", "/api/results/listening", teacher, nil)); len(list) != 2 {
		t.Errorf("teacher list has %d results, want 2", len(list))
	}

	if rec := env.do(t, "DELETE", path, admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("admin delete: status %d", rec.Code)
	}
	if rec := env.do(t, "GET", path, admin, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: status %d", rec.Code)
	}
}

func TestFullMockFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice@example.com")
	teacher := env.login(t, "teacher@example.com")
	admin := env.login(t, "admin@example.com")

	rec := env.do(t, "POST", "/api/fullmock", alice, results.FullMockSubmission{
		TestID:           "F1",
		ListeningAnswers: answersCorrect(35),
		ReadingAnswers:   answersCorrect(33),
		Writing:          model.WritingAnswers{Task1: "The chart shows", Task2: "I agree that"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
	}
	v := decode[model.FullMockView](t, rec)
	if !v.PendingWriting || v.Composite != nil {
		t.Fatalf("expected pending writing, got %+v", v)
	}
	base := "/api/fullmock/" + v.Result.ID

	if rec := env.do(t, "PUT", base+"/writing", teacher, map[string]any{"band": 7}); rec.Code != http.StatusForbidden {
		t.Errorf("teacher assign: status %d, want 403", rec.Code)
	}
	if rec := env.do(t, "PUT", base+"/writing", admin, map[string]any{"band": 9.5}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out of range band: status %d, want 422", rec.Code)
	}
	if rec := env.do(t, "PUT", base+"/writing", admin, map[string]any{"feedback": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing band: status %d, want 400", rec.Code)
	}
	if rec := env.do(t, "PUT", "/api/fullmock/nope/writing", admin, map[string]any{"band": 7}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown result: status %d, want 404", rec.Code)
	}

	rec = env.do(t, "POST", base+"/writing/suggest", teacher, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest: status %d: %s", rec.Code, rec.Body)
	}
	if s := decode[llm.WritingAssessment](t, rec); s.Band.String() != "6.5" {
		t.Errorf("suggested band %s, want 6.5", s.Band)
	}
	if rec := env.do(t, "POST", base+"/writing/suggest", alice, nil); rec.Code != http.StatusForbidden {
		t.Errorf("student suggest: status %d, want 403", rec.Code)
	}

	rec = env.do(t, "PUT", base+"/writing", admin, map[string]any{"band": 7.0, "feedback": "Clear position"})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d: %s", rec.Code, rec.Body)
	}
	v = decode[model.FullMockView](t, rec)
	if v.Composite == nil || v.Composite.Overall.String() != "7.5" {
		t.Errorf("overall band = %+v, want 7.5", v.Composite)
	}

	page := env.do(t, "GET", "/fullmock/"+v.Result.ID, alice, nil)
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "Overall band") {
		t.Errorf("full mock page: status %d", page.Code)
	}

	if list := decode[[]model.FullMockView](t, env.do(t, "GET", "/api/fullmock?test=F1", teacher, nil)); len(list) != 1 {
		t.Errorf("list has %d results, want 1", len(list))
	}

	export := env.do(t, "GET", "/api/admin/export", admin, nil)
	if out := decode[model.ResultsExport](t, export); len(out.FullMocks) != 1 || out.FullMocks[0].OverallBand != "7.5" {
		t.Errorf("unexpected export %+v", out)
	}

	if rec := env.do(t, "DELETE", base, admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d", rec.Code)
	}
}

func TestSuggestWritingFailures(t *testing.T) {
	tests := []struct {
		name     string
		assessor results.WritingAssessor
		want     int
	}{
		{"no assessor", nil, http.StatusServiceUnavailable},
		{"bad model output", brokenAssessor{}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWith(t, tt.assessor)
			alice := env.login(t, "alice@example.com")
			teacher := env.login(t, "teacher@example.com")
			rec := env.do(t, "POST", "/api/fullmock", alice, results.FullMockSubmission{
				TestID:           "F1",
				ListeningAnswers: answersCorrect(30),
				ReadingAnswers:   answersCorrect(30),
				Writing:          model.WritingAnswers{Task1: "The graph shows", Task2: "Some people believe"},
			})
			if rec.Code != http.StatusCreated {
				t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
			}
			id := decode[model.FullMockView](t, rec).Result.ID
			if rec := env.do(t, "POST", "/api/fullmock/"+id+"/writing/suggest", teacher, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestImportTestsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com")
	body := `[{"id": "R5", "kind": "reading", "answers": {"q1": ["true"]}}]`

	rec := env.do(t, "POST", "/api/admin/tests?name=reading.json", admin, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status %d: %s", rec.Code, rec.Body)
	}
	rec = env.do(t, "POST", "/api/admin/tests?name=reading.json", admin, body)
	if got := decode[map[string]any](t, rec); got["skipped"] != true {
		t.Errorf("re-import should be skipped, got %v", got)
	}
	if rec := env.do(t, "POST", "/api/admin/tests", admin, `[{"id": "X", "kind": "reading"}]`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid catalogue: status %d, want 422", rec.Code)
	}
}

func TestScoreEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		path     string
		body     string
		want     int
		wantBand string
	}{
		{"band top", "/api/score/band", `{"section": "listening", "score": 39}`, http.StatusOK, `"band":9.0`},
		{"band sentinel", "/api/score/band", `{"section": "reading", "score": 9, "total": 40}`, http.StatusOK, `"band":"Below 4.0"`},
		{"band normalized", "/api/score/band", `{"section": "listening", "score": 15, "total": 20, "mode": "normalized"}`, http.StatusOK, `"band":7.0`},
		{"band zero total", "/api/score/band", `{"section": "listening", "score": 0, "total": 0}`, http.StatusUnprocessableEntity, ""},
		{"band over total", "/api/score/band", `{"section": "reading", "score": 41}`, http.StatusUnprocessableEntity, ""},
		{"band writing", "/api/score/band", `{"section": "writing", "score": 5}`, http.StatusUnprocessableEntity, ""},
		{"band bad mode", "/api/score/band", `{"section": "reading", "score": 5, "mode": "curved"}`, http.StatusUnprocessableEntity, ""},
		{"aggregate", "/api/score/aggregate", `{"listening_score": 35, "reading_score": 33, "writing_band": 7.0}`, http.StatusOK, `"overall_band":7.5`},
		{"aggregate below", "/api/score/aggregate", `{"listening_score": 5, "reading_score": 33, "writing_band": 7.0}`, http.StatusUnprocessableEntity, ""},
		{"aggregate sentinel writing", "/api/score/aggregate", `{"listening_score": 35, "reading_score": 33, "writing_band": "Below 4.0"}`, http.StatusUnprocessableEntity, ""},
		{"aggregate bad writing", "/api/score/aggregate", `{"listening_score": 35, "reading_score": 33, "writing_band": 6.3}`, http.StatusUnprocessableEntity, ""},
		{"aggregate no writing", "/api/score/aggregate", `{"listening_score": 35, "reading_score": 33}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", tt.path, "", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.wantBand != "" && !strings.Contains(rec.Body.String(), tt.wantBand) {
				t.Errorf("body %s missing %s", rec.Body, tt.wantBand)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("OPTIONS", "/api/admin/createUser", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"scoring_mode":"raw"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body)
	}
}
