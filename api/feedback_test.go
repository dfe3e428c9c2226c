package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/feedback/api"
	"github.com/garnizeh/feedback/internal/config"
	"github.com/garnizeh/feedback/internal/repository/memory"
	"github.com/garnizeh/feedback/internal/repository/repotest"
	"github.com/garnizeh/feedback/pkg/models"
	"github.com/garnizeh/feedback/pkg/repository"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}}
}

func newTestHandler(t *testing.T, store repository.Storage) http.Handler {
	t.Helper()
	return newTestHandlerWithConfig(t, testConfig(), store)
}

func newTestHandlerWithConfig(t *testing.T, cfg *config.Config, store repository.Storage) http.Handler {
	t.Helper()
	if store == nil {
		store = memory.New(memory.WithClock(repotest.NewClock(testEpoch, time.Minute).Now))
	}
	return api.SetupRoutes(cfg, "test", "now", store)
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  []models.FieldError `json:"errors"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func hasFieldError(errs []models.FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestCreateFeedback(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodPost, "/api/feedback", `{"name":"Ann","rating":5,"comment":"Great!"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected json content-type, got %q", ct)
	}

	raw := decode[map[string]any](t, w)
	if raw["email"] != nil {
		t.Fatalf("expected null email, got %v", raw["email"])
	}
	ts, ok := raw["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp missing: %v", raw)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("timestamp %q is not RFC 3339: %v", ts, err)
	}

	f := decode[models.Feedback](t, w)
	if f.ID == 0 || f.Name != "Ann" || f.Rating != 5 || f.Comment != "Great!" {
		t.Fatalf("unexpected record: %+v", f)
	}
	if f.IPAddress == nil || *f.IPAddress != "192.0.2.1" {
		t.Fatalf("expected remote address to be stamped, got %v", f.IPAddress)
	}
	if f.UserAgent == nil || *f.UserAgent != "unknown" {
		t.Fatalf("expected user agent to default to unknown, got %v", f.UserAgent)
	}

	got := do(t, h, http.MethodGet, "/api/feedback/1", "", nil)
	if got.Code != http.StatusOK {
		t.Fatalf("get created: expected 200 got %d", got.Code)
	}
	if g := decode[models.Feedback](t, got); g.ID != f.ID || !g.Timestamp.Equal(f.Timestamp) {
		t.Fatalf("round trip mismatch: %+v vs %+v", g, f)
	}
}

func TestCreateFeedback_RequestMetadata(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodPost, "/api/feedback",
		`{"name":"Bo","email":"bo@example.com","rating":4,"comment":"ok"}`,
		map[string]string{"User-Agent": "curl/8.5.0"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	f := decode[models.Feedback](t, w)
	if f.UserAgent == nil || *f.UserAgent != "curl/8.5.0" {
		t.Fatalf("unexpected user agent %v", f.UserAgent)
	}
	if f.Email == nil || *f.Email != "bo@example.com" {
		t.Fatalf("unexpected email %v", f.Email)
	}
}

func TestCreateFeedback_ProxyHeaders(t *testing.T) {
	spoofed := map[string]string{
		"X-Forwarded-For": "6.6.6.6",
		"X-Real-IP":       "7.7.7.7",
		"True-Client-IP":  "9.9.9.9",
	}
	body := `{"name":"Ed","rating":3,"comment":"c"}`

	t.Run("IgnoredByDefault", func(t *testing.T) {
		h := newTestHandler(t, nil)
		w := do(t, h, http.MethodPost, "/api/feedback", body, spoofed)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
		}
		f := decode[models.Feedback](t, w)
		if f.IPAddress == nil || *f.IPAddress != "192.0.2.1" {
			t.Fatalf("expected the connection address, got %v", f.IPAddress)
		}
	})

	t.Run("HonouredWhenTrusted", func(t *testing.T) {
		cfg := testConfig()
		cfg.TrustProxy = true
		h := newTestHandlerWithConfig(t, cfg, nil)
		w := do(t, h, http.MethodPost, "/api/feedback", body, map[string]string{"X-Forwarded-For": "203.0.113.9"})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
		}
		f := decode[models.Feedback](t, w)
		if f.IPAddress == nil || *f.IPAddress != "203.0.113.9" {
			t.Fatalf("expected forwarded address, got %v", f.IPAddress)
		}
	})
}

func TestCreateFeedback_Invalid(t *testing.T) {
	h := newTestHandler(t, nil)

	cases := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "RatingTooLow", body: `{"name":"a","rating":0,"comment":"c"}`, fields: []string{"rating"}},
		{name: "RatingTooHigh", body: `{"name":"a","rating":6,"comment":"c"}`, fields: []string{"rating"}},
		{name: "NameTooLong", body: `{"name":"` + strings.Repeat("n", 101) + `","rating":3,"comment":"c"}`, fields: []string{"name"}},
		{name: "CommentTooLong", body: `{"name":"a","rating":3,"comment":"` + strings.Repeat("c", 501) + `"}`, fields: []string{"comment"}},
		{name: "BadEmail", body: `{"name":"a","email":"not-an-email","rating":3,"comment":"c"}`, fields: []string{"email"}},
		{name: "RatingWrongType", body: `{"name":"a","rating":"five","comment":"c"}`, fields: []string{"rating"}},
		{name: "AllMissing", body: `{}`, fields: []string{"name", "rating", "comment"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/feedback", c.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
			}
			body := decode[errorBody](t, w)
			if body.Message != "Invalid feedback data" {
				t.Fatalf("unexpected message %q", body.Message)
			}
			for _, f := range c.fields {
				if !hasFieldError(body.Errors, f) {
					t.Fatalf("expected error on %s, got %+v", f, body.Errors)
				}
			}
		})
	}

	list := do(t, h, http.MethodGet, "/api/feedback", "", nil)
	if items := decode[[]models.Feedback](t, list); len(items) != 0 {
		t.Fatalf("rejected payloads must not be stored, got %d records", len(items))
	}
}

func TestCreateFeedback_IntegralRating(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodPost, "/api/feedback", `{"name":"a","rating":5.0,"comment":"c"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	if f := decode[models.Feedback](t, w); f.Rating != 5 {
		t.Fatalf("expected rating 5, got %d", f.Rating)
	}

	frac := do(t, h, http.MethodPost, "/api/feedback", `{"name":"a","rating":4.5,"comment":"c"}`, nil)
	if frac.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", frac.Code)
	}
}

func TestCreateFeedback_EmptyEmailIsAbsent(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodPost, "/api/feedback", `{"name":"a","email":"","rating":3,"comment":"c"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	if f := decode[models.Feedback](t, w); f.Email != nil {
		t.Fatalf("expected nil email, got %q", *f.Email)
	}
}

func TestCreateFeedback_BodyHandling(t *testing.T) {
	h := newTestHandler(t, nil)

	t.Run("WrongContentType", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"name":"a","rating":3,"comment":"c"}`))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", w.Code)
		}
		if msg := decode[errorBody](t, w).Message; msg != "Content-Type must be application/json" {
			t.Fatalf("unexpected message %q", msg)
		}
	})

	t.Run("JSONWithCharset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"name":"a","rating":3,"comment":"c"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/api/feedback", `{"name":`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", w.Code)
		}
		body := decode[errorBody](t, w)
		if body.Message != "Invalid feedback data" || len(body.Errors) == 0 {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		big := `{"name":"a","rating":3,"comment":"` + strings.Repeat("x", 2<<20) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewBufferString(big))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", w.Code)
		}
		if msg := decode[errorBody](t, w).Message; msg != "Request body too large" {
			t.Fatalf("unexpected message %q", msg)
		}
	})
}

func TestListFeedback(t *testing.T) {
	h := newTestHandler(t, nil)

	empty := do(t, h, http.MethodGet, "/api/feedback", "", nil)
	if empty.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", empty.Code)
	}
	if strings.TrimSpace(empty.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", empty.Body.String())
	}

	for _, name := range []string{"first", "second", "third"} {
		w := do(t, h, http.MethodPost, "/api/feedback", `{"name":"`+name+`","rating":4,"comment":"c"}`, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s: %d", name, w.Code)
		}
	}

	items := decode[[]models.Feedback](t, do(t, h, http.MethodGet, "/api/feedback", "", nil))
	if len(items) != 3 {
		t.Fatalf("expected 3 records got %d", len(items))
	}
	want := []string{"third", "second", "first"}
	for i, f := range items {
		if f.Name != want[i] {
			t.Fatalf("position %d: expected %s got %s", i, want[i], f.Name)
		}
	}
}

func TestGetFeedback(t *testing.T) {
	h := newTestHandler(t, nil)

	w := do(t, h, http.MethodGet, "/api/feedback/999999", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"message":"Feedback not found"}` {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	do(t, h, http.MethodPost, "/api/feedback", `{"name":"a","rating":3,"comment":"c"}`, nil)
	for _, id := range []string{"abc", "12abc", "1.5", "+1", "-1", "99999999999999999999"} {
		w := do(t, h, http.MethodGet, "/api/feedback/"+id, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400 got %d", id, w.Code)
		}
		if msg := decode[errorBody](t, w).Message; msg != "Invalid feedback ID" {
			t.Fatalf("id %q: unexpected message %q", id, msg)
		}
	}
}

func TestUpdateFeedback(t *testing.T) {
	h := newTestHandler(t, nil)

	created := decode[models.Feedback](t, do(t, h, http.MethodPost, "/api/feedback",
		`{"name":"Cy","email":"cy@example.com","rating":2,"comment":"meh"}`, nil))

	bad := do(t, h, http.MethodPut, "/api/feedback/1", `{"rating":10}`, nil)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", bad.Code)
	}
	if body := decode[errorBody](t, bad); !hasFieldError(body.Errors, "rating") {
		t.Fatalf("expected rating error, got %+v", body.Errors)
	}

	w := do(t, h, http.MethodPut, "/api/feedback/1", `{"rating":5,"comment":"much better"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	f := decode[models.Feedback](t, w)
	if f.Rating != 5 || f.Comment != "much better" {
		t.Fatalf("patch not applied: %+v", f)
	}
	if f.Name != "Cy" || f.Email == nil || *f.Email != "cy@example.com" {
		t.Fatalf("untouched fields changed: %+v", f)
	}
	if !f.Timestamp.Equal(created.Timestamp) {
		t.Fatalf("timestamp changed: %v vs %v", f.Timestamp, created.Timestamp)
	}

	missing := do(t, h, http.MethodPut, "/api/feedback/424242", `{"rating":3}`, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", missing.Code)
	}

	badID := do(t, h, http.MethodPut, "/api/feedback/abc", `{"rating":3}`, nil)
	if badID.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", badID.Code)
	}
}

func TestDeleteFeedback(t *testing.T) {
	h := newTestHandler(t, nil)

	do(t, h, http.MethodPost, "/api/feedback", `{"name":"Di","rating":1,"comment":"no"}`, nil)

	w := do(t, h, http.MethodDelete, "/api/feedback/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if msg := decode[errorBody](t, w).Message; msg != "Feedback deleted successfully" {
		t.Fatalf("unexpected message %q", msg)
	}

	if again := do(t, h, http.MethodDelete, "/api/feedback/1", "", nil); again.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404 got %d", again.Code)
	}
	if get := do(t, h, http.MethodGet, "/api/feedback/1", "", nil); get.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404 got %d", get.Code)
	}
	if badID := do(t, h, http.MethodDelete, "/api/feedback/x", "", nil); badID.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", badID.Code)
	}
}

type failingStore struct{}

var errBackend = errors.New("backend unavailable")

func (failingStore) GetFeedback(context.Context) ([]models.Feedback, error) { return nil, errBackend }
func (failingStore) GetFeedbackByID(context.Context, int64) (*models.Feedback, error) {
	return nil, errBackend
}
func (failingStore) CreateFeedback(context.Context, models.FeedbackInput, *string, *string) (*models.Feedback, error) {
	return nil, errBackend
}
func (failingStore) UpdateFeedback(context.Context, int64, models.FeedbackPatch) (*models.Feedback, error) {
	return nil, errBackend
}
func (failingStore) DeleteFeedback(context.Context, int64) (bool, error) { return false, errBackend }
func (failingStore) GetUser(context.Context, int64) (*models.User, error) { return nil, errBackend }
func (failingStore) GetUserByUsername(context.Context, string) (*models.User, error) {
	return nil, errBackend
}
func (failingStore) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errBackend
}
func (failingStore) CreateUser(context.Context, models.UserInput) (*models.User, error) {
	return nil, errBackend
}
func (failingStore) Kind() string  { return "failing" }
func (failingStore) Close() error { return nil }

func TestFeedback_StorageErrors(t *testing.T) {
	h := newTestHandler(t, failingStore{})

	cases := []struct {
		method, path, body, want string
	}{
		{http.MethodGet, "/api/feedback", "", "Failed to retrieve feedback"},
		{http.MethodGet, "/api/feedback/1", "", "Failed to retrieve feedback"},
		{http.MethodPost, "/api/feedback", `{"name":"a","rating":3,"comment":"c"}`, "Failed to create feedback"},
		{http.MethodPut, "/api/feedback/1", `{"rating":3}`, "Failed to update feedback"},
		{http.MethodDelete, "/api/feedback/1", "", "Failed to delete feedback"},
	}

	for _, c := range cases {
		t.Run(c.method+c.path, func(t *testing.T) {
			w := do(t, h, c.method, c.path, c.body, nil)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500 got %d", w.Code)
			}
			body := w.Body.String()
			if !strings.Contains(body, c.want) {
				t.Fatalf("expected %q in %s", c.want, body)
			}
			if strings.Contains(body, errBackend.Error()) {
				t.Fatalf("storage error leaked to client: %s", body)
			}
		})
	}
}

func TestRouting_Fallbacks(t *testing.T) {
	h := newTestHandler(t, nil)

	if w := do(t, h, http.MethodGet, "/api/nothing-here", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	w := do(t, h, http.MethodPatch, "/api/feedback/1", `{"rating":3}`, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", w.Code)
	}
	if msg := decode[errorBody](t, w).Message; msg != "Method Not Allowed" {
		t.Fatalf("unexpected message %q", msg)
	}
}
