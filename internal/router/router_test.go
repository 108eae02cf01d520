package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classroom-client/internal/app"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/handler"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/middleware"
	"github.com/stemsi/classroom-client/internal/validator"
	ws "github.com/stemsi/classroom-client/internal/websocket"
	"github.com/stemsi/classroom-client/internal/worker"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode:                gin.TestMode,
		AuthRateLimit:          100,
		IdentityDriver:         config.DriverMemory,
		DocstoreDriver:         config.DriverMemory,
		BcryptCost:             bcrypt.MinCost,
		SessionMedium:          config.MediumNone,
		SessionSecret:          "router-test-secret",
		SessionTTL:             8 * time.Hour,
		SessionRefreshDebounce: time.Minute,
		SessionCheckInterval:   time.Minute,
		IdentityWaitTimeout:    time.Second,
		RecoveryCodeTTL:        15 * time.Minute,
		InitMaxAttempts:        1,
		InitRetryInterval:      time.Minute,
		AnnouncementPageSize:   2,
		AssignmentPageSize:     2,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	validator.Setup()

	cfg := testConfig()
	log := zerolog.Nop()
	core := app.New(cfg, log, metrics.NewNop(), nil)
	t.Cleanup(core.Close)

	keeper := worker.NewSessionKeeper(core.Session, cfg.SessionCheckInterval, log)
	handlers := &Handlers{
		Session:  handler.NewSessionHandler(core.Session, core.Snapshot, keeper, false, log),
		Recovery: handler.NewRecoveryHandler(core.Session),
		Class:    handler.NewClassHandler(core.Classes),
		Feed:     handler.NewFeedHandler(core.Feeds),
		System:   handler.NewSystemHandler(core.Coordinator, log),
		WS:       handler.NewWSHandler(ws.NewHub(), log, nil),
	}
	return SetupRouter(cfg, handlers, Deps{
		Session:     core.Session,
		Snapshot:    core.Snapshot,
		Verifier:    core.Issuer,
		AuthLimiter: middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute),
		Log:         log,
	})
}

type errorBody struct {
	Code string `json:"code"`
}

type pagination struct {
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Error      *errorBody      `json:"error"`
	Pagination *pagination     `json:"pagination"`
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	if w, _ := do(t, r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestClassesRequireSession(t *testing.T) {
	r := newTestRouter(t)
	w, env := do(t, r, http.MethodGet, "/api/v1/classes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHENTICATED" {
		t.Fatalf("expected UNAUTHENTICATED, got %+v", env.Error)
	}
}

func TestProtectedPageRedirects(t *testing.T) {
	r := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/home", nil)
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?callbackUrl=%2Fhome" {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestTeacherFlow(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/v1/session/register", map[string]any{
		"username": "mtorres",
		"email":    "mtorres@school.mx",
		"folio":    "T-0042",
		"curp":     "TOGM800101HDFRRR09",
		"password": "secret123",
		"role":     "teacher",
		"subjects": []string{"ENGLISH"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w, env := do(t, r, http.MethodPost, "/api/v1/classes", map[string]any{
		"name":    "English II",
		"subject": "ENGLISH",
		"section": "B",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create class: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var class struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &class); err != nil || class.ID == "" {
		t.Fatalf("expected a class id, got %s", env.Data)
	}

	base := "/api/v1/classes/" + class.ID + "/announcements"
	for _, content := range []string{"Welcome", "Bring your book", "Quiz on Friday"} {
		if w, _ := do(t, r, http.MethodPost, base, map[string]any{"content": content}); w.Code != http.StatusCreated {
			t.Fatalf("post %q: expected 201, got %d: %s", content, w.Code, w.Body.String())
		}
	}

	w, env = do(t, r, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first page: expected 200, got %d", w.Code)
	}
	if env.Pagination == nil || env.Pagination.Count != 2 || !env.Pagination.HasMore {
		t.Fatalf("expected a full first page with more, got %+v", env.Pagination)
	}

	w, env = do(t, r, http.MethodPost, base+"/more", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("more: expected 200, got %d", w.Code)
	}
	if env.Pagination == nil || env.Pagination.Count != 3 || env.Pagination.HasMore {
		t.Fatalf("expected the feed to be exhausted at 3 items, got %+v", env.Pagination)
	}

	if w, _ := do(t, r, http.MethodPost, "/api/v1/session/logout", nil); w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/v1/classes", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestStudentCannotCreateClass(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/v1/session/register", map[string]any{
		"username": "alumno1",
		"email":    "alumno1@school.mx",
		"folio":    "S-1001",
		"curp":     "ROLA050505MDFRPN02",
		"password": "secret123",
		"role":     "student",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w, env := do(t, r, http.MethodPost, "/api/v1/classes", map[string]any{"name": "Mine", "subject": "ENGLISH"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if env.Error == nil || env.Error.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %+v", env.Error)
	}
}
