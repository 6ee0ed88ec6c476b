package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/campus-tech-club/roster-api/internal/adapters/httpapi"
	memclock "github.com/campus-tech-club/roster-api/internal/adapters/memory/clock"
	memidempotency "github.com/campus-tech-club/roster-api/internal/adapters/memory/idempotency"
	memobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/objectstore"
	memrowstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/rowstore"
	pgidempotency "github.com/campus-tech-club/roster-api/internal/adapters/postgres/idempotency"
	pgrowstore "github.com/campus-tech-club/roster-api/internal/adapters/postgres/rowstore"
	postgres_testutil "github.com/campus-tech-club/roster-api/internal/adapters/postgres/testutil"
	"github.com/campus-tech-club/roster-api/internal/adapters/sqlite"
	sqliteidempotency "github.com/campus-tech-club/roster-api/internal/adapters/sqlite/idempotency"
	sqliterowstore "github.com/campus-tech-club/roster-api/internal/adapters/sqlite/rowstore"
	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/domain"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
	rowstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "sqlite":
		return []backend{backendSQLite}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = "itest-issuer"
	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		newRows   func(domain.CollectionName) rowstoreport.ProfileStore
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t, "executives", "moderators", "idempotency_keys")
		newRows = func(c domain.CollectionName) rowstoreport.ProfileStore {
			s, err := pgrowstore.NewProfileStore(pool, c)
			if err != nil {
				t.Fatalf("postgres rowstore: %v", err)
			}
			return s
		}
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendSQLite:
		db, err := sqlite.Open(t.Context(), "file:"+filepath.Join(t.TempDir(), "itest.db"))
		if err != nil {
			t.Fatalf("sqlite.Open: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		newRows = func(c domain.CollectionName) rowstoreport.ProfileStore {
			s, err := sqliterowstore.NewProfileStore(db, c)
			if err != nil {
				t.Fatalf("sqlite rowstore: %v", err)
			}
			return s
		}
		idemStore = sqliteidempotency.NewStore(db, issuer)
	case backendMemory:
		newRows = func(domain.CollectionName) rowstoreport.ProfileStore { return memrowstore.NewProfileStore() }
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	objects := memobjectstore.NewStore("/media")
	rosters := map[domain.CollectionName]*profiles.Service{}
	for _, c := range domain.Collections() {
		mgr := profiles.NewManager(c, newRows(c), clk, zap.NewNop(), profiles.Options{OrderSaveConcurrency: 4})
		rosters[c] = profiles.NewService(mgr, objects, zap.NewNop())
	}
	api := httpapi.NewServer(rosters, idemStore, clk, zap.NewNop())

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// An empty default subject means requests MUST provide X-Debug-Subject.
	authMW := httpapi.NewDevAuthMiddleware("")
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Media:          objects,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte, http.Header) {
	t.Helper()
	return s.do(t, method, path, subject, body, nil)
}

func (s *testServer) doJSONWithHeaders(t *testing.T, method string, path string, subject string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	status, out, _ := s.do(t, method, path, subject, body, headers)
	return status, out
}

func (s *testServer) do(t *testing.T, method string, path string, subject string, body any, headers map[string]string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
