package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	memclock "github.com/campus-tech-club/roster-api/internal/adapters/memory/clock"
	memobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/objectstore"
	memrowstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/rowstore"
	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/platform/auth/jwks_testutil"
	"github.com/campus-tech-club/roster-api/internal/platform/auth/jwtverifier"
	"github.com/campus-tech-club/roster-api/internal/platform/config"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestAuthRouter(t *testing.T) (http.Handler, func(now time.Time, kid string) string) {
	t.Helper()

	jwksSrv, setKeys, _ := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(jwksSrv.Close)

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	setKeys([]jwks_testutil.Keypair{kp})

	cfg := config.JWTConfig{
		Issuer:                 "test-iss",
		Audience:               "test-aud",
		JWKSURL:                jwksSrv.URL,
		ClockSkew:              0,
		JWKSRefreshInterval:    10 * time.Minute,
		JWKSMinRefreshInterval: 0,
		HTTPTimeout:            2 * time.Second,
	}

	clk := fixedClock{t: time.Unix(1700000000, 0)}
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	mint := func(now time.Time, kid string) string {
		if kid != kp.Kid {
			t.Fatalf("unsupported kid in test: %s", kid)
		}
		jwt, err := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, "admin-123", now, 5*time.Minute, nil)
		if err != nil {
			t.Fatalf("MintRS256JWT: %v", err)
		}
		return jwt
	}

	mgr := profiles.NewManager(domain.CollectionExecutives, memrowstore.NewProfileStore(), memclock.NewManualClock(clk.t), zap.NewNop(), profiles.Options{})
	svc := profiles.NewService(mgr, memobjectstore.NewStore("/media"), zap.NewNop())
	api := NewServer(map[domain.CollectionName]*profiles.Service{domain.CollectionExecutives: svc}, nil, clk, zap.NewNop())

	h := NewRouterWithOptions(api, RouterOptions{
		AuthMiddleware: NewAuthMiddleware(v, zap.NewNop()),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	return h, mint
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/rosters/executives/entries", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if er.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("code: got %q", er.Error.Code)
	}
	if !er.Error.RequestId.IsSpecified() || er.Error.RequestId.IsNull() {
		t.Fatalf("expected requestId to be set")
	}
	if rid, err := er.Error.RequestId.Get(); err != nil || rid == "" {
		t.Fatalf("expected requestId to be a non-empty string")
	}
}

func TestAuthMiddleware_MalformedHeader_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/rosters/executives/entries", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/rosters/executives/entries", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ValidToken_AllowsRequest(t *testing.T) {
	t.Parallel()

	h, mint := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/rosters/executives/entries", nil)
	req.Header.Set("Authorization", "Bearer "+mint(time.Unix(1700000000, 0), "kid-1"))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAuthMiddleware_PublicPathsSkipAuth(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: got %d want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestDevAuthMiddleware_RequiresSubject(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/rosters/executives/entries", nil)
	rec := httptest.NewRecorder()
	api.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = api.do(t, http.MethodGet, "/rosters/executives/entries", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with subject: got %d want %d", rec.Code, http.StatusOK)
	}
}
