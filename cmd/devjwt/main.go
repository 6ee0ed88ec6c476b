package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/campus-tech-club/roster-api/internal/platform/auth/jwks_testutil"
	"github.com/campus-tech-club/roster-api/internal/platform/logging"
)

// Tiny dev-only JWT issuer + JWKS server.
//
// This is NOT a full OIDC provider. It exists to support local development against
// real RS256 JWT verification (iss/aud/exp + JWKS).

func main() {
	log, err := logging.New(getenv("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "5556")
	issuer := getenv("ISSUER", "http://devjwt:5556")
	audience := getenv("AUDIENCE", "roster-api")
	kid := getenv("KID", "dev-kid-1")
	ttl := getenvDuration(log, "TTL", 30*time.Minute)

	kp, err := jwks_testutil.GenerateRSAKeypair(kid)
	if err != nil {
		log.Fatal("generate key", zap.Error(err))
	}
	jwksJSON, err := jwks_testutil.JWKS([]jwks_testutil.Keypair{kp})
	if err != nil {
		log.Fatal("marshal jwks", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Common JWKS path used by many providers.
	r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	})

	// Mint a JWT:
	//   GET /token?sub=dev|alice
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		sub := strings.TrimSpace(r.URL.Query().Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}

		now := time.Now().UTC()
		// Small skew tolerance for local use.
		nbf := -5 * time.Second
		token, err := jwks_testutil.MintRS256JWT(kp, issuer, audience, sub, now, ttl, &nbf)
		if err != nil {
			log.Error("mint token", zap.Error(err))
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"iss":   issuer,
			"aud":   audience,
			"exp":   now.Add(ttl).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("devjwt listening",
		zap.String("port", port),
		zap.String("iss", issuer),
		zap.String("aud", audience),
		zap.String("kid", kid),
		zap.Duration("ttl", ttl),
	)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(log *zap.Logger, k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("ignoring invalid duration", zap.String("key", k), zap.String("value", v))
		return def
	}
	return d
}
