package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memclock "github.com/campus-tech-club/roster-api/internal/adapters/memory/clock"
	memidempotency "github.com/campus-tech-club/roster-api/internal/adapters/memory/idempotency"
	memobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/objectstore"
	memrowstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/rowstore"
	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n fake png payload")

// flakyRows fails display-order updates for the ids in failOrder.
type flakyRows struct {
	*memrowstore.Store[domain.Profile]

	mu        sync.Mutex
	failOrder map[domain.EntryID]bool
}

func (f *flakyRows) Update(ctx context.Context, id domain.EntryID, p rowstore.Patch[domain.Profile]) (domain.Entry[domain.Profile], error) {
	f.mu.Lock()
	fail := p.DisplayOrder != nil && f.failOrder[id]
	f.mu.Unlock()
	if fail {
		return domain.Entry[domain.Profile]{}, errors.New("connection reset")
	}
	return f.Store.Update(ctx, id, p)
}

func (f *flakyRows) failOrderUpdates(id domain.EntryID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOrder[id] = true
}

type testAPI struct {
	h       http.Handler
	clk     *memclock.ManualClock
	rows    map[domain.CollectionName]*flakyRows
	objects *memobjectstore.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	objects := memobjectstore.NewStore("/media")
	api := &testAPI{
		clk:     clk,
		rows:    map[domain.CollectionName]*flakyRows{},
		objects: objects,
	}
	rosters := map[domain.CollectionName]*profiles.Service{}
	for _, c := range domain.Collections() {
		rows := &flakyRows{Store: memrowstore.NewProfileStore(), failOrder: map[domain.EntryID]bool{}}
		mgr := profiles.NewManager(c, rows, clk, zap.NewNop(), profiles.Options{})
		rosters[c] = profiles.NewService(mgr, objects, zap.NewNop())
		api.rows[c] = rows
	}
	srv := NewServer(rosters, memidempotency.NewStore(), clk, zap.NewNop())
	api.h = NewRouterWithOptions(srv, RouterOptions{
		AuthMiddleware: NewDevAuthMiddleware(""),
		Media:          objects,
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-Debug-Subject", "admin-1")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doMultipart(t *testing.T, method, path string, fields map[string]string, image []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="portrait.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Debug-Subject", "admin-1")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) create(t *testing.T, collection, name string) RosterEntry {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/rosters/"+collection+"/entries", newEntryBody(name), nil)
	require.Equalf(t, http.StatusCreated, rec.Code, "body=%s", rec.Body.String())
	return decode[EntryResponse](t, rec).Entry
}

func (a *testAPI) list(t *testing.T, collection string) ListEntriesResponse {
	t.Helper()
	rec := a.do(t, http.MethodGet, "/rosters/"+collection+"/entries", nil, nil)
	require.Equalf(t, http.StatusOK, rec.Code, "body=%s", rec.Body.String())
	return decode[ListEntriesResponse](t, rec)
}

func newEntryBody(name string) CreateEntryRequest {
	return CreateEntryRequest{
		Name:     name,
		Position: "Officer",
		Bio:      "Runs things.",
		Email:    "officer@example.com",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoErrorf(t, json.Unmarshal(rec.Body.Bytes(), &out), "body=%s", rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Error.Code
}

func names(es []RosterEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}
