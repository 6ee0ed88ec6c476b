package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/campus-tech-club/roster-api/internal/app/profiles"
	"github.com/campus-tech-club/roster-api/internal/app/roster"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/platform/clock"
	clockport "github.com/campus-tech-club/roster-api/internal/ports/out/clock"
	"github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

const (
	maxJSONBodyBytes = 64 << 10
	maxImageBytes    = 5 << 20
	// Multipart overhead on top of the image itself.
	maxUploadBytes = maxImageBytes + 64<<10
)

type Server struct {
	Rosters map[domain.CollectionName]*profiles.Service
	Idem    idempotency.Store
	Clock   clockport.Clock
	Log     *zap.Logger
}

func NewServer(rosters map[domain.CollectionName]*profiles.Service, idem idempotency.Store, clk clockport.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Server{
		Rosters: rosters,
		Idem:    idem,
		Clock:   clk,
		Log:     log,
	}
}

// Routes registers the roster endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/rosters/{collection}", func(r chi.Router) {
		r.Get("/entries", s.ListEntries)
		r.Post("/entries", s.CreateEntry)
		r.Patch("/entries/{entryId}", s.UpdateEntry)
		r.Delete("/entries/{entryId}", s.DeleteEntry)
		r.Put("/entries/{entryId}/image", s.ReplaceEntryImage)
		r.Post("/entries/{entryId}/step", s.StepEntry)
		r.Post("/reload", s.Reload)
		r.Post("/reorder", s.BeginReorder)
		r.Delete("/reorder", s.CancelReorder)
		r.Post("/reorder/moves", s.MoveEntry)
		r.Post("/reorder/save", s.SaveOrder)
	})
}

func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	var q *string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "invalid q parameter", nil)
		return
	}
	snap := svc.Snapshot()
	if q != nil && strings.TrimSpace(*q) != "" {
		snap = svc.Search(*q)
	}
	writeJSON(w, http.StatusOK, toListEntriesResponse(snap))
}

func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	if err := svc.Load(r.Context()); err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toListEntriesResponse(svc.Snapshot()))
}

func (s *Server) CreateEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return
	}

	body, image, ok := decodeCreate(w, r)
	if !ok {
		return
	}

	// Idempotency handling:
	// - Replay if same actor+key+route+bodyHash
	// - Reject if same actor+key+route with different bodyHash (409)
	// - Keys older than the replay window start over
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	now := s.Clock.Now().UTC()
	var respFP idempotency.Fingerprint
	if s.Idem != nil && idemKey != "" {
		bodyHash, err := hashCreateEntryBody(body, image)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
		respFP = idempotency.Fingerprint{
			Key:      idempotency.Key(idemKey),
			Subject:  sub,
			Method:   http.MethodPost,
			Route:    r.URL.Path,
			BodyHash: bodyHash,
		}
		metaFP := respFP.Meta()
		if meta, ok, err := s.Idem.Get(r.Context(), metaFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok && meta.Fresh(now) {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
		} else {
			_ = s.Idem.Put(r.Context(), metaFP, idempotency.Record{
				StatusCode:  0,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   now,
			})
		}

		if rec, ok, err := s.Idem.Get(r.Context(), respFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok && rec.Fresh(now) && rec.StatusCode == http.StatusCreated && strings.HasPrefix(rec.ContentType, "application/json") {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	var upload *profiles.ImageUpload
	if image != nil {
		upload = &profiles.ImageUpload{
			Filename:    image.filename,
			ContentType: image.contentType,
			Body:        bytes.NewReader(image.data),
		}
	}
	created, err := svc.Create(r.Context(), toCreateInput(body), upload)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}

	resp := EntryResponse{Entry: toRosterEntry(created)}
	if respFP.Key != "" {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.Idem.Put(r.Context(), respFP, idempotency.Record{
				StatusCode:  http.StatusCreated,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   now,
			})
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var body UpdateEntryRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	updated, err := svc.Update(r.Context(), id, toUpdateInput(body), nil)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Entry: toRosterEntry(updated)})
}

func (s *Server) ReplaceEntryImage(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if !isMultipart(r) {
		writeError(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "expected multipart/form-data", nil)
		return
	}
	img, ok := readMultipartImage(w, r)
	if !ok {
		return
	}
	if img == nil {
		writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "image: is required", map[string]any{"field": "image"})
		return
	}
	updated, err := svc.ReplaceImage(r.Context(), id, profiles.ImageUpload{
		Filename:    img.filename,
		ContentType: img.contentType,
		Body:        bytes.NewReader(img.data),
	})
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Entry: toRosterEntry(updated)})
}

func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var confirm *bool
	if err := runtime.BindQueryParameter("form", true, false, "confirm", r.URL.Query(), &confirm); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "confirm must be a boolean", nil)
		return
	}
	removed, err := svc.Delete(r.Context(), id, confirm != nil && *confirm)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Entry: toRosterEntry(removed)})
}

func (s *Server) StepEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var body StepRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	dir := roster.Direction(strings.ToLower(strings.TrimSpace(body.Direction)))
	if dir != roster.DirectionUp && dir != roster.DirectionDown {
		writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "direction: must be up or down", map[string]any{"field": "direction"})
		return
	}
	res, err := svc.ReorderStep(r.Context(), id, dir)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, StepResponse{Moved: res.Moved, Entries: toRosterEntries(res.Entries)})
}

func (s *Server) BeginReorder(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toListEntriesResponse(svc.BeginReorder()))
}

func (s *Server) CancelReorder(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	snap, err := svc.CancelReorder(r.Context())
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toListEntriesResponse(snap))
}

func (s *Server) MoveEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	var body MoveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.EntryId) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "entryId: is required", map[string]any{"field": "entryId"})
		return
	}
	if body.Position == nil {
		writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "position: is required", map[string]any{"field": "position"})
		return
	}
	if _, err := svc.ReorderMove(domain.EntryID(body.EntryId), *body.Position); err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toListEntriesResponse(svc.Snapshot()))
}

func (s *Server) SaveOrder(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.roster(w, r)
	if !ok {
		return
	}
	res, err := svc.SaveOrder(r.Context())
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveOrderResponse{
		Saved:               res.Saved,
		ListEntriesResponse: toListEntriesResponse(svc.Snapshot()),
	})
}

// roster resolves the {collection} path parameter to a loaded service.
func (s *Server) roster(w http.ResponseWriter, r *http.Request) (*profiles.Service, bool) {
	raw := chi.URLParam(r, "collection")
	name, ok := domain.ParseCollectionName(raw)
	var svc *profiles.Service
	if ok {
		svc = s.Rosters[name]
	}
	if svc == nil {
		writeError(w, r, http.StatusNotFound, "COLLECTION_NOT_FOUND", "unknown roster collection", map[string]any{"collection": raw})
		return nil, false
	}
	// A failed startup load is retried on the next request.
	if err := svc.EnsureLoaded(r.Context()); err != nil {
		writeAppError(w, r, s.Log, err)
		return nil, false
	}
	return svc, true
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (domain.EntryID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "entryId", chi.URLParam(r, "entryId"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "entryId must be a UUID", map[string]any{"param": "entryId"})
		return "", false
	}
	return domain.EntryID(id.String()), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "missing request body", nil)
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusUnprocessableEntity, roster.CodeValidation, "missing request body", nil)
			return false
		}
		if mbe := (*http.MaxBytesError)(nil); errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return false
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", nil)
		return false
	}
	return true
}

type imagePart struct {
	filename    string
	contentType string
	data        []byte
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// decodeCreate accepts either a JSON body or a multipart form whose optional
// "image" part carries the profile picture.
func decodeCreate(w http.ResponseWriter, r *http.Request) (CreateEntryRequest, *imagePart, bool) {
	var body CreateEntryRequest
	if !isMultipart(r) {
		return body, nil, decodeJSON(w, r, &body)
	}
	img, ok := readMultipartImage(w, r)
	if !ok {
		return body, nil, false
	}
	optional := func(name string) *string {
		if _, present := r.MultipartForm.Value[name]; !present {
			return nil
		}
		v := r.FormValue(name)
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	body = CreateEntryRequest{
		Name:        r.FormValue("name"),
		Position:    r.FormValue("position"),
		Bio:         r.FormValue("bio"),
		Email:       r.FormValue("email"),
		GithubUrl:   optional("githubUrl"),
		LinkedInUrl: optional("linkedInUrl"),
	}
	return body, img, true
}

// readMultipartImage parses the multipart form and returns its "image" part,
// or nil when the form has none.
func readMultipartImage(w http.ResponseWriter, r *http.Request) (*imagePart, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if mbe := (*http.MaxBytesError)(nil); errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image exceeds 5 MiB", nil)
			return nil, false
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed multipart body", nil)
		return nil, false
	}
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "unreadable image part", nil)
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "unreadable image part", nil)
		return nil, false
	}
	if len(data) > maxImageBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image exceeds 5 MiB", nil)
		return nil, false
	}
	return &imagePart{
		filename:    hdr.Filename,
		contentType: hdr.Header.Get("Content-Type"),
		data:        data,
	}, true
}

func hashCreateEntryBody(b CreateEntryRequest, img *imagePart) (string, error) {
	canon := b
	canon.Name = domain.NormalizeHumanName(canon.Name)
	canon.Position = domain.NormalizeHumanName(canon.Position)
	canon.Bio = strings.TrimSpace(canon.Bio)
	canon.Email = strings.TrimSpace(canon.Email)
	raw, err := json.Marshal(struct {
		CreateEntryRequest
		Image string `json:"image,omitempty"`
	}{CreateEntryRequest: canon, Image: imageDigest(img)})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func imageDigest(img *imagePart) string {
	if img == nil {
		return ""
	}
	sum := sha256.Sum256(img.data)
	return hex.EncodeToString(sum[:])
}
