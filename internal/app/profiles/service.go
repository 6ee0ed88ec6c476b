// Package profiles manages the executives and moderators rosters: profile
// validation and picture handling on top of a roster.Manager.
package profiles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-tech-club/roster-api/internal/app/roster"
	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/platform/metrics"
	clockport "github.com/campus-tech-club/roster-api/internal/ports/out/clock"
	"github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

type Entry = domain.Entry[domain.Profile]

type Options struct {
	OrderSaveConcurrency int
	Metrics              *metrics.Recorder
}

// NewManager returns a roster manager wired with profile validation, cloning
// and search.
func NewManager(collection domain.CollectionName, store rowstore.ProfileStore, clk clockport.Clock, log *zap.Logger, opts Options) *roster.Manager[domain.Profile] {
	m := roster.NewManager[domain.Profile](collection, store, clk, log)
	m.Validate = ValidateProfile
	m.Clone = domain.Profile.Clone
	m.Matches = Matches
	m.OrderSaveConcurrency = opts.OrderSaveConcurrency
	m.Metrics = opts.Metrics
	return m
}

type Service struct {
	mgr     *roster.Manager[domain.Profile]
	objects objectstore.Store
	log     *zap.Logger

	newObjectID func() string
}

func NewService(mgr *roster.Manager[domain.Profile], objects objectstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		mgr:         mgr,
		objects:     objects,
		log:         log.With(zap.String("collection", string(mgr.Collection()))),
		newObjectID: uuid.NewString,
	}
}

func (s *Service) Collection() domain.CollectionName { return s.mgr.Collection() }

// Create validates the profile, uploads the optional image and appends the
// entry. A picture whose entry could not be stored is removed again.
func (s *Service) Create(ctx context.Context, in CreateInput, image *ImageUpload) (Entry, error) {
	p := normalize(domain.Profile{
		Name:        in.Name,
		Position:    in.Position,
		Bio:         in.Bio,
		Email:       in.Email,
		GithubURL:   in.GithubURL,
		LinkedInURL: in.LinkedInURL,
	})
	if err := ValidateProfile(p); err != nil {
		return Entry{}, err
	}

	if image != nil {
		url, err := s.upload(ctx, image)
		if err != nil {
			return Entry{}, err
		}
		p.ImageURL = &url
	}

	e, err := s.mgr.Add(ctx, p)
	if err != nil {
		if p.ImageURL != nil {
			s.removeImage(ctx, *p.ImageURL, "create failed")
		}
		return Entry{}, err
	}
	return e, nil
}

// Update merges in over the current profile. A new image replaces the old one,
// which is removed from the object store once the row was updated.
func (s *Service) Update(ctx context.Context, id domain.EntryID, in UpdateInput, image *ImageUpload) (Entry, error) {
	cur, err := s.mgr.Get(id)
	if err != nil {
		return Entry{}, err
	}
	p, err := applyUpdate(cur.Payload, in)
	if err != nil {
		return Entry{}, err
	}
	p = normalize(p)
	if err := ValidateProfile(p); err != nil {
		return Entry{}, err
	}

	var uploaded string
	if image != nil {
		uploaded, err = s.upload(ctx, image)
		if err != nil {
			return Entry{}, err
		}
		p.ImageURL = &uploaded
	}

	prev, e, err := s.mgr.Replace(ctx, id, p)
	if err != nil {
		if uploaded != "" {
			s.removeImage(ctx, uploaded, "update failed")
		}
		return Entry{}, err
	}
	// prev is the row this write replaced, which may differ from cur under
	// concurrent updates.
	if old := prev.Payload.ImageURL; old != nil && (p.ImageURL == nil || *p.ImageURL != *old) {
		s.removeImage(ctx, *old, "image replaced")
	}
	return e, nil
}

// ReplaceImage uploads a new picture for an existing entry.
func (s *Service) ReplaceImage(ctx context.Context, id domain.EntryID, image ImageUpload) (Entry, error) {
	return s.Update(ctx, id, UpdateInput{}, &image)
}

// Delete removes the entry, then its picture. Picture removal is best-effort.
// An *roster.OrderSaveError means the entry is gone but the remaining orders
// were not all persisted.
func (s *Service) Delete(ctx context.Context, id domain.EntryID, confirmed bool) (Entry, error) {
	removed, err := s.mgr.Delete(ctx, id, confirmed)
	var ose *roster.OrderSaveError
	if err != nil && !errors.As(err, &ose) {
		return Entry{}, err
	}
	if removed.Payload.ImageURL != nil {
		s.removeImage(ctx, *removed.Payload.ImageURL, "entry deleted")
	}
	return removed, err
}

func (s *Service) Load(ctx context.Context) error         { return s.mgr.Load(ctx) }
func (s *Service) EnsureLoaded(ctx context.Context) error { return s.mgr.EnsureLoaded(ctx) }

func (s *Service) Get(id domain.EntryID) (Entry, error) { return s.mgr.Get(id) }

func (s *Service) Snapshot() roster.Snapshot[domain.Profile] { return s.mgr.Snapshot() }

func (s *Service) Search(term string) roster.Snapshot[domain.Profile] { return s.mgr.Search(term) }

func (s *Service) BeginReorder() roster.Snapshot[domain.Profile] { return s.mgr.BeginReorder() }

func (s *Service) CancelReorder(ctx context.Context) (roster.Snapshot[domain.Profile], error) {
	return s.mgr.CancelReorder(ctx)
}

func (s *Service) ReorderMove(id domain.EntryID, position int) ([]Entry, error) {
	return s.mgr.ReorderMove(id, position)
}

func (s *Service) ReorderStep(ctx context.Context, id domain.EntryID, dir roster.Direction) (roster.StepResult[domain.Profile], error) {
	return s.mgr.ReorderStep(ctx, id, dir)
}

func (s *Service) SaveOrder(ctx context.Context) (roster.SaveOrderResult, error) {
	return s.mgr.SaveOrder(ctx)
}

func (s *Service) upload(ctx context.Context, img *ImageUpload) (string, error) {
	if img.Body == nil {
		return "", roster.ValidationError("image", "must not be empty")
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(img.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", roster.ValidationError("image", "must not be empty")
		}
		return "", roster.ValidationError("image", "unreadable upload")
	}
	head = head[:n]

	contentType := img.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(head)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || !strings.HasPrefix(mt, "image/") {
		return "", roster.ValidationError("image", "must be an image")
	}

	key := string(s.mgr.Collection()) + "/" + s.newObjectID() + imageExt(img.Filename, contentType)
	body := io.MultiReader(bytes.NewReader(head), img.Body)
	url, err := s.objects.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", &roster.Error{
			Status:  http.StatusBadGateway,
			Code:    roster.CodeWriteFailed,
			Message: "image upload failed",
			Err:     err,
		}
	}
	return url, nil
}

func (s *Service) removeImage(ctx context.Context, url, reason string) {
	err := s.objects.Remove(ctx, url)
	if err == nil || errors.Is(err, objectstore.ErrNotFound) {
		return
	}
	s.log.Warn("image removal failed", zap.String("url", url), zap.String("reason", reason), zap.Error(err))
}

func applyUpdate(p domain.Profile, in UpdateInput) (domain.Profile, error) {
	required := []struct {
		name string
		dst  *string
		o    Optional[string]
	}{
		{"name", &p.Name, in.Name},
		{"position", &p.Position, in.Position},
		{"bio", &p.Bio, in.Bio},
		{"email", &p.Email, in.Email},
	}
	for _, f := range required {
		if !f.o.IsSpecified() {
			continue
		}
		if f.o.IsNull() {
			return domain.Profile{}, roster.ValidationError(f.name, "cannot be null")
		}
		*f.dst = f.o.Value()
	}

	applyField := func(dst **string, o Optional[string]) {
		if !o.IsSpecified() {
			return
		}
		if o.IsNull() {
			*dst = nil
			return
		}
		v := o.Value()
		*dst = &v
	}
	applyField(&p.GithubURL, in.GithubURL)
	applyField(&p.LinkedInURL, in.LinkedInURL)

	if in.ImageURL.IsSpecified() {
		if !in.ImageURL.IsNull() {
			return domain.Profile{}, roster.ValidationError("imageUrl", "can only be cleared; upload a new image instead")
		}
		p.ImageURL = nil
	}
	return p, nil
}

func imageExt(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
