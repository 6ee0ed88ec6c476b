package profiles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memclock "github.com/campus-tech-club/roster-api/internal/adapters/memory/clock"
	memobjectstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/objectstore"
	memrowstore "github.com/campus-tech-club/roster-api/internal/adapters/memory/rowstore"
	"github.com/campus-tech-club/roster-api/internal/app/roster"
	"github.com/campus-tech-club/roster-api/internal/domain"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n fake png payload")

type failingObjects struct {
	*memobjectstore.Store
	failUpload bool
	// beforeUpload runs once, ahead of the next upload.
	beforeUpload func()
}

func (f *failingObjects) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if f.failUpload {
		return "", errors.New("bucket unavailable")
	}
	if hook := f.beforeUpload; hook != nil {
		f.beforeUpload = nil
		hook()
	}
	return f.Store.Upload(ctx, key, contentType, r)
}

func newTestService(t *testing.T) (*Service, *memrowstore.Store[domain.Profile], *failingObjects) {
	t.Helper()
	rows := memrowstore.NewProfileStore()
	objects := &failingObjects{Store: memobjectstore.NewStore("https://cdn.example.com/media")}
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	mgr := NewManager(domain.CollectionExecutives, rows, clk, zap.NewNop(), Options{})
	require.NoError(t, mgr.Load(context.Background()))
	return NewService(mgr, objects, zap.NewNop()), rows, objects
}

func validInput(name string) CreateInput {
	return CreateInput{
		Name:     name,
		Position: "Treasurer",
		Bio:      "Keeps the books.",
		Email:    strings.ToLower(strings.Fields(name)[0]) + "@example.com",
	}
}

func requireCode(t *testing.T, err error, code string) *roster.Error {
	t.Helper()
	var ae *roster.Error
	require.Truef(t, errors.As(err, &ae), "err=%v (type=%T), want *roster.Error", err, err)
	require.Equal(t, code, ae.Code)
	return ae
}

func TestValidateProfile(t *testing.T) {
	t.Parallel()

	ok := domain.Profile{Name: "Ada", Position: "President", Bio: "b", Email: "ada@example.com"}
	require.NoError(t, ValidateProfile(ok))

	link := "https://github.com/ada"
	withLink := ok
	withLink.GithubURL = &link
	require.NoError(t, ValidateProfile(withLink))

	cases := map[string]func(p *domain.Profile){
		"name":        func(p *domain.Profile) { p.Name = " " },
		"position":    func(p *domain.Profile) { p.Position = "" },
		"bio":         func(p *domain.Profile) { p.Bio = "" },
		"email":       func(p *domain.Profile) { p.Email = "Ada <ada@example.com>" },
		"linkedInUrl": func(p *domain.Profile) { bad := "linkedin.com/in/ada"; p.LinkedInURL = &bad },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			p := ok
			mutate(&p)
			ae := requireCode(t, ValidateProfile(p), roster.CodeValidation)
			assert.Contains(t, ae.Details, field)
		})
	}
}

func TestService_CreateNormalizesAndUploadsImage(t *testing.T) {
	t.Parallel()

	svc, rows, objects := newTestService(t)
	in := validInput("  Ada   Lovelace ")
	e, err := svc.Create(context.Background(), in, &ImageUpload{Filename: "ada.PNG", Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", e.Payload.Name)
	assert.Equal(t, 0, e.DisplayOrder)
	require.NotNil(t, e.Payload.ImageURL)
	assert.True(t, strings.HasPrefix(*e.Payload.ImageURL, "https://cdn.example.com/media/executives/"))
	assert.True(t, strings.HasSuffix(*e.Payload.ImageURL, ".png"))

	body, contentType, ok := objects.Get(*e.Payload.ImageURL)
	require.True(t, ok)
	assert.Equal(t, pngBytes, body)
	assert.Equal(t, "image/png", contentType)

	stored, err := rows.Select(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, e.ID, stored[0].ID)
}

func TestService_CreateValidationSkipsUpload(t *testing.T) {
	t.Parallel()

	svc, _, objects := newTestService(t)
	in := validInput("Ada")
	in.Email = ""
	_, err := svc.Create(context.Background(), in, &ImageUpload{Body: bytes.NewReader(pngBytes)})
	requireCode(t, err, roster.CodeValidation)
	assert.Equal(t, 0, objects.Len())
}

func TestService_CreateRejectsNonImage(t *testing.T) {
	t.Parallel()

	svc, _, objects := newTestService(t)
	_, err := svc.Create(context.Background(), validInput("Ada"), &ImageUpload{
		Filename: "notes.txt",
		Body:     strings.NewReader("plain text, not a picture"),
	})
	ae := requireCode(t, err, roster.CodeValidation)
	assert.Contains(t, ae.Details, "image")
	assert.Equal(t, 0, objects.Len())
	assert.Empty(t, svc.Snapshot().Entries)
}

func TestService_CreateUploadFailure(t *testing.T) {
	t.Parallel()

	svc, rows, objects := newTestService(t)
	objects.failUpload = true

	_, err := svc.Create(context.Background(), validInput("Ada"), &ImageUpload{Body: bytes.NewReader(pngBytes)})
	ae := requireCode(t, err, roster.CodeWriteFailed)
	assert.Equal(t, "image upload failed", ae.Message)

	stored, err := rows.Select(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_UpdateTriState(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	gh := "https://github.com/ada"
	in := validInput("Ada")
	in.GithubURL = &gh
	e, err := svc.Create(context.Background(), in, nil)
	require.NoError(t, err)

	// Unspecified fields are kept.
	up, err := svc.Update(context.Background(), e.ID, UpdateInput{Position: Some("President")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "President", up.Payload.Position)
	assert.Equal(t, "Ada", up.Payload.Name)
	require.NotNil(t, up.Payload.GithubURL)

	// Null clears optional fields.
	up, err = svc.Update(context.Background(), e.ID, UpdateInput{GithubURL: Null[string]()}, nil)
	require.NoError(t, err)
	assert.Nil(t, up.Payload.GithubURL)

	// Required fields cannot be nulled.
	_, err = svc.Update(context.Background(), e.ID, UpdateInput{Email: Null[string]()}, nil)
	ae := requireCode(t, err, roster.CodeValidation)
	assert.Equal(t, "cannot be null", ae.Details["email"])

	_, err = svc.Update(context.Background(), "missing", UpdateInput{}, nil)
	requireCode(t, err, roster.CodeNotFound)
}

func TestService_ReplaceImageRemovesOld(t *testing.T) {
	t.Parallel()

	svc, _, objects := newTestService(t)
	e, err := svc.Create(context.Background(), validInput("Ada"), &ImageUpload{Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	old := *e.Payload.ImageURL

	up, err := svc.ReplaceImage(context.Background(), e.ID, ImageUpload{ContentType: "image/png", Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	require.NotNil(t, up.Payload.ImageURL)
	assert.NotEqual(t, old, *up.Payload.ImageURL)

	_, _, ok := objects.Get(old)
	assert.False(t, ok, "old image must be removed")
	assert.Equal(t, 1, objects.Len())

	// Clearing the image removes the object too.
	up, err = svc.Update(context.Background(), e.ID, UpdateInput{ImageURL: Null[string]()}, nil)
	require.NoError(t, err)
	assert.Nil(t, up.Payload.ImageURL)
	assert.Equal(t, 0, objects.Len())
}

func TestService_ReplaceImageRemovesTheImageItActuallyReplaced(t *testing.T) {
	t.Parallel()

	svc, _, objects := newTestService(t)
	e, err := svc.Create(context.Background(), validInput("Ada"), &ImageUpload{Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	first := *e.Payload.ImageURL

	// Another replace lands after this request read the entry but before it wrote.
	var second string
	objects.beforeUpload = func() {
		up, err := svc.ReplaceImage(context.Background(), e.ID, ImageUpload{Body: bytes.NewReader(pngBytes)})
		require.NoError(t, err)
		second = *up.Payload.ImageURL
	}

	up, err := svc.ReplaceImage(context.Background(), e.ID, ImageUpload{Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	final := *up.Payload.ImageURL
	require.NotEqual(t, first, second)
	require.NotEqual(t, second, final)

	for _, gone := range []string{first, second} {
		_, _, ok := objects.Get(gone)
		assert.Falsef(t, ok, "%s must be removed", gone)
	}
	_, _, ok := objects.Get(final)
	assert.True(t, ok)
	assert.Equal(t, 1, objects.Len())
}

func TestService_DeleteRemovesImageAndReindexes(t *testing.T) {
	t.Parallel()

	svc, rows, objects := newTestService(t)
	a, err := svc.Create(context.Background(), validInput("Ada"), &ImageUpload{Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), validInput("Bob"), nil)
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), a.ID, false)
	requireCode(t, err, roster.CodeConfirmationRequired)
	assert.Equal(t, 1, objects.Len())

	removed, err := svc.Delete(context.Background(), a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)
	assert.Equal(t, 0, objects.Len())

	stored, err := rows.Select(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, b.ID, stored[0].ID)
	assert.Equal(t, 0, stored[0].DisplayOrder)
}

func TestService_SearchMatchesNamePositionEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	for _, n := range []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"} {
		_, err := svc.Create(context.Background(), validInput(n), nil)
		require.NoError(t, err)
	}

	got := svc.Search("GRACE@")
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "Grace Hopper", got.Entries[0].Payload.Name)

	got = svc.Search("treasurer")
	assert.Len(t, got.Entries, 3)
}
