package contracttest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campus-tech-club/roster-api/internal/domain"
	idempotencyport "github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
	objectstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
	rowstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

type CleanupFunc = func()

type ProfileRowStoreFactory func(t *testing.T) (rowstoreport.ProfileStore, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type ObjectStoreFactory func(t *testing.T) (objectstoreport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/rosters/executives/entries",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// A different body hash is a different record.
	other := fp
	other.BodyHash = "hash-def"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other fingerprint: ok=%v err=%v", ok, err)
	}
}

func RunProfileRowStore(t *testing.T, newStore ProfileRowStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	gh := "https://github.com/ada"
	mk := func(name string, order int) domain.Entry[domain.Profile] {
		return domain.Entry[domain.Profile]{
			ID:           domain.EntryID(uuid.NewString()),
			DisplayOrder: order,
			Payload: domain.Profile{
				Name:     name,
				Position: "Member",
				Bio:      name + " bio",
				Email:    name + "@example.com",
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	a := mk("ada", 1)
	a.Payload.GithubURL = &gh
	b := mk("bob", 0)
	c := mk("cy", 2)
	for _, e := range []domain.Entry[domain.Profile]{a, b, c} {
		if _, err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s: %v", e.Payload.Name, err)
		}
	}

	// ID uniqueness.
	if _, err := store.Insert(ctx, a); !errors.Is(err, rowstoreport.ErrAlreadyExists) {
		t.Fatalf("Insert duplicate err=%v, want ErrAlreadyExists", err)
	}

	// Select orders by display_order ascending.
	got, err := store.Select(ctx)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 3 || got[0].ID != b.ID || got[1].ID != a.ID || got[2].ID != c.ID {
		t.Fatalf("unexpected ordering: %#v", got)
	}
	if got[1].Payload.GithubURL == nil || *got[1].Payload.GithubURL != gh {
		t.Fatalf("optional field not round-tripped: %#v", got[1].Payload)
	}
	if got[1].Payload.ImageURL != nil {
		t.Fatalf("unset optional field came back set: %#v", got[1].Payload)
	}
	if !got[1].CreatedAt.Equal(now) {
		t.Fatalf("created_at=%v want %v", got[1].CreatedAt, now)
	}

	// Order-only patch leaves the payload alone and bumps updated_at.
	later := now.Add(time.Hour)
	order := 5
	upd, err := store.Update(ctx, b.ID, rowstoreport.Patch[domain.Profile]{DisplayOrder: &order, UpdatedAt: later})
	if err != nil {
		t.Fatalf("Update order: %v", err)
	}
	if upd.DisplayOrder != 5 || upd.Payload.Name != "bob" || !upd.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected order update result: %#v", upd)
	}

	// Payload patch leaves the order alone.
	p := a.Payload
	p.Name = "Ada Lovelace"
	p.GithubURL = nil
	upd, err = store.Update(ctx, a.ID, rowstoreport.Patch[domain.Profile]{Payload: &p, UpdatedAt: later})
	if err != nil {
		t.Fatalf("Update payload: %v", err)
	}
	if upd.DisplayOrder != 1 || upd.Payload.Name != "Ada Lovelace" || upd.Payload.GithubURL != nil {
		t.Fatalf("unexpected payload update result: %#v", upd)
	}

	if _, err := store.Update(ctx, domain.EntryID(uuid.NewString()), rowstoreport.Patch[domain.Profile]{UpdatedAt: later}); !errors.Is(err, rowstoreport.ErrNotFound) {
		t.Fatalf("Update missing err=%v, want ErrNotFound", err)
	}

	got, err = store.Select(ctx)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 3 || got[0].ID != a.ID || got[1].ID != c.ID || got[2].ID != b.ID {
		t.Fatalf("unexpected ordering after update: %#v", got)
	}

	if err := store.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, c.ID); !errors.Is(err, rowstoreport.ErrNotFound) {
		t.Fatalf("Delete twice err=%v, want ErrNotFound", err)
	}
	got, err = store.Select(ctx)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len after delete=%d, want 2", len(got))
	}
}

func RunObjectStore(t *testing.T, newStore ObjectStoreFactory, fetch func(t *testing.T, url string) ([]byte, bool)) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	body := []byte("\x89PNG fake image bytes")
	url, err := store.Upload(ctx, "executives/"+uuid.NewString()+".png", http.DetectContentType(body), bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url == "" {
		t.Fatalf("Upload returned empty url")
	}
	got, ok := fetch(t, url)
	if !ok || !bytes.Equal(got, body) {
		t.Fatalf("fetch after upload ok=%v body=%q", ok, got)
	}

	if err := store.Remove(ctx, url); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := fetch(t, url); ok {
		t.Fatalf("object still present after Remove")
	}
	if err := store.Remove(ctx, url); !errors.Is(err, objectstoreport.ErrNotFound) {
		t.Fatalf("Remove twice err=%v, want ErrNotFound", err)
	}

	if _, err := store.Upload(ctx, "../escape.png", "image/png", io.LimitReader(bytes.NewReader(body), 4)); err == nil {
		t.Fatalf("expected error for key escaping the store root")
	}
}
