package objectstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/campus-tech-club/roster-api/internal/adapters/contracttest"
	objectstoreport "github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
)

func TestContract_FilesystemObjectStore(t *testing.T) {
	const base = "http://localhost:8080/media"
	s, err := NewStore(t.TempDir(), base)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	contracttest.RunObjectStore(t, func(t *testing.T) (objectstoreport.Store, func()) {
		t.Helper()
		return s, nil
	}, func(t *testing.T, url string) ([]byte, bool) {
		t.Helper()
		key := strings.TrimPrefix(url, base+"/")
		b, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(key)))
		if err != nil {
			return nil, false
		}
		return b, true
	})
}
