package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/PabloGalante/worksession/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/worksession/internal/adapters/storage/storetest"
	"github.com/PabloGalante/worksession/internal/domain"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "worksession.db"))
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worksession.db")

	store, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess := &domain.WorkSession{
		ID:              "s-reopen",
		GitHubURL:       "https://github.com/x",
		RoleTrack:       domain.RoleTrackFrontend,
		Level:           domain.LevelSenior,
		DurationMinutes: 45,
		Status:          domain.StatusActive,
	}
	if err := store.CreateSession(t.Context(), sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetSession(t.Context(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.RoleTrack != domain.RoleTrackFrontend || got.DurationMinutes != 45 {
		t.Fatalf("unexpected session after reopen: %+v", got)
	}
}
