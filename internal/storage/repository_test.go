package storage

import (
	"context"
	"path/filepath"
	"testing"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/session"
)

var _ session.Persister = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	repo, err := NewSQLiteRepository(path, log.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestLoadEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	s, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Anonymous() {
		t.Fatalf("expected anonymous session, got %+v", s)
	}
}

func TestSaveLoadClear(t *testing.T) {
	repo, path := newTestRepo(t)
	ctx := context.Background()

	want := core.Session{
		Token: "tok",
		User: &core.User{
			ID:       7,
			Username: "alice",
			Email:    "alice@example.com",
			Roles:    []core.Role{core.RoleUser},
			Currency: core.EUR,
		},
	}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second repository over the same file sees the snapshot.
	reopened, err := NewSQLiteRepository(path, log.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Token != want.Token || got.User == nil || got.User.Username != "alice" || got.User.Currency != core.EUR || !got.User.HasRole(core.RoleUser) {
		t.Fatalf("unexpected session %+v", got)
	}

	want.Token = "tok2"
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if got, _ := repo.Load(ctx); got.Token != "tok2" {
		t.Fatalf("overwrite not applied, token = %q", got.Token)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := repo.Load(ctx); !got.Anonymous() {
		t.Fatalf("expected anonymous after clear, got %+v", got)
	}
}

func TestSaveRejectsIncompleteSession(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Save(context.Background(), core.Session{Token: "tok"}); err == nil {
		t.Fatal("expected error for token without identity")
	}
}

func TestCorruptSnapshotIsDiscardedOnInit(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.queries.UpsertSession(ctx, UpsertSessionParams{Token: "tok", Identity: "{not json", SavedAt: repo.now()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.Load(ctx); err == nil {
		t.Fatal("expected decode error")
	}

	store := session.New(nil, repo, log.Discard())
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !store.Current().Anonymous() {
		t.Fatal("store should stay anonymous")
	}
	if got, err := repo.Load(ctx); err != nil || !got.Anonymous() {
		t.Fatalf("corrupt snapshot not cleared: %+v %v", got, err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	_, path := newTestRepo(t)
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
}
