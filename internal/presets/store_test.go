package presets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voicetransor/internal/domain"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "presets.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

// TestStoreCreateRejectsDuplicateName keeps the first preset on conflict.
func TestStoreCreateRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if _, err := store.Create(ctx, "x", "first prompt"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := store.Create(ctx, "x", "second prompt")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate Create() error = %v, want ErrAlreadyExists", err)
	}

	presets, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(presets) != 1 || presets[0].PromptText != "first prompt" {
		t.Fatalf("presets = %+v", presets)
	}
}

// TestStoreListKeepsInsertionOrderAcrossReopen verifies durable ordering.
func TestStoreListKeepsInsertionOrderAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := store.Create(ctx, name, "prompt "+name); err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	presets, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(presets) != len(want) {
		t.Fatalf("len = %d, want %d", len(presets), len(want))
	}
	for i, name := range want {
		if presets[i].Name != name {
			t.Fatalf("presets[%d] = %q, want %q", i, presets[i].Name, name)
		}
		if presets[i].CreatedAt.IsZero() {
			t.Fatalf("presets[%d] has zero CreatedAt", i)
		}
	}
}

// TestStoreDeleteAndGet covers removal and not-found handling.
func TestStoreDeleteAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if _, err := store.Create(ctx, "notes", "Extract notes"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := store.Get(ctx, "notes")
	if err != nil || got.PromptText != "Extract notes" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	if err := store.Delete(ctx, "notes"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "notes"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, "notes"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// The name is free again after deletion.
	if _, err := store.Create(ctx, "notes", "New notes"); err != nil {
		t.Fatalf("re-Create() error = %v", err)
	}
}

// TestStoreUpdate replaces prompt text in place.
func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if err := store.Update(ctx, "missing", "text"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Create(ctx, "tone", "Be formal"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Update(ctx, "tone", "Be casual"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := store.Get(ctx, "tone")
	if err != nil || got.PromptText != "Be casual" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
}

// TestStoreCreateValidatesInput trims and rejects blank fields.
func TestStoreCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if _, err := store.Create(ctx, "  ", "text"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank name error = %v", err)
	}
	if _, err := store.Create(ctx, "name", "\n"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank prompt error = %v", err)
	}

	created, err := store.Create(ctx, "  padded ", " text ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Name != "padded" || created.PromptText != "text" {
		t.Fatalf("created = %+v", created)
	}
}

// TestBuiltinsAreReadOnlyCopies protects the shipped presets.
func TestBuiltinsAreReadOnlyCopies(t *testing.T) {
	list := Builtins()
	if len(list) != 4 {
		t.Fatalf("len(Builtins()) = %d, want 4", len(list))
	}
	list[0].PromptText = "mutated"

	preset, ok := LookupBuiltin("Summarize")
	if !ok || preset.PromptText == "mutated" || !preset.Builtin {
		t.Fatalf("LookupBuiltin() = %+v, %v", preset, ok)
	}
}
