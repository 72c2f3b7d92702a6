package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/motordesk/docindex/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Price List 2026.PDF": "price_list_2026.pdf",
		"já/mes..csv":         "j__mes..csv",
		"ok-name_1.json":      "ok-name_1.json",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStoreAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	doc := domain.Document{
		Data: json.RawMessage(`{"text":"Actros axle specs"}`),
		Metadata: domain.Metadata{
			FileType:     "pdf",
			DocumentType: "specification",
		},
	}

	path, err := r.Store(ctx, "Actros Specs.pdf", doc)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if filepath.Base(path) != "actros_specs.pdf.json" {
		t.Errorf("unexpected storage name %s", filepath.Base(path))
	}

	got, err := r.Get(ctx, "Actros Specs.pdf")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Metadata.Filename != "Actros Specs.pdf" {
		t.Errorf("Filename = %q", got.Metadata.Filename)
	}
	if got.Metadata.StoredAt.IsZero() {
		t.Error("StoredAt not stamped")
	}
}

func TestGetMissing(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), "nope.json")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Store(ctx, "gone.txt", domain.Document{Data: json.RawMessage(`"x"`)})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, "gone.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.Delete(ctx, "gone.txt"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestListIncludesUnparseable(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Store(ctx, "good.txt", domain.Document{Data: json.RawMessage(`"ok"`)}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}

	var sawBroken bool
	for _, info := range infos {
		if info.Filename == "broken.json" {
			sawBroken = true
			if info.Metadata.Error == "" {
				t.Error("broken entry should carry a parse error")
			}
		}
	}
	if !sawBroken {
		t.Error("broken.json missing from listing")
	}
}

func TestListSurfacesLogicalFilename(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Store(ctx, "Warranty Terms.txt", domain.Document{Data: json.RawMessage(`"x"`)}); err != nil {
		t.Fatal(err)
	}

	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(infos))
	}
	// The listing must carry the upload-time name, not the disk name, so
	// reindex and cascade delete keep addressing the same vectors.
	if infos[0].Filename != "Warranty Terms.txt" {
		t.Errorf("Filename = %q, expected the original upload name", infos[0].Filename)
	}
	if filepath.Base(infos[0].Path) != "warranty_terms.txt.json" {
		t.Errorf("Path = %q", infos[0].Path)
	}
}

func TestFindRelevant(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	docs := map[string]string{
		"engines.txt": `{"text":"OM 471 engine torque curves"}`,
		"cabs.txt":    `{"text":"cab trim options for long haul"}`,
		"prices.txt":  `{"text":"list prices per market"}`,
	}
	for name, data := range docs {
		if _, err := r.Store(ctx, name, domain.Document{Data: json.RawMessage(data)}); err != nil {
			t.Fatal(err)
		}
	}

	found, err := r.FindRelevant(ctx, "engine torque", 3)
	if err != nil {
		t.Fatalf("FindRelevant failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found))
	}

	found, err = r.FindRelevant(ctx, "completely unrelated", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("expected no matches, got %d", len(found))
	}
}

func TestFindRelevantHonorsLimit(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		_, err := r.Store(ctx, name, domain.Document{Data: json.RawMessage(`{"text":"shared keyword gearbox"}`)})
		if err != nil {
			t.Fatal(err)
		}
	}

	found, err := r.FindRelevant(ctx, "gearbox", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 3 {
		t.Errorf("expected limit of 3, got %d", len(found))
	}
}
