package projects_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MaFalana/HWC-POTREE-API/internal/projects"
)

func openStore(t *testing.T) *projects.Store {
	t.Helper()
	store, err := projects.OpenPath(filepath.Join(t.TempDir(), "potreed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertCreatesAndUpdates(t *testing.T) {
	store := openStore(t)

	created, err := store.Upsert(context.Background(), &projects.Project{
		ID:   "proj-1",
		Name: "Riverside Survey",
		CRS:  projects.CRS{Code: 2965, Name: "NAD83 / Indiana East (ftUS)"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.Name != "Riverside Survey" || created.CRS.Code != 2965 {
		t.Fatalf("unexpected project: %+v", created)
	}

	renamed, err := store.Upsert(context.Background(), &projects.Project{
		ID:   "proj-1",
		Name: "Riverside Survey 2026",
		CRS:  projects.CRS{Code: 2965},
	})
	if err != nil {
		t.Fatalf("upsert rename: %v", err)
	}
	if renamed.Name != "Riverside Survey 2026" {
		t.Fatalf("rename not applied: %q", renamed.Name)
	}
}

func TestUpsertPreservesDerivedFields(t *testing.T) {
	store := openStore(t)
	if _, err := store.Upsert(context.Background(), &projects.Project{ID: "proj-1", Name: "Survey"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	count := int64(12345)
	url := "https://viewer.example/proj-1/cloud/metadata.json"
	if _, err := store.UpdateDerived(context.Background(), "proj-1", projects.Derived{
		PointCount: &count,
		CloudURL:   &url,
	}); err != nil {
		t.Fatalf("update derived: %v", err)
	}

	again, err := store.Upsert(context.Background(), &projects.Project{ID: "proj-1", Name: "Survey v2"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.PointCount != count || again.CloudURL != url {
		t.Fatalf("derived fields clobbered by upsert: %+v", again)
	}
}

func TestUpdateDerivedNeverTouchesCRS(t *testing.T) {
	store := openStore(t)
	if _, err := store.Upsert(context.Background(), &projects.Project{
		ID:   "proj-1",
		Name: "Survey",
		CRS:  projects.CRS{Code: 3857, Name: "Web Mercator"},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	lat, lon := 39.77, -86.16
	updated, err := store.UpdateDerived(context.Background(), "proj-1", projects.Derived{
		Location: &projects.Location{Lat: &lat, Lon: &lon},
	})
	if err != nil {
		t.Fatalf("update derived: %v", err)
	}
	if updated.CRS.Code != 3857 || updated.CRS.Name != "Web Mercator" {
		t.Fatalf("CRS modified by derived update: %+v", updated.CRS)
	}
	if updated.Location.Lat == nil || *updated.Location.Lat != lat {
		t.Fatalf("location not applied: %+v", updated.Location)
	}
	if updated.PointCount != 0 {
		t.Fatalf("nil point count clobbered: %d", updated.PointCount)
	}
}

func TestGetMissingProject(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.UpdateDerived(context.Background(), "nope", projects.Derived{}); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEPSGHint(t *testing.T) {
	if got := (projects.CRS{Code: 4326}).EPSG(); got != "EPSG:4326" {
		t.Fatalf("unexpected hint %q", got)
	}
	if got := (projects.CRS{}).EPSG(); got != "" {
		t.Fatalf("expected empty hint for zero CRS, got %q", got)
	}
}

func TestListOrdersByName(t *testing.T) {
	store := openStore(t)
	for _, p := range []struct{ id, name string }{
		{"proj-b", "Bridge"},
		{"proj-a", "Airport"},
	} {
		if _, err := store.Upsert(context.Background(), &projects.Project{ID: p.id, Name: p.name}); err != nil {
			t.Fatalf("upsert %s: %v", p.id, err)
		}
	}
	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Airport" || list[1].Name != "Bridge" {
		t.Fatalf("unexpected order: %+v", list)
	}
}
