package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlasdatatech/wfsd/store"
)

func newTestLayer(t *testing.T, db *store.DB) *store.Layer {
	t.Helper()
	l := &store.Layer{Name: "poi", GeometryType: "", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(context.Background(), l); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}
	return l
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestImportGeoJSON(t *testing.T) {
	db := newTestDB(t)
	layer := newTestLayer(t, db)

	path := filepath.Join(t.TempDir(), "in.geojson")
	data := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "id": "a", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "one"}},
			{"type": "Feature", "geometry": null, "properties": {"name": "broken"}}
		]
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 entry for the null-geometry feature", result.Errors)
	}

	got, err := db.GetLayer(context.Background(), layer.ID)
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	if got.GeometryType != "Point" {
		t.Errorf("GeometryType = %q, want Point", got.GeometryType)
	}
	if got.FeatureCount != 1 {
		t.Errorf("FeatureCount = %d, want 1", got.FeatureCount)
	}
}

func TestImportCSVAutoDetectsLatLon(t *testing.T) {
	db := newTestDB(t)
	layer := newTestLayer(t, db)

	path := filepath.Join(t.TempDir(), "in.csv")
	data := "name,latitude,longitude\ncafe,2.0,1.0\nbar,4.0,3.0\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("Imported = %d, want 2", result.Imported)
	}
	if result.Bbox == nil || result.Bbox.MinX != 1.0 || result.Bbox.MaxX != 3.0 {
		t.Errorf("unexpected bbox: %+v", result.Bbox)
	}
}

func TestImportCSVMissingLatLonIsFatal(t *testing.T) {
	db := newTestDB(t)
	layer := newTestLayer(t, db)

	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("name,value\na,1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326})
	if err == nil {
		t.Fatal("expected Import to fail when lat/lon columns can't be detected")
	}
}

func TestImportReplaceExisting(t *testing.T) {
	db := newTestDB(t)
	layer := newTestLayer(t, db)

	path := filepath.Join(t.TempDir(), "in.geojson")
	first := `{"type":"FeatureCollection","features":[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,1]},"properties":{}}]}`
	if err := os.WriteFile(path, []byte(first), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326}); err != nil {
		t.Fatalf("first Import: %v", err)
	}

	second := `{"type":"FeatureCollection","features":[{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[2,2]},"properties":{}}]}`
	if err := os.WriteFile(path, []byte(second), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	result, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326, ReplaceExisting: true})
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", result.Imported)
	}

	if _, err := db.GetFeature(context.Background(), layer.ID, "a"); err == nil {
		t.Fatal("expected replace_existing to remove the first feature")
	}
	if _, err := db.GetFeature(context.Background(), layer.ID, "b"); err != nil {
		t.Fatalf("expected the second feature to be present: %v", err)
	}
}

func TestImportDuplicateFidIsSkippedNotFatal(t *testing.T) {
	db := newTestDB(t)
	layer := newTestLayer(t, db)

	path := filepath.Join(t.TempDir(), "in.geojson")
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"dup","geometry":{"type":"Point","coordinates":[1,1]},"properties":{}},
		{"type":"Feature","id":"dup","geometry":{"type":"Point","coordinates":[2,2]},"properties":{}}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := Import(context.Background(), db, path, Options{LayerID: layer.ID, SourceSRID: 4326})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 2 || result.Failed != 0 {
		t.Fatalf("expected the duplicate chunk to still report 2 imported, got %+v", result)
	}

	page, err := db.QueryFeatures(context.Background(), store.FeatureQuery{LayerID: layer.ID, Limit: 10})
	if err != nil {
		t.Fatalf("QueryFeatures: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected the second insert to be silently ignored, got %d rows", page.Total)
	}
}
