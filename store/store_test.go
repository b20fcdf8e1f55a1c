package store

import (
	"context"
	"testing"

	"github.com/go-test/deep"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateLayerUniqueName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := &Layer{Name: "roads", GeometryType: "LineString", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(ctx, l); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}
	if l.ID == 0 {
		t.Fatal("expected CreateLayer to set ID")
	}

	dup := &Layer{Name: "roads", GeometryType: "LineString", SRID: 4326}
	err := db.CreateLayer(ctx, dup)
	if _, ok := err.(ErrConflict); !ok {
		t.Fatalf("expected ErrConflict on duplicate name, got %v", err)
	}
}

func TestGetLayerNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetLayer(context.Background(), 999)
	if _, ok := err.(ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeatureCRUDAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	layer := &Layer{Name: "pois", GeometryType: "Point", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(ctx, layer); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}

	minx, miny, maxx, maxy := 1.0, 2.0, 1.0, 2.0
	f := &Feature{
		LayerID:    layer.ID,
		FID:        "1",
		Properties: map[string]interface{}{"name": "cafe"},
		BBoxMinX:   &minx, BBoxMinY: &miny, BBoxMaxX: &maxx, BBoxMaxY: &maxy,
	}
	if err := db.InsertFeature(ctx, f); err != nil {
		t.Fatalf("InsertFeature: %v", err)
	}

	got, err := db.GetFeature(ctx, layer.ID, "1")
	if err != nil {
		t.Fatalf("GetFeature: %v", err)
	}
	if diff := deep.Equal(got.Properties, f.Properties); diff != nil {
		t.Errorf("properties mismatch: %v", diff)
	}

	if err := db.UpdateLayerStats(ctx, layer.ID); err != nil {
		t.Fatalf("UpdateLayerStats: %v", err)
	}
	layer2, err := db.GetLayer(ctx, layer.ID)
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	if layer2.FeatureCount != 1 {
		t.Errorf("FeatureCount = %d, want 1", layer2.FeatureCount)
	}
	if !layer2.HasBBox() || *layer2.BBoxMinX != 1.0 {
		t.Errorf("expected aggregate bbox to be computed, got %+v", layer2)
	}
}

func TestQueryFeaturesBbox(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	layer := &Layer{Name: "pts", GeometryType: "Point", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(ctx, layer); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}

	inside := 5.0
	outside := 500.0
	mustInsert := func(fid string, coord float64) {
		f := &Feature{LayerID: layer.ID, FID: fid, Properties: map[string]interface{}{},
			BBoxMinX: &coord, BBoxMinY: &coord, BBoxMaxX: &coord, BBoxMaxY: &coord}
		if err := db.InsertFeature(ctx, f); err != nil {
			t.Fatalf("InsertFeature(%s): %v", fid, err)
		}
	}
	mustInsert("in", inside)
	mustInsert("out", outside)

	page, err := db.QueryFeatures(ctx, FeatureQuery{
		LayerID: layer.ID,
		Bbox:    &BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("QueryFeatures: %v", err)
	}
	if page.Total != 1 || len(page.Features) != 1 || page.Features[0].FID != "in" {
		t.Fatalf("expected only the in-bbox feature, got %+v", page)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	layer := &Layer{Name: "atomic", GeometryType: "Point", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(ctx, layer); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}

	errBoom := errBoomT{}
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertFeature(ctx, &Feature{LayerID: layer.ID, FID: "a", Properties: map[string]interface{}{}}); err != nil {
			return err
		}
		return errBoom
	})
	if err != errBoom {
		t.Fatalf("expected WithTx to propagate the callback error, got %v", err)
	}

	page, err := db.QueryFeatures(ctx, FeatureQuery{LayerID: layer.ID, Limit: 10})
	if err != nil {
		t.Fatalf("QueryFeatures: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected rollback to discard the insert, got %d rows", page.Total)
	}
}

type errBoomT struct{}

func (errBoomT) Error() string { return "boom" }

func TestDeleteLayerCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	layer := &Layer{Name: "cascade", GeometryType: "Point", SRID: 4326, AttributeSchema: map[string]string{}}
	if err := db.CreateLayer(ctx, layer); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}
	if err := db.InsertFeature(ctx, &Feature{LayerID: layer.ID, FID: "1", Properties: map[string]interface{}{}}); err != nil {
		t.Fatalf("InsertFeature: %v", err)
	}

	if err := db.DeleteLayer(ctx, layer.ID); err != nil {
		t.Fatalf("DeleteLayer: %v", err)
	}

	if _, err := db.GetFeature(ctx, layer.ID, "1"); err == nil {
		t.Fatal("expected feature to be cascade-deleted along with its layer")
	}
}
