package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atlasdatatech/wfsd/geometry"
	"github.com/atlasdatatech/wfsd/schema"
	"github.com/atlasdatatech/wfsd/store"
)

// Options configures one Import call (§4.D signature).
type Options struct {
	LayerID         int64
	SourceSRID      int
	LatField        string
	LonField        string
	ReplaceExisting bool
}

// Result is the outcome of one Import call (§4.D step 8).
type Result struct {
	Imported int
	Failed   int
	Errors   []string
	Bbox     *store.BBox
}

type reader func(path string, opts Options) ([]record, []string, []map[string]interface{}, error)

var readers = map[string]reader{
	".geojson": readGeoJSON,
	".json":    readGeoJSON,
	".zip":     readShapefileZip,
	".gpkg":    readGeoPackage,
	".csv":     readCSV,
}

// Import reads blobPath, dispatching on its file extension, reprojects
// every feature to the storage CRS, writes the results in chunks, and
// refreshes the owning layer's stats and attribute schema (§4.D).
func Import(ctx context.Context, db *store.DB, blobPath string, opts Options) (Result, error) {
	if _, err := db.GetLayer(ctx, opts.LayerID); err != nil {
		return Result{}, err
	}

	if opts.ReplaceExisting {
		if err := db.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteFeaturesByLayer(ctx, opts.LayerID)
		}); err != nil {
			return Result{}, err
		}
	}

	ext := strings.ToLower(filepath.Ext(blobPath))
	read, ok := readers[ext]
	if !ok {
		return Result{}, fmt.Errorf("unsupported file format: %s", ext)
	}

	records, parseErrs, sample, err := read(blobPath, opts)
	if err != nil {
		return Result{}, err
	}

	imported, failed, batchErrs := batchInsert(ctx, db, opts.LayerID, records)

	errs := make([]string, 0, len(parseErrs)+len(batchErrs))
	errs = append(errs, parseErrs...)
	errs = append(errs, batchErrs...)

	if err := db.UpdateLayerAttributeSchema(ctx, opts.LayerID, schema.Infer(sample)); err != nil {
		return Result{}, err
	}
	if err := db.UpdateLayerStats(ctx, opts.LayerID); err != nil {
		return Result{}, err
	}
	if err := refreshGeometryType(ctx, db, opts.LayerID); err != nil {
		return Result{}, err
	}

	return Result{
		Imported: imported,
		Failed:   failed,
		Errors:   errs,
		Bbox:     unionBbox(records),
	}, nil
}

// refreshGeometryType sets a layer's geometry_type from any one of its
// stored geometries, the first time it's non-empty (§4.D step 7).
func refreshGeometryType(ctx context.Context, db *store.DB, layerID int64) error {
	wkb, err := db.AnyFeatureGeometry(ctx, layerID)
	if err != nil || wkb == nil {
		return err
	}
	g, err := geometry.DecodeWKB(wkb)
	if err != nil {
		return nil // a corrupt sample geometry shouldn't fail the whole ingest
	}
	return db.SetGeometryTypeIfEmpty(ctx, layerID, geometry.GeometryTypeName(g))
}
