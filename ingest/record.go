// Package ingest implements the ingest pipeline (§4.D): format-dispatched
// parsing of GeoJSON, zipped Shapefiles, GeoPackages and CSV, reprojection
// to the canonical storage CRS, bbox computation, attribute-type inference
// and batched idempotent insertion.
package ingest

import (
	"context"
	"fmt"

	"github.com/pborman/uuid"

	"github.com/atlasdatatech/wfsd/geometry"
	"github.com/atlasdatatech/wfsd/store"
)

// storageSRID is the canonical CRS every stored geometry is reprojected
// into (§3).
const storageSRID = 4326

const sampleLimit = 100
const chunkSize = 500

// record is one parsed, reprojected feature awaiting insertion.
type record struct {
	FID        string
	Geometry   []byte
	Properties map[string]interface{}
	Bbox       *store.BBox
}

// reproject reprojects g from sourceSRID to the storage CRS, short-
// circuiting to identity when they already match (§4.A).
func reproject(g geometry.Geometry, sourceSRID int) (geometry.Geometry, error) {
	if sourceSRID == 0 || sourceSRID == storageSRID {
		return g, nil
	}
	return geometry.ReprojectGeometry(g, sourceSRID, storageSRID, geometry.WebMercatorReprojector{})
}

// makeRecord encodes g to WKB, computes its bbox, and assigns fid — using
// the caller-supplied id if present, otherwise a fresh UUID (§4.D step 6).
func makeRecord(g geometry.Geometry, props map[string]interface{}, fid *string) (record, error) {
	wkb, err := geometry.EncodeWKB(g)
	if err != nil {
		return record{}, err
	}
	minx, miny, maxx, maxy, err := geometry.Bounds(g)
	if err != nil {
		return record{}, err
	}

	id := ""
	if fid != nil && *fid != "" {
		id = *fid
	} else {
		id = uuid.New()
	}

	if props == nil {
		props = map[string]interface{}{}
	}

	return record{
		FID:        id,
		Geometry:   wkb,
		Properties: props,
		Bbox:       &store.BBox{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy},
	}, nil
}

// batchInsert writes records in chunks of 500 (§4.D step 5). Each chunk is
// its own unit of work: a pre-existing (layer_id, fid) is skipped within
// the chunk rather than aborting it, but any other error rolls the whole
// chunk back and counts every one of its records as failed.
func batchInsert(ctx context.Context, db *store.DB, layerID int64, records []record) (imported, failed int, errs []string) {
	for i := 0; i < len(records); i += chunkSize {
		end := i + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[i:end]

		err := db.WithTx(ctx, func(tx *store.Tx) error {
			for _, r := range chunk {
				f := &store.Feature{
					LayerID:    layerID,
					FID:        r.FID,
					Geometry:   r.Geometry,
					Properties: r.Properties,
				}
				if r.Bbox != nil {
					f.BBoxMinX, f.BBoxMinY, f.BBoxMaxX, f.BBoxMaxY = &r.Bbox.MinX, &r.Bbox.MinY, &r.Bbox.MaxX, &r.Bbox.MaxY
				}
				if err := tx.InsertFeature(ctx, f); err != nil {
					if _, ok := err.(store.ErrConflict); ok {
						continue
					}
					return err
				}
			}
			return nil
		})
		if err != nil {
			failed += len(chunk)
			errs = append(errs, fmt.Sprintf("Batch insert error (chunk %d): %v", i/chunkSize, err))
			continue
		}
		imported += len(chunk)
	}
	return imported, failed, errs
}

// unionBbox returns the union of every successfully-parsed record's bbox,
// or nil if none succeeded (§4.D step 8).
func unionBbox(records []record) *store.BBox {
	var out *store.BBox
	for _, r := range records {
		if r.Bbox == nil {
			continue
		}
		if out == nil {
			b := *r.Bbox
			out = &b
			continue
		}
		if r.Bbox.MinX < out.MinX {
			out.MinX = r.Bbox.MinX
		}
		if r.Bbox.MinY < out.MinY {
			out.MinY = r.Bbox.MinY
		}
		if r.Bbox.MaxX > out.MaxX {
			out.MaxX = r.Bbox.MaxX
		}
		if r.Bbox.MaxY > out.MaxY {
			out.MaxY = r.Bbox.MaxY
		}
	}
	return out
}
