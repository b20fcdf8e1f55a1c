package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// InsertFeature adds one feature to a layer. fid must be unique within the
// layer (§4.C); a collision yields ErrConflict so ingest can apply its
// INSERT-OR-IGNORE-style dedupe and WFS-T Insert can report a failure.
func (db *DB) InsertFeature(ctx context.Context, f *Feature) error {
	return insertFeature(ctx, db.conn, f)
}

// InsertFeature is the unit-of-work variant of DB.InsertFeature.
func (tx *Tx) InsertFeature(ctx context.Context, f *Feature) error {
	return insertFeature(ctx, tx.q, f)
}

func insertFeature(ctx context.Context, q querier, f *Feature) error {
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO features (layer_id, fid, geometry, properties, bbox_minx, bbox_miny, bbox_maxx, bbox_maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.LayerID, f.FID, f.Geometry, string(props), f.BBoxMinX, f.BBoxMinY, f.BBoxMaxX, f.BBoxMaxY)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict{Entity: "feature", Key: f.FID}
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

// GetFeature reads one feature by layer id and fid.
func (db *DB) GetFeature(ctx context.Context, layerID int64, fid string) (Feature, error) {
	return getFeature(ctx, db.conn, layerID, fid)
}

// GetFeature is the unit-of-work variant of DB.GetFeature.
func (tx *Tx) GetFeature(ctx context.Context, layerID int64, fid string) (Feature, error) {
	return getFeature(ctx, tx.q, layerID, fid)
}

func getFeature(ctx context.Context, q querier, layerID int64, fid string) (Feature, error) {
	row := q.QueryRowContext(ctx, featureSelect+` WHERE layer_id = ? AND fid = ?`, layerID, fid)
	f, err := scanFeatureRow(row)
	if err == sql.ErrNoRows {
		return Feature{}, ErrNotFound{Entity: "feature", Key: fid}
	}
	return f, err
}

// FeatureQuery selects a page of features from one layer (§4.C, §4.E).
// Bbox is optional; when non-nil only features intersecting it are
// returned, using the same minx/maxx/miny/maxy parameter order the
// predicate below binds against — see §9 on why it is not "minx<maxx"
// symmetric.
type FeatureQuery struct {
	LayerID int64
	Bbox    *BBox
	Offset  int
	Limit   int
}

// QueryFeatures runs q and returns the matching page plus the total match
// count (ignoring Offset/Limit), for WFS numberMatched/numberReturned
// (§4.E).
func (db *DB) QueryFeatures(ctx context.Context, q FeatureQuery) (FeaturePage, error) {
	where := `WHERE layer_id = ?`
	args := []interface{}{q.LayerID}
	if q.Bbox != nil {
		where += ` AND NOT (bbox_maxx < ? OR bbox_minx > ? OR bbox_maxy < ? OR bbox_miny > ?)`
		args = append(args, q.Bbox.MinX, q.Bbox.MaxX, q.Bbox.MinY, q.Bbox.MaxY)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM features `+where, args...).Scan(&total); err != nil {
		return FeaturePage{}, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means "no limit"
	}
	rows, err := db.conn.QueryContext(ctx, featureSelect+` `+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, limit, q.Offset)...)
	if err != nil {
		return FeaturePage{}, err
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		f, err := scanFeatureRow(rows)
		if err != nil {
			return FeaturePage{}, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return FeaturePage{}, err
	}
	return FeaturePage{Features: out, Total: total}, nil
}

// UpdateFeature replaces a feature's geometry and/or properties in place
// (§4.F Update). Either may be left nil to leave that column untouched.
func (tx *Tx) UpdateFeature(ctx context.Context, layerID int64, fid string, geometry []byte, properties map[string]interface{}, bbox *BBox) error {
	if geometry == nil && properties == nil {
		return nil
	}

	set := []string{}
	args := []interface{}{}
	if geometry != nil {
		set = append(set, "geometry = ?")
		args = append(args, geometry)
	}
	if properties != nil {
		props, err := json.Marshal(properties)
		if err != nil {
			return err
		}
		set = append(set, "properties = ?")
		args = append(args, string(props))
	}
	if bbox != nil {
		set = append(set, "bbox_minx = ?", "bbox_miny = ?", "bbox_maxx = ?", "bbox_maxy = ?")
		args = append(args, bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY)
	}

	query := `UPDATE features SET ` + joinSet(set) + ` WHERE layer_id = ? AND fid = ?`
	args = append(args, layerID, fid)

	res, err := tx.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound{Entity: "feature", Key: fid}
	}
	return nil
}

// DeleteFeature removes one feature by layer id and fid (§4.F Delete).
func (tx *Tx) DeleteFeature(ctx context.Context, layerID int64, fid string) error {
	res, err := tx.q.ExecContext(ctx, `DELETE FROM features WHERE layer_id = ? AND fid = ?`, layerID, fid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound{Entity: "feature", Key: fid}
	}
	return nil
}

// DeleteFeaturesByLayer removes every feature in a layer, e.g. ingest's
// replace_existing path (§4.D).
func (tx *Tx) DeleteFeaturesByLayer(ctx context.Context, layerID int64) error {
	_, err := tx.q.ExecContext(ctx, `DELETE FROM features WHERE layer_id = ?`, layerID)
	return err
}

// AnyFeatureGeometry returns one non-null geometry from the layer, or nil
// if the layer has none. Used to set geometry_type on first ingest
// (§4.D step 7).
func (db *DB) AnyFeatureGeometry(ctx context.Context, layerID int64) ([]byte, error) {
	var geom []byte
	err := db.conn.QueryRowContext(ctx, `
		SELECT geometry FROM features
		WHERE layer_id = ? AND geometry IS NOT NULL
		LIMIT 1`, layerID).Scan(&geom)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return geom, err
}

const featureSelect = `
	SELECT id, layer_id, fid, geometry, properties, bbox_minx, bbox_miny, bbox_maxx, bbox_maxy
	FROM features`

func scanFeatureRow(row rowScanner) (Feature, error) {
	var f Feature
	var props string
	var minx, miny, maxx, maxy sql.NullFloat64

	err := row.Scan(&f.ID, &f.LayerID, &f.FID, &f.Geometry, &props, &minx, &miny, &maxx, &maxy)
	if err != nil {
		return Feature{}, err
	}

	f.BBoxMinX = nullableFloat(minx)
	f.BBoxMinY = nullableFloat(miny)
	f.BBoxMaxX = nullableFloat(maxx)
	f.BBoxMaxY = nullableFloat(maxy)

	f.Properties = map[string]interface{}{}
	if props != "" {
		if err := json.Unmarshal([]byte(props), &f.Properties); err != nil {
			return Feature{}, err
		}
	}
	return f, nil
}

func joinSet(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}
