package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// CreateLayer inserts a new layer. Name must be unique; a collision yields
// ErrConflict (§4.C).
func (db *DB) CreateLayer(ctx context.Context, l *Layer) error {
	return createLayer(ctx, db.conn, l)
}

// CreateLayer is the unit-of-work variant of DB.CreateLayer.
func (tx *Tx) CreateLayer(ctx context.Context, l *Layer) error {
	return createLayer(ctx, tx.q, l)
}

func createLayer(ctx context.Context, q querier, l *Layer) error {
	schema, err := json.Marshal(l.AttributeSchema)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		INSERT INTO layers (name, title, description, geometry_type, srid, attribute_schema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Name, l.Title, l.Description, l.GeometryType, l.SRID, string(schema), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict{Entity: "layer", Key: l.Name}
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	l.CreatedAt, l.UpdatedAt = now, now
	return nil
}

// GetLayer reads a layer by id.
func (db *DB) GetLayer(ctx context.Context, id int64) (Layer, error) {
	return scanLayer(db.conn.QueryRowContext(ctx, layerSelect+` WHERE id = ?`, id))
}

// GetLayerByName reads a layer by its unique name.
func (db *DB) GetLayerByName(ctx context.Context, name string) (Layer, error) {
	return scanLayer(db.conn.QueryRowContext(ctx, layerSelect+` WHERE name = ?`, name))
}

// GetLayerByName is the unit-of-work variant of DB.GetLayerByName.
func (tx *Tx) GetLayerByName(ctx context.Context, name string) (Layer, error) {
	return scanLayer(tx.q.QueryRowContext(ctx, layerSelect+` WHERE name = ?`, name))
}

// ListLayers returns every layer, ordered by name.
func (db *DB) ListLayers(ctx context.Context) ([]Layer, error) {
	rows, err := db.conn.QueryContext(ctx, layerSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Layer
	for rows.Next() {
		l, err := scanLayerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateLayerMeta patches title/description; a nil pointer leaves that
// field unchanged.
func (db *DB) UpdateLayerMeta(ctx context.Context, id int64, title, description *string) error {
	if title != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE layers SET title = ?, updated_at = ? WHERE id = ?`, *title, time.Now().UTC(), id); err != nil {
			return err
		}
	}
	if description != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE layers SET description = ?, updated_at = ? WHERE id = ?`, *description, time.Now().UTC(), id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLayerStats recomputes feature_count and the aggregate bbox after an
// ingest or transaction touches a layer's features (§4.D, §4.F).
func (db *DB) UpdateLayerStats(ctx context.Context, id int64) error {
	return updateLayerStats(ctx, db.conn, id)
}

// UpdateLayerStats is the unit-of-work variant of DB.UpdateLayerStats.
func (tx *Tx) UpdateLayerStats(ctx context.Context, id int64) error {
	return updateLayerStats(ctx, tx.q, id)
}

func updateLayerStats(ctx context.Context, q querier, id int64) error {
	row := q.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(bbox_minx), MIN(bbox_miny), MAX(bbox_maxx), MAX(bbox_maxy)
		FROM features WHERE layer_id = ?`, id)

	var count int64
	var minx, miny, maxx, maxy sql.NullFloat64
	if err := row.Scan(&count, &minx, &miny, &maxx, &maxy); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, `
		UPDATE layers SET feature_count = ?, bbox_minx = ?, bbox_miny = ?, bbox_maxx = ?, bbox_maxy = ?, updated_at = ?
		WHERE id = ?`,
		count, nullableFloat(minx), nullableFloat(miny), nullableFloat(maxx), nullableFloat(maxy), time.Now().UTC(), id)
	return err
}

// UpdateLayerAttributeSchema merges newly-inferred fields into the stored
// schema, preferring existing entries on conflict (§4.B, §4.D).
func (db *DB) UpdateLayerAttributeSchema(ctx context.Context, id int64, inferred map[string]string) error {
	return updateLayerAttributeSchema(ctx, db.conn, id, inferred)
}

// UpdateLayerAttributeSchema is the unit-of-work variant.
func (tx *Tx) UpdateLayerAttributeSchema(ctx context.Context, id int64, inferred map[string]string) error {
	return updateLayerAttributeSchema(ctx, tx.q, id, inferred)
}

func updateLayerAttributeSchema(ctx context.Context, q querier, id int64, inferred map[string]string) error {
	var raw string
	if err := q.QueryRowContext(ctx, `SELECT attribute_schema FROM layers WHERE id = ?`, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound{Entity: "layer", Key: id}
		}
		return err
	}

	existing := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return err
		}
	}
	for field, kind := range inferred {
		if _, ok := existing[field]; !ok {
			existing[field] = kind
		}
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE layers SET attribute_schema = ?, updated_at = ? WHERE id = ?`, string(merged), time.Now().UTC(), id)
	return err
}

// SetGeometryTypeIfEmpty sets a layer's geometry_type the first time it's
// discovered; subsequent ingests leave it untouched (§4.D step 7).
func (db *DB) SetGeometryTypeIfEmpty(ctx context.Context, id int64, geometryType string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE layers SET geometry_type = ?, updated_at = ?
		WHERE id = ? AND geometry_type = ''`,
		geometryType, time.Now().UTC(), id)
	return err
}

// DeleteLayer removes a layer; ON DELETE CASCADE takes its features and
// symbology rules with it (§3).
func (db *DB) DeleteLayer(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound{Entity: "layer", Key: id}
	}
	return nil
}

const layerSelect = `
	SELECT id, name, title, description, geometry_type, srid,
	       bbox_minx, bbox_miny, bbox_maxx, bbox_maxy,
	       feature_count, attribute_schema, created_at, updated_at
	FROM layers`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLayer(row *sql.Row) (Layer, error) {
	l, err := scanLayerRow(row)
	if err == sql.ErrNoRows {
		return Layer{}, ErrNotFound{Entity: "layer"}
	}
	return l, err
}

func scanLayerRow(row rowScanner) (Layer, error) {
	var l Layer
	var schema string
	var minx, miny, maxx, maxy sql.NullFloat64
	var createdAt, updatedAt time.Time

	err := row.Scan(&l.ID, &l.Name, &l.Title, &l.Description, &l.GeometryType, &l.SRID,
		&minx, &miny, &maxx, &maxy, &l.FeatureCount, &schema, &createdAt, &updatedAt)
	if err != nil {
		return Layer{}, err
	}

	l.BBoxMinX = nullableFloat(minx)
	l.BBoxMinY = nullableFloat(miny)
	l.BBoxMaxX = nullableFloat(maxx)
	l.BBoxMaxY = nullableFloat(maxy)
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt

	l.AttributeSchema = map[string]string{}
	if schema != "" {
		if err := json.Unmarshal([]byte(schema), &l.AttributeSchema); err != nil {
			return Layer{}, err
		}
	}
	return l, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
