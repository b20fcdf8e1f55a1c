package store

// Symbology rules are only ever mutated by the admin/collaborator surface
// (§3); the core keeps just enough CRUD to support that surface and to let
// ON DELETE CASCADE do its job when a layer is removed.

import "context"

// ListSymbologyRules returns a layer's rules ordered for evaluation.
func (db *DB) ListSymbologyRules(ctx context.Context, layerID int64) ([]SymbologyRule, error) {
	rows, err := db.conn.QueryContext(ctx, symbologySelect+` WHERE layer_id = ? ORDER BY rule_order`, layerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SymbologyRule
	for rows.Next() {
		r, err := scanSymbologyRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateSymbologyRule inserts one rule.
func (db *DB) CreateSymbologyRule(ctx context.Context, r *SymbologyRule) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO symbology_rules
			(layer_id, rule_order, label, filter_field, filter_operator, filter_value,
			 fill_color, fill_opacity, stroke_color, stroke_width, point_radius, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.LayerID, r.RuleOrder, r.Label, r.FilterField, r.FilterOperator, r.FilterValue,
		r.FillColor, r.FillOpacity, r.StrokeColor, r.StrokeWidth, r.PointRadius, boolToInt(r.IsDefault))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// DeleteSymbologyRule removes one rule by id.
func (db *DB) DeleteSymbologyRule(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM symbology_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound{Entity: "symbology_rule", Key: id}
	}
	return nil
}

const symbologySelect = `
	SELECT id, layer_id, rule_order, label, filter_field, filter_operator, filter_value,
	       fill_color, fill_opacity, stroke_color, stroke_width, point_radius, is_default
	FROM symbology_rules`

func scanSymbologyRow(row rowScanner) (SymbologyRule, error) {
	var r SymbologyRule
	var isDefault int
	err := row.Scan(&r.ID, &r.LayerID, &r.RuleOrder, &r.Label, &r.FilterField, &r.FilterOperator,
		&r.FilterValue, &r.FillColor, &r.FillOpacity, &r.StrokeColor, &r.StrokeWidth, &r.PointRadius, &isDefault)
	if err != nil {
		return SymbologyRule{}, err
	}
	r.IsDefault = isDefault != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
