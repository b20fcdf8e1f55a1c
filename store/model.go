// Package store is the repository (§4.C): typed CRUD over layers,
// features and symbology rules on the embedded SQLite store, plus the
// unit-of-work primitive the ingest and transaction engines build on.
package store

import "time"

// Layer is a WFS feature type (§3).
type Layer struct {
	ID              int64
	Name            string
	Title           string
	Description     string
	GeometryType    string
	SRID            int
	BBoxMinX        *float64
	BBoxMinY        *float64
	BBoxMaxX        *float64
	BBoxMaxY        *float64
	FeatureCount    int64
	AttributeSchema map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasBBox reports whether the layer has a computed bounding box.
func (l Layer) HasBBox() bool {
	return l.BBoxMinX != nil && l.BBoxMinY != nil && l.BBoxMaxX != nil && l.BBoxMaxY != nil
}

// Feature is a stored geographic feature (§3). Geometry is WKB, or nil.
type Feature struct {
	ID         int64
	LayerID    int64
	FID        string
	Geometry   []byte
	Properties map[string]interface{}
	BBoxMinX   *float64
	BBoxMinY   *float64
	BBoxMaxX   *float64
	BBoxMaxY   *float64
}

// BBox is a (minx, miny, maxx, maxy) box, used for query filters and
// layer/feature aggregate bounds.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// SymbologyRule is referenced only by collaborators; the core only honours
// cascade-on-delete (§3).
type SymbologyRule struct {
	ID             int64
	LayerID        int64
	RuleOrder      int
	Label          string
	FilterField    *string
	FilterOperator string
	FilterValue    *string
	FillColor      string
	FillOpacity    float64
	StrokeColor    string
	StrokeWidth    float64
	PointRadius    float64
	IsDefault      bool
}

// FeaturePage is one page of a GetFeature-style query (§4.C, §4.E).
type FeaturePage struct {
	Features []Feature
	Total    int64
}
