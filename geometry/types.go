// Package geometry implements the geometry codec (§4.A): bidirectional
// conversion between WKB, an internal geometry value, GML 3.2 and GeoJSON,
// plus bbox computation and CRS reprojection.
//
// The internal geometry value is the go-spatial/geom value type directly —
// there is no wrapper struct. The seven GML geometry classes map onto:
//
//	Point              geom.Point
//	LineString         geom.LineString
//	Polygon            geom.Polygon
//	MultiPoint         geom.MultiPoint
//	MultiLineString    geom.MultiLineString
//	MultiPolygon       geom.MultiPolygon
//	GeometryCollection geom.Collection
package geometry

import (
	"github.com/go-spatial/geom"
)

// Type aliases onto go-spatial/geom's value types. Using aliases (not new
// named types) keeps this package and geom/encoding/wkb interchangeable
// without conversions.
type (
	Point           = geom.Point
	LineString      = geom.LineString
	Polygon         = geom.Polygon
	MultiPoint      = geom.MultiPoint
	MultiLineString = geom.MultiLineString
	MultiPolygon    = geom.MultiPolygon
	Collection      = geom.Collection
	Geometry        = geom.Geometry
	Extent          = geom.Extent
)

// GeometryTypeName returns the GML/WFS geometry class name for g, e.g.
// "Point", "MultiPolygon", "GeometryCollection". It is used both as the
// layer's discovered geometry_type and to pick the GML/GeoJSON encoder.
func GeometryTypeName(g Geometry) string {
	switch g.(type) {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	case MultiPoint:
		return "MultiPoint"
	case MultiLineString:
		return "MultiLineString"
	case MultiPolygon:
		return "MultiPolygon"
	case Collection:
		return "GeometryCollection"
	default:
		return ""
	}
}
