package wfs

import "strconv"

// gmlGeometryPropertyType maps a stored geometry_type string to the GML
// property-type element used for a layer's geometry element in the
// DescribeFeatureType XSD (§4.A, §4.E).
var gmlGeometryPropertyType = map[string]string{
	"Point":              "gml:PointPropertyType",
	"MultiPoint":         "gml:MultiPointPropertyType",
	"LineString":         "gml:CurvePropertyType",
	"MultiLineString":    "gml:MultiCurvePropertyType",
	"Polygon":            "gml:SurfacePropertyType",
	"MultiPolygon":       "gml:MultiSurfacePropertyType",
	"GeometryCollection": "gml:GeometryPropertyType",
}

func gmlGeometryType(geometryType string) string {
	if t, ok := gmlGeometryPropertyType[geometryType]; ok {
		return t
	}
	return "gml:GeometryPropertyType"
}

// xsdAttributeType maps an inferred attribute-schema type to its XSD type
// (§4.B, §4.E).
var xsdAttributeType = map[string]string{
	"String":  "xsd:string",
	"Integer": "xsd:long",
	"Real":    "xsd:double",
	"Date":    "xsd:date",
}

func xsdType(attrType string) string {
	if t, ok := xsdAttributeType[attrType]; ok {
		return t
	}
	return "xsd:string"
}

func srsName(srid int) string {
	return "urn:ogc:def:crs:EPSG::" + strconv.Itoa(srid)
}
