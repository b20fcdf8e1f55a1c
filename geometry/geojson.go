package geometry

import "encoding/json"

// ToGeoJSON returns the canonical GeoJSON shape for g: always (lon, lat)
// order, no axis-swap logic (§4.A). The result is a plain value tree ready
// for encoding/json.
func ToGeoJSON(g Geometry) (interface{}, error) {
	switch v := g.(type) {
	case Point:
		return map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{v[0], v[1]},
		}, nil

	case MultiPoint:
		return map[string]interface{}{
			"type":        "MultiPoint",
			"coordinates": pointsCoords(v),
		}, nil

	case LineString:
		return map[string]interface{}{
			"type":        "LineString",
			"coordinates": pointsCoords(v),
		}, nil

	case MultiLineString:
		coords := make([][][2]float64, len(v))
		for i, ls := range v {
			coords[i] = pointsCoords(ls)
		}
		return map[string]interface{}{
			"type":        "MultiLineString",
			"coordinates": coords,
		}, nil

	case Polygon:
		return map[string]interface{}{
			"type":        "Polygon",
			"coordinates": polygonCoords(v),
		}, nil

	case MultiPolygon:
		coords := make([][][][2]float64, len(v))
		for i, poly := range v {
			coords[i] = polygonCoords(poly)
		}
		return map[string]interface{}{
			"type":        "MultiPolygon",
			"coordinates": coords,
		}, nil

	case Collection:
		members := make([]interface{}, len(v))
		for i, sub := range v {
			m, err := ToGeoJSON(sub)
			if err != nil {
				return nil, err
			}
			members[i] = m
		}
		return map[string]interface{}{
			"type":       "GeometryCollection",
			"geometries": members,
		}, nil

	default:
		return nil, ErrUnsupportedGeometryType{Type: GeometryTypeName(g)}
	}
}

func pointsCoords(pts []Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func polygonCoords(poly Polygon) [][][2]float64 {
	out := make([][][2]float64, len(poly))
	for i, ring := range poly {
		out[i] = pointsCoords(ring)
	}
	return out
}

type geoJSONDoc struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates,omitempty"`
	Geometries  []json.RawMessage `json:"geometries,omitempty"`
}

// FromGeoJSON parses a GeoJSON geometry document into the internal
// geometry value.
func FromGeoJSON(raw []byte) (Geometry, error) {
	var doc geoJSONDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrMalformedGML{Reason: err.Error()}
	}

	switch doc.Type {
	case "Point":
		var c [2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		return Point{c[0], c[1]}, nil

	case "MultiPoint":
		var c [][2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		return MultiPoint(pointsFromCoords(c)), nil

	case "LineString":
		var c [][2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		return LineString(pointsFromCoords(c)), nil

	case "MultiLineString":
		var c [][][2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		out := make(MultiLineString, len(c))
		for i, ls := range c {
			out[i] = LineString(pointsFromCoords(ls))
		}
		return out, nil

	case "Polygon":
		var c [][][2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		return polygonFromCoords(c), nil

	case "MultiPolygon":
		var c [][][][2]float64
		if err := json.Unmarshal(doc.Coordinates, &c); err != nil {
			return nil, ErrMalformedGML{Reason: err.Error()}
		}
		out := make(MultiPolygon, len(c))
		for i, poly := range c {
			out[i] = polygonFromCoords(poly)
		}
		return out, nil

	case "GeometryCollection":
		out := make(Collection, len(doc.Geometries))
		for i, raw := range doc.Geometries {
			g, err := FromGeoJSON(raw)
			if err != nil {
				return nil, err
			}
			out[i] = g
		}
		return out, nil

	default:
		return nil, ErrUnsupportedGeometryType{Type: doc.Type}
	}
}

func pointsFromCoords(c [][2]float64) []Point {
	out := make([]Point, len(c))
	for i, p := range c {
		out[i] = Point{p[0], p[1]}
	}
	return out
}

func polygonFromCoords(c [][][2]float64) Polygon {
	out := make(Polygon, len(c))
	for i, ring := range c {
		out[i] = LineString(pointsFromCoords(ring))
	}
	return out
}
