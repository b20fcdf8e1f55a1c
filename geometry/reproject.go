package geometry

import "math"

// Reprojector transforms a single coordinate pair from one SRID to another.
// The geometry codec treats it as opaque (§4.A); ReprojectGeometry is the
// only caller that knows how to walk a geometry's coordinate pairs.
type Reprojector interface {
	Transform(fromSRID, toSRID int, x, y float64) (nx, ny float64, err error)
}

// WebMercatorReprojector is the built-in transform. Per the spec's
// Non-goals ("support for CRSs unknown to the reprojection collaborator"
// is out of scope), it only knows identity plus the handful of CRSs the
// ingest and transaction paths are expected to see: EPSG:4326 (WGS84,
// the canonical storage CRS) and EPSG:3857 (WebMercator, the common
// source CRS for web-authored data). Anything else is ErrUnknownCrs.
type WebMercatorReprojector struct{}

const earthRadius = 6378137.0

func (WebMercatorReprojector) Transform(fromSRID, toSRID int, x, y float64) (float64, float64, error) {
	if fromSRID == toSRID {
		return x, y, nil
	}
	if fromSRID == 3857 && toSRID == 4326 {
		lon := x / earthRadius * 180 / math.Pi
		lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
		return lon, lat, nil
	}
	if fromSRID == 4326 && toSRID == 3857 {
		mx := x * math.Pi / 180 * earthRadius
		my := math.Log(math.Tan(math.Pi/4+y*math.Pi/360)) * earthRadius
		return mx, my, nil
	}
	if fromSRID != 4326 && fromSRID != 3857 {
		return 0, 0, ErrUnknownCrs{SRID: fromSRID}
	}
	return 0, 0, ErrUnknownCrs{SRID: toSRID}
}

// ReprojectGeometry returns g with every coordinate pair transformed from
// fromSRID to toSRID via r. If fromSRID == toSRID, g is returned unchanged
// (identity, per §4.A).
func ReprojectGeometry(g Geometry, fromSRID, toSRID int, r Reprojector) (Geometry, error) {
	if fromSRID == toSRID {
		return g, nil
	}

	tp := func(p Point) (Point, error) {
		nx, ny, err := r.Transform(fromSRID, toSRID, p[0], p[1])
		if err != nil {
			return Point{}, err
		}
		return Point{nx, ny}, nil
	}

	switch v := g.(type) {
	case Point:
		return tp(v)

	case MultiPoint:
		out := make(MultiPoint, len(v))
		for i, p := range v {
			np, err := tp(p)
			if err != nil {
				return nil, err
			}
			out[i] = np
		}
		return out, nil

	case LineString:
		out := make(LineString, len(v))
		for i, p := range v {
			np, err := tp(p)
			if err != nil {
				return nil, err
			}
			out[i] = np
		}
		return out, nil

	case MultiLineString:
		out := make(MultiLineString, len(v))
		for i, ls := range v {
			nls, err := ReprojectGeometry(ls, fromSRID, toSRID, r)
			if err != nil {
				return nil, err
			}
			out[i] = nls.(LineString)
		}
		return out, nil

	case Polygon:
		out := make(Polygon, len(v))
		for i, ring := range v {
			nring, err := ReprojectGeometry(LineString(ring), fromSRID, toSRID, r)
			if err != nil {
				return nil, err
			}
			out[i] = LineString(nring.(LineString))
		}
		return out, nil

	case MultiPolygon:
		out := make(MultiPolygon, len(v))
		for i, poly := range v {
			npoly, err := ReprojectGeometry(Polygon(poly), fromSRID, toSRID, r)
			if err != nil {
				return nil, err
			}
			out[i] = Polygon(npoly.(Polygon))
		}
		return out, nil

	case Collection:
		out := make(Collection, len(v))
		for i, sub := range v {
			nsub, err := ReprojectGeometry(sub, fromSRID, toSRID, r)
			if err != nil {
				return nil, err
			}
			out[i] = nsub
		}
		return out, nil

	default:
		return nil, ErrUnsupportedGeometryType{Type: GeometryTypeName(g)}
	}
}
