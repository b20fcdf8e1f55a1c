package geometry

import "math"

// Bounds returns the inclusive axis-aligned bounding box (minx, miny, maxx,
// maxy) of g. For a single point minx==maxx and miny==maxy.
func Bounds(g Geometry) (minx, miny, maxx, maxy float64, err error) {
	minx, miny = math.Inf(1), math.Inf(1)
	maxx, maxy = math.Inf(-1), math.Inf(-1)

	expand := func(x, y float64) {
		if x < minx {
			minx = x
		}
		if x > maxx {
			maxx = x
		}
		if y < miny {
			miny = y
		}
		if y > maxy {
			maxy = y
		}
	}

	var walk func(g Geometry) error
	walk = func(g Geometry) error {
		switch v := g.(type) {
		case Point:
			expand(v[0], v[1])
		case MultiPoint:
			for _, p := range v {
				expand(p[0], p[1])
			}
		case LineString:
			for _, p := range v {
				expand(p[0], p[1])
			}
		case MultiLineString:
			for _, ls := range v {
				for _, p := range ls {
					expand(p[0], p[1])
				}
			}
		case Polygon:
			for _, ring := range v {
				for _, p := range ring {
					expand(p[0], p[1])
				}
			}
		case MultiPolygon:
			for _, poly := range v {
				for _, ring := range poly {
					for _, p := range ring {
						expand(p[0], p[1])
					}
				}
			}
		case Collection:
			for _, sub := range v {
				if err := walk(sub); err != nil {
					return err
				}
			}
		default:
			return ErrUnsupportedGeometryType{Type: GeometryTypeName(g)}
		}
		return nil
	}

	if err = walk(g); err != nil {
		return 0, 0, 0, 0, err
	}
	if math.IsInf(minx, 1) {
		return 0, 0, 0, 0, ErrMalformedGML{Reason: "empty geometry has no bounds"}
	}
	return minx, miny, maxx, maxy, nil
}
