package geometry_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/atlasdatatech/wfsd/geometry"
)

func TestBounds(t *testing.T) {
	testcases := []struct {
		name                   string
		geom                   geometry.Geometry
		minx, miny, maxx, maxy float64
	}{
		{
			name: "point",
			geom: geometry.Point{1, 2},
			minx: 1, miny: 2, maxx: 1, maxy: 2,
		},
		{
			name: "linestring",
			geom: geometry.LineString{{0, 0}, {10, 5}},
			minx: 0, miny: 0, maxx: 10, maxy: 5,
		},
		{
			name: "polygon with hole",
			geom: geometry.Polygon{
				{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
				{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
			},
			minx: 0, miny: 0, maxx: 10, maxy: 10,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			minx, miny, maxx, maxy, err := geometry.Bounds(tc.geom)
			if err != nil {
				t.Fatalf("Bounds: %v", err)
			}
			if minx != tc.minx || miny != tc.miny || maxx != tc.maxx || maxy != tc.maxy {
				t.Errorf("Bounds = (%v,%v,%v,%v), want (%v,%v,%v,%v)", minx, miny, maxx, maxy, tc.minx, tc.miny, tc.maxx, tc.maxy)
			}
		})
	}
}

func TestWKBRoundTrip(t *testing.T) {
	testcases := []geometry.Geometry{
		geometry.Point{1.5, -2.5},
		geometry.LineString{{0, 0}, {1, 1}, {2, 0}},
		geometry.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
		geometry.MultiPoint{{0, 0}, {1, 1}},
	}

	for _, g := range testcases {
		b, err := geometry.EncodeWKB(g)
		if err != nil {
			t.Fatalf("EncodeWKB(%v): %v", g, err)
		}
		got, err := geometry.DecodeWKB(b)
		if err != nil {
			t.Fatalf("DecodeWKB: %v", err)
		}
		if geometry.GeometryTypeName(got) != geometry.GeometryTypeName(g) {
			t.Errorf("round trip type = %v, want %v", geometry.GeometryTypeName(got), geometry.GeometryTypeName(g))
		}
	}
}

func TestToGML4326AxisSwap(t *testing.T) {
	// EPSG:4326 declares (lat, lon) order: internal (x=lon, y=lat) must be
	// swapped on emission (§4.A).
	g := geometry.Point{30, 10} // lon=30, lat=10
	out, err := geometry.ToGML(g, 4326)
	if err != nil {
		t.Fatalf("ToGML: %v", err)
	}
	if !strings.Contains(out, "<gml:pos>10 30</gml:pos>") {
		t.Errorf("expected swapped pos \"10 30\", got %v", out)
	}
}

func TestToGML3857NoAxisSwap(t *testing.T) {
	g := geometry.Point{30, 10}
	out, err := geometry.ToGML(g, 3857)
	if err != nil {
		t.Fatalf("ToGML: %v", err)
	}
	if !strings.Contains(out, "<gml:pos>30 10</gml:pos>") {
		t.Errorf("expected unswapped pos \"30 10\", got %v", out)
	}
}

func TestFromGMLDefaultsTo4326WithSwap(t *testing.T) {
	doc := `<gml:Point xmlns:gml="http://www.opengis.net/gml/3.2"><gml:pos>10 30</gml:pos></gml:Point>`
	g, srid, err := geometry.FromGML([]byte(doc))
	if err != nil {
		t.Fatalf("FromGML: %v", err)
	}
	if srid != 4326 {
		t.Errorf("srid = %d, want 4326", srid)
	}
	p, ok := g.(geometry.Point)
	if !ok {
		t.Fatalf("expected Point, got %T", g)
	}
	if p[0] != 30 || p[1] != 10 {
		t.Errorf("expected swap back to (lon=30, lat=10), got %v", p)
	}
}

func TestFromGMLMissingPolygonRingIsMalformed(t *testing.T) {
	doc := `<gml:Polygon xmlns:gml="http://www.opengis.net/gml/3.2"></gml:Polygon>`
	_, _, err := geometry.FromGML([]byte(doc))
	if _, ok := err.(geometry.ErrMalformedGML); !ok {
		t.Fatalf("expected ErrMalformedGML, got %v", err)
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	g := geometry.LineString{{1, 2}, {3, 4}}
	doc, err := geometry.ToGeoJSON(g)
	if err != nil {
		t.Fatalf("ToGeoJSON: %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := geometry.FromGeoJSON(raw)
	if err != nil {
		t.Fatalf("FromGeoJSON: %v", err)
	}
	ls, ok := got.(geometry.LineString)
	if !ok || len(ls) != 2 {
		t.Fatalf("expected a 2-point LineString, got %#v", got)
	}
}

func TestReprojectIdentity(t *testing.T) {
	g := geometry.Point{1, 2}
	out, err := geometry.ReprojectGeometry(g, 4326, 4326, geometry.WebMercatorReprojector{})
	if err != nil {
		t.Fatalf("ReprojectGeometry: %v", err)
	}
	if out.(geometry.Point) != g {
		t.Errorf("identity reprojection changed the geometry: %v", out)
	}
}

func TestReprojectUnknownCRS(t *testing.T) {
	g := geometry.Point{1, 2}
	_, err := geometry.ReprojectGeometry(g, 4326, 2154, geometry.WebMercatorReprojector{})
	if _, ok := err.(geometry.ErrUnknownCrs); !ok {
		t.Fatalf("expected ErrUnknownCrs, got %v", err)
	}
}
