package geometry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	gmlNS = "http://www.opengis.net/gml/3.2"
)

// gmlGeometryTags is the set of GML element local names that represent a
// geometry, used by both this package and the transaction engine (§4.F) to
// recognise an unwrapped geometry child.
var gmlGeometryTags = map[string]bool{
	"Point":          true,
	"LineString":     true,
	"Polygon":        true,
	"MultiPoint":     true,
	"MultiCurve":     true,
	"MultiSurface":   true,
	"MultiGeometry":  true,
}

// IsGMLGeometryTag reports whether localName is one of the GML geometry
// element names this codec understands.
func IsGMLGeometryTag(localName string) bool {
	return gmlGeometryTags[localName]
}

// srsEPSGRe extracts the integer EPSG code after "EPSG::" in a srsName
// attribute value, e.g. "urn:ogc:def:crs:EPSG::4326" -> 4326.
var srsEPSGRe = regexp.MustCompile(`EPSG::(\d+)`)

// crsFromSRS returns (srid, swap) for a srsName attribute value per the
// axis-order rule in §4.A: EPSG:4326 swaps, CRS84 never swaps, a missing
// srsName defaults to 4326 with swap applied.
func crsFromSRS(srs string) (srid int, swap bool) {
	if strings.Contains(srs, "CRS84") {
		return 4326, false
	}
	if m := srsEPSGRe.FindStringSubmatch(srs); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n == 4326
	}
	return 4326, true
}

func srsName(srid int) string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", srid)
}

// ── emit ─────────────────────────────────────────────────────────────────

// ToGML renders g as a GML 3.2 element, srsName carrying srid. Per the
// axis-order rule, coordinate pairs are swapped to (lat, lon) when
// srid == 4326 and left as (lon, lat) otherwise.
func ToGML(g Geometry, srid int) (string, error) {
	srs := srsName(srid)
	swap := srid == 4326
	return gmlFor(g, srs, swap)
}

func gmlFor(g Geometry, srs string, swap bool) (string, error) {
	switch v := g.(type) {
	case Point:
		return gmlPoint(v, srs, swap), nil
	case LineString:
		return gmlLineString(v, srs, swap), nil
	case Polygon:
		return gmlPolygon(v, srs, swap), nil
	case MultiPoint:
		return gmlMulti(v, srs, swap, "MultiPoint", "pointMember", func(p Point) string {
			return gmlPoint(p, "", swap)
		}), nil
	case MultiLineString:
		return gmlMulti(v, srs, swap, "MultiCurve", "curveMember", func(ls LineString) string {
			return gmlLineString(ls, "", swap)
		}), nil
	case MultiPolygon:
		return gmlMulti(v, srs, swap, "MultiSurface", "surfaceMember", func(p Polygon) string {
			return gmlPolygon(p, "", swap)
		}), nil
	case Collection:
		var b strings.Builder
		fmt.Fprintf(&b, `<gml:MultiGeometry srsName="%s">`, srs)
		for _, sub := range v {
			member, err := gmlFor(sub, "", swap)
			if err != nil {
				return "", err
			}
			b.WriteString("<gml:geometryMember>")
			b.WriteString(member)
			b.WriteString("</gml:geometryMember>")
		}
		b.WriteString("</gml:MultiGeometry>")
		return b.String(), nil
	default:
		return "", ErrUnsupportedGeometryType{Type: GeometryTypeName(g)}
	}
}

func coordsStr(pts []Point, swap bool) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		if swap {
			parts[i] = fmt.Sprintf("%v %v", p[1], p[0])
		} else {
			parts[i] = fmt.Sprintf("%v %v", p[0], p[1])
		}
	}
	return strings.Join(parts, " ")
}

func srsAttr(srs string) string {
	if srs == "" {
		return ""
	}
	return fmt.Sprintf(` srsName="%s"`, srs)
}

func gmlPoint(p Point, srs string, swap bool) string {
	var pos string
	if swap {
		pos = fmt.Sprintf("%v %v", p[1], p[0])
	} else {
		pos = fmt.Sprintf("%v %v", p[0], p[1])
	}
	return fmt.Sprintf(`<gml:Point%s><gml:pos>%s</gml:pos></gml:Point>`, srsAttr(srs), pos)
}

func gmlLineString(ls LineString, srs string, swap bool) string {
	return fmt.Sprintf(`<gml:LineString%s><gml:posList>%s</gml:posList></gml:LineString>`,
		srsAttr(srs), coordsStr(ls, swap))
}

func gmlRing(ring LineString, swap bool) string {
	return fmt.Sprintf(`<gml:LinearRing><gml:posList>%s</gml:posList></gml:LinearRing>`, coordsStr(ring, swap))
}

func gmlPolygon(p Polygon, srs string, swap bool) string {
	if len(p) == 0 {
		return fmt.Sprintf(`<gml:Polygon%s></gml:Polygon>`, srsAttr(srs))
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<gml:Polygon%s>`, srsAttr(srs))
	fmt.Fprintf(&b, `<gml:exterior>%s</gml:exterior>`, gmlRing(p[0], swap))
	for _, interior := range p[1:] {
		fmt.Fprintf(&b, `<gml:interior>%s</gml:interior>`, gmlRing(interior, swap))
	}
	b.WriteString(`</gml:Polygon>`)
	return b.String()
}

func gmlMulti[T any](items []T, srs string, swap bool, tag, memberTag string, part func(T) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<gml:%s%s>`, tag, srsAttr(srs))
	for _, it := range items {
		fmt.Fprintf(&b, `<gml:%s>%s</gml:%s>`, memberTag, part(it), memberTag)
	}
	fmt.Fprintf(&b, `</gml:%s>`, tag)
	return b.String()
}

// ── parse ────────────────────────────────────────────────────────────────

// gmlNode is a minimal local-name-addressed XML tree, used because the
// geometry tag set is data-driven (the same shape nests inside Insert
// elements named after the layer) rather than fixed struct tags.
type gmlNode struct {
	Local    string
	Attrs    map[string]string
	Children []*gmlNode
	Text     string
}

func (n *gmlNode) child(local string) *gmlNode {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

// parseXMLTree decodes an XML document into a gmlNode tree rooted at the
// document element.
func parseXMLTree(data []byte) (*gmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*gmlNode
	var root *gmlNode

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &gmlNode{Local: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				p := stack[len(stack)-1]
				p.Children = append(p.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, ErrMalformedGML{Reason: "empty document"}
	}
	return root, nil
}

// FromGML parses a GML 3.2 geometry element (Point, LineString, Polygon,
// MultiPoint, MultiCurve, MultiSurface or MultiGeometry) and returns the
// internal geometry value plus the SRID declared by srsName (defaulting to
// 4326 when absent, per §4.A).
func FromGML(data []byte) (Geometry, int, error) {
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, 0, err
	}
	return gmlNodeToGeometry(root)
}

func gmlNodeToGeometry(n *gmlNode) (Geometry, int, error) {
	srid, swap := crsFromSRS(n.Attrs["srsName"])

	// Member geometries are emitted without a srsName of their own; they
	// are read in the CRS of the enclosing element.
	if srs := n.Attrs["srsName"]; srs != "" {
		for _, member := range n.Children {
			for _, c := range member.Children {
				if c.Attrs["srsName"] == "" {
					c.Attrs["srsName"] = srs
				}
			}
		}
	}

	switch n.Local {
	case "Point":
		pos := n.child("pos")
		if pos == nil {
			return nil, 0, ErrMalformedGML{Reason: "Point missing gml:pos"}
		}
		p, err := parsePos(pos.Text, swap)
		if err != nil {
			return nil, 0, err
		}
		return p, srid, nil

	case "LineString":
		posList := n.child("posList")
		if posList == nil {
			return nil, 0, ErrMalformedGML{Reason: "LineString missing gml:posList"}
		}
		pts, err := parsePosList(posList.Text, swap)
		if err != nil {
			return nil, 0, err
		}
		return LineString(pts), srid, nil

	case "Polygon":
		poly, err := parsePolygon(n, swap)
		if err != nil {
			return nil, 0, err
		}
		return poly, srid, nil

	case "MultiPoint":
		var out MultiPoint
		for _, member := range n.Children {
			if member.Local != "pointMember" || len(member.Children) == 0 {
				continue
			}
			g, _, err := gmlNodeToGeometry(member.Children[0])
			if err != nil {
				return nil, 0, err
			}
			p, ok := g.(Point)
			if !ok {
				return nil, 0, ErrMalformedGML{Reason: "MultiPoint pointMember is not a Point"}
			}
			out = append(out, p)
		}
		return out, srid, nil

	case "MultiCurve":
		var out MultiLineString
		for _, member := range n.Children {
			if member.Local != "curveMember" || len(member.Children) == 0 {
				continue
			}
			g, _, err := gmlNodeToGeometry(member.Children[0])
			if err != nil {
				return nil, 0, err
			}
			ls, ok := g.(LineString)
			if !ok {
				return nil, 0, ErrMalformedGML{Reason: "MultiCurve curveMember is not a LineString"}
			}
			out = append(out, ls)
		}
		return out, srid, nil

	case "MultiSurface":
		var out MultiPolygon
		for _, member := range n.Children {
			if member.Local != "surfaceMember" || len(member.Children) == 0 {
				continue
			}
			g, _, err := gmlNodeToGeometry(member.Children[0])
			if err != nil {
				return nil, 0, err
			}
			poly, ok := g.(Polygon)
			if !ok {
				return nil, 0, ErrMalformedGML{Reason: "MultiSurface surfaceMember is not a Polygon"}
			}
			out = append(out, poly)
		}
		return out, srid, nil

	case "MultiGeometry":
		var out Collection
		for _, member := range n.Children {
			if member.Local != "geometryMember" || len(member.Children) == 0 {
				continue
			}
			g, _, err := gmlNodeToGeometry(member.Children[0])
			if err != nil {
				return nil, 0, err
			}
			out = append(out, g)
		}
		return out, srid, nil

	default:
		return nil, 0, ErrUnsupportedGeometryType{Type: n.Local}
	}
}

func parsePolygon(n *gmlNode, swap bool) (Polygon, error) {
	exterior := n.child("exterior")
	if exterior == nil || len(exterior.Children) == 0 {
		return nil, ErrMalformedGML{Reason: "Polygon missing gml:exterior/gml:LinearRing"}
	}
	extRing := exterior.Children[0]
	extPosList := extRing.child("posList")
	if extRing.Local != "LinearRing" || extPosList == nil {
		return nil, ErrMalformedGML{Reason: "Polygon missing gml:exterior/gml:LinearRing/gml:posList"}
	}
	extPts, err := parsePosList(extPosList.Text, swap)
	if err != nil {
		return nil, err
	}

	poly := Polygon{LineString(extPts)}
	for _, child := range n.Children {
		if child.Local != "interior" || len(child.Children) == 0 {
			continue
		}
		ring := child.Children[0]
		posList := ring.child("posList")
		if ring.Local != "LinearRing" || posList == nil {
			return nil, ErrMalformedGML{Reason: "Polygon interior missing gml:LinearRing/gml:posList"}
		}
		pts, err := parsePosList(posList.Text, swap)
		if err != nil {
			return nil, err
		}
		poly = append(poly, LineString(pts))
	}
	return poly, nil
}

func parsePos(text string, swap bool) (Point, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Point{}, ErrMalformedGML{Reason: "gml:pos must have exactly 2 coordinates"}
	}
	a, err1 := strconv.ParseFloat(fields[0], 64)
	b, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return Point{}, ErrMalformedGML{Reason: "gml:pos has non-numeric coordinate"}
	}
	if swap {
		return Point{b, a}, nil
	}
	return Point{a, b}, nil
}

func parsePosList(text string, swap bool) ([]Point, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, ErrMalformedGML{Reason: "gml:posList has an odd number of coordinates"}
	}
	pts := make([]Point, len(fields)/2)
	for i := range pts {
		a, err1 := strconv.ParseFloat(fields[2*i], 64)
		b, err2 := strconv.ParseFloat(fields[2*i+1], 64)
		if err1 != nil || err2 != nil {
			return nil, ErrMalformedGML{Reason: "gml:posList has a non-numeric coordinate"}
		}
		if swap {
			pts[i] = Point{b, a}
		} else {
			pts[i] = Point{a, b}
		}
	}
	return pts, nil
}
