package wfs

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/atlasdatatech/wfsd/store"
)

// DescribeFeatureType renders an XSD schema document for the requested
// layers. typenames is an optional comma- or space-separated list; an empty
// typenames describes every layer (§4.E).
func DescribeFeatureType(ctx context.Context, db *store.DB, typenames string) (string, error) {
	layers, err := resolveTypenames(ctx, db, typenames)
	if err != nil {
		return "", err
	}

	var elements strings.Builder
	for _, l := range layers {
		elements.WriteString(featureTypeElementXML(l))
	}

	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema" ` +
		`xmlns:gml="http://www.opengis.net/gml/3.2" ` +
		`xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
		`elementFormDefault="qualified">` +
		elements.String() +
		`</xsd:schema>`, nil
}

// resolveTypenames looks up each requested typename, silently omitting any
// that don't resolve (a partial match still describes the ones that do).
// When typenames is non-empty and none of them resolve, that's an unknown
// layer, not an empty result — it reports a 404-mappable error (§6).
func resolveTypenames(ctx context.Context, db *store.DB, typenames string) ([]store.Layer, error) {
	typenames = strings.TrimSpace(typenames)
	if typenames == "" {
		return db.ListLayers(ctx)
	}

	names := splitTypenames(typenames)
	var out []store.Layer
	for _, name := range names {
		l, err := db.GetLayerByName(ctx, name)
		if err != nil {
			if _, ok := err.(store.ErrNotFound); ok {
				continue
			}
			return nil, err
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, Error{Code: CodeInvalidParameterValue, Message: "Unknown typename(s): " + typenames, Status: http.StatusNotFound}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func splitTypenames(typenames string) []string {
	fields := strings.FieldsFunc(typenames, func(r rune) bool {
		return r == ',' || r == ' '
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func featureTypeElementXML(l store.Layer) string {
	var attrs strings.Builder
	names := make([]string, 0, len(l.AttributeSchema))
	for name := range l.AttributeSchema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attrs.WriteString(`<xsd:element name="` + escapeXMLText(safeTag(name)) + `" type="` + xsdType(l.AttributeSchema[name]) + `" minOccurs="0"/>`)
	}

	return `<xsd:element name="` + escapeXMLText(l.Name) + `" substitutionGroup="gml:AbstractFeature">` +
		`<xsd:complexType>` +
		`<xsd:complexContent>` +
		`<xsd:extension base="gml:AbstractFeatureType">` +
		`<xsd:sequence>` +
		`<xsd:element name="geometry" type="` + gmlGeometryType(l.GeometryType) + `" minOccurs="0"/>` +
		attrs.String() +
		`</xsd:sequence>` +
		`</xsd:extension>` +
		`</xsd:complexContent>` +
		`</xsd:complexType>` +
		`</xsd:element>`
}
