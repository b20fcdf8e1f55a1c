package wfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atlasdatatech/wfsd/geometry"
	"github.com/atlasdatatech/wfsd/store"
)

// maxFeatures is the hard upper bound on a GetFeature page size; a larger
// client COUNT is silently clamped (§5).
const maxFeatures = 10000

// GetFeatureRequest carries the normalized GetFeature parameters (§4.E).
// MaxFeatures is the server's configured hard cap (§5); zero defaults to
// maxFeatures.
type GetFeatureRequest struct {
	Typenames   string
	Bbox        *store.BBox
	Count       int
	StartIndex  int
	MaxFeatures int
}

// firstTypename resolves TYPENAMES/TYPENAME to a single layer name by
// taking only the first whitespace-separated token; any further tokens are
// ignored rather than rejected (preserved as specified).
func firstTypename(typenames string) string {
	fields := strings.Fields(typenames)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func resolveGetFeaturePage(ctx context.Context, db *store.DB, req GetFeatureRequest) (store.Layer, store.FeaturePage, bool, error) {
	name := firstTypename(req.Typenames)
	layer, err := db.GetLayerByName(ctx, name)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); ok {
			return store.Layer{}, store.FeaturePage{}, false, nil
		}
		return store.Layer{}, store.FeaturePage{}, false, err
	}

	hardCap := req.MaxFeatures
	if hardCap <= 0 {
		hardCap = maxFeatures
	}
	limit := hardCap
	if req.Count > 0 && req.Count < hardCap {
		limit = req.Count
	}
	start := req.StartIndex
	if start < 0 {
		start = 0
	}

	page, err := db.QueryFeatures(ctx, store.FeatureQuery{
		LayerID: layer.ID,
		Bbox:    req.Bbox,
		Offset:  start,
		Limit:   limit,
	})
	if err != nil {
		return store.Layer{}, store.FeaturePage{}, false, err
	}
	return layer, page, true, nil
}

// GetFeatureGeoJSON renders a GetFeature response as a GeoJSON
// FeatureCollection. An unknown typename yields an empty collection, not
// an error (§4.E).
func GetFeatureGeoJSON(ctx context.Context, db *store.DB, req GetFeatureRequest) (string, error) {
	layer, page, found, err := resolveGetFeaturePage(ctx, db, req)
	if err != nil {
		return "", err
	}
	if !found {
		return emptyGeoJSONCollection(), nil
	}

	features := make([]map[string]interface{}, 0, len(page.Features))
	for _, f := range page.Features {
		features = append(features, featureToGeoJSON(layer, f))
	}

	doc := map[string]interface{}{
		"type":           "FeatureCollection",
		"features":       features,
		"numberMatched":  page.Total,
		"numberReturned": len(page.Features),
		"timeStamp":      nowISO(),
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func featureToGeoJSON(layer store.Layer, f store.Feature) map[string]interface{} {
	var geom interface{}
	if f.Geometry != nil {
		if g, err := geometry.DecodeWKB(f.Geometry); err == nil {
			if gj, err := geometry.ToGeoJSON(g); err == nil {
				geom = gj
			}
		}
	}
	return map[string]interface{}{
		"type":       "Feature",
		"id":         layer.Name + "." + f.FID,
		"geometry":   geom,
		"properties": f.Properties,
	}
}

func emptyGeoJSONCollection() string {
	doc := map[string]interface{}{
		"type":           "FeatureCollection",
		"features":       []interface{}{},
		"numberMatched":  0,
		"numberReturned": 0,
		"timeStamp":      nowISO(),
	}
	out, _ := json.Marshal(doc)
	return string(out)
}

// GetFeatureGML renders a GetFeature response as a GML 3.2
// wfs:FeatureCollection. An unknown typename yields an empty collection,
// not an error (§4.E).
func GetFeatureGML(ctx context.Context, db *store.DB, req GetFeatureRequest) (string, error) {
	layer, page, found, err := resolveGetFeaturePage(ctx, db, req)
	if err != nil {
		return "", err
	}
	if !found {
		return emptyGMLCollection(), nil
	}

	var members strings.Builder
	for _, f := range page.Features {
		members.WriteString(featureMemberXML(layer, f))
	}

	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
		`xmlns:gml="http://www.opengis.net/gml/3.2" ` +
		`xmlns:fes="http://www.opengis.net/fes/2.0" ` +
		fmt.Sprintf(`numberMatched="%d" numberReturned="%d" timeStamp="%s">`, page.Total, len(page.Features), nowISO()) +
		boundedByXML(layer) +
		members.String() +
		`</wfs:FeatureCollection>`, nil
}

func emptyGMLCollection() string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
		`xmlns:gml="http://www.opengis.net/gml/3.2" ` +
		`xmlns:fes="http://www.opengis.net/fes/2.0" ` +
		fmt.Sprintf(`numberMatched="0" numberReturned="0" timeStamp="%s">`, nowISO()) +
		`</wfs:FeatureCollection>`
}

// boundedByXML renders gml:boundedBy for a layer's aggregate bbox, swapping
// to (lat, lon) corner order for EPSG:4326 per the axis-order rule (§4.A).
func boundedByXML(l store.Layer) string {
	if !l.HasBBox() {
		return ""
	}
	lowerX, lowerY, upperX, upperY := *l.BBoxMinX, *l.BBoxMinY, *l.BBoxMaxX, *l.BBoxMaxY
	if l.SRID == 4326 {
		lowerX, lowerY = lowerY, lowerX
		upperX, upperY = upperY, upperX
	}
	return `<gml:boundedBy><gml:Envelope srsName="` + srsName(l.SRID) + `">` +
		fmt.Sprintf(`<gml:lowerCorner>%v %v</gml:lowerCorner><gml:upperCorner>%v %v</gml:upperCorner>`, lowerX, lowerY, upperX, upperY) +
		`</gml:Envelope></gml:boundedBy>`
}

func featureMemberXML(layer store.Layer, f store.Feature) string {
	var geom string
	if f.Geometry != nil {
		if g, err := geometry.DecodeWKB(f.Geometry); err == nil {
			if gml, err := geometry.ToGML(g, layer.SRID); err == nil {
				geom = gml
			}
		}
	}

	var props strings.Builder
	for name, value := range f.Properties {
		tag := safeTag(name)
		props.WriteString(`<` + tag + `>` + escapeXMLValue(value) + `</` + tag + `>`)
	}

	return `<wfs:member><` + escapeXMLText(layer.Name) + ` gml:id="` + escapeXMLText(layer.Name) + `.` + escapeXMLText(f.FID) + `">` +
		`<geometry>` + geom + `</geometry>` +
		props.String() +
		`</` + escapeXMLText(layer.Name) + `></wfs:member>`
}

func escapeXMLValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return escapeXMLText(fmt.Sprintf("%v", v))
}

// nowISO renders the current UTC time with millisecond precision and a
// trailing Z, matching the timeStamp format used across WFS responses.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000") + "Z"
}
