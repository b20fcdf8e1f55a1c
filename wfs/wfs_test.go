package wfs_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/atlasdatatech/wfsd/geometry"
	"github.com/atlasdatatech/wfsd/store"
	"github.com/atlasdatatech/wfsd/wfs"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newLayerWithFeature(t *testing.T, db *store.DB) store.Layer {
	t.Helper()
	ctx := context.Background()
	l := &store.Layer{Name: "poi", Title: "Points of Interest", SRID: 4326, GeometryType: "Point", AttributeSchema: map[string]string{"name": "String"}}
	if err := db.CreateLayer(ctx, l); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}
	wkb, err := geometry.EncodeWKB(geometry.Point{30, 10})
	if err != nil {
		t.Fatalf("EncodeWKB: %v", err)
	}
	minx, miny, maxx, maxy := 30.0, 10.0, 30.0, 10.0
	f := &store.Feature{LayerID: l.ID, FID: "a", Geometry: wkb, Properties: map[string]interface{}{"name": "cafe"},
		BBoxMinX: &minx, BBoxMinY: &miny, BBoxMaxX: &maxx, BBoxMaxY: &maxy}
	if err := db.InsertFeature(ctx, f); err != nil {
		t.Fatalf("InsertFeature: %v", err)
	}
	if err := db.UpdateLayerStats(ctx, l.ID); err != nil {
		t.Fatalf("UpdateLayerStats: %v", err)
	}
	got, err := db.GetLayer(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	return got
}

func TestGetCapabilitiesListsLayers(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.GetCapabilities(context.Background(), db, wfs.ServiceInfo{Title: "Test", URL: "http://example.test/wfs"})
	if err != nil {
		t.Fatalf("GetCapabilities: %v", err)
	}
	if !strings.Contains(out, `<wfs:Name>poi</wfs:Name>`) {
		t.Errorf("expected poi feature type, got %s", out)
	}
	if !strings.Contains(out, "urn:ogc:def:crs:EPSG::4326") {
		t.Errorf("expected default CRS, got %s", out)
	}
}

func TestDescribeFeatureTypeUnknownTypenameOmitted(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.DescribeFeatureType(context.Background(), db, "poi nonexistent")
	if err != nil {
		t.Fatalf("DescribeFeatureType: %v", err)
	}
	if !strings.Contains(out, `name="poi"`) {
		t.Errorf("expected poi element, got %s", out)
	}
	if strings.Contains(out, "nonexistent") {
		t.Errorf("unknown typename should be silently omitted, got %s", out)
	}
	if !strings.Contains(out, `name="name" type="xsd:string"`) {
		t.Errorf("expected name attribute as xsd:string, got %s", out)
	}
}

func TestDescribeFeatureTypeAllUnknownIsNotFound(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	_, err := wfs.DescribeFeatureType(context.Background(), db, "nonexistent")
	werr, ok := err.(wfs.Error)
	if !ok {
		t.Fatalf("expected a wfs.Error, got %v", err)
	}
	if wfs.StatusForErr(werr) != http.StatusNotFound {
		t.Errorf("expected 404, got %d", wfs.StatusForErr(werr))
	}
}

func TestGetFeatureGeoJSONKnownLayer(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.GetFeatureGeoJSON(context.Background(), db, wfs.GetFeatureRequest{Typenames: "poi"})
	if err != nil {
		t.Fatalf("GetFeatureGeoJSON: %v", err)
	}
	if !strings.Contains(out, `"id":"poi.a"`) {
		t.Errorf("expected feature id poi.a, got %s", out)
	}
	if !strings.Contains(out, `"numberMatched":1`) {
		t.Errorf("expected numberMatched 1, got %s", out)
	}
}

func TestGetFeatureUnknownTypenameIsEmptyCollection(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.GetFeatureGeoJSON(context.Background(), db, wfs.GetFeatureRequest{Typenames: "nope"})
	if err != nil {
		t.Fatalf("GetFeatureGeoJSON: %v", err)
	}
	if !strings.Contains(out, `"numberMatched":0`) {
		t.Errorf("expected an empty collection for an unknown typename, got %s", out)
	}
}

func TestGetFeatureFirstTypenameTokenOnly(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.GetFeatureGeoJSON(context.Background(), db, wfs.GetFeatureRequest{Typenames: "poi extraneous"})
	if err != nil {
		t.Fatalf("GetFeatureGeoJSON: %v", err)
	}
	if !strings.Contains(out, `"id":"poi.a"`) {
		t.Errorf("expected the first token to resolve the layer, got %s", out)
	}
}

func TestGetFeatureGMLAxisSwapInBoundedBy(t *testing.T) {
	db := newTestDB(t)
	newLayerWithFeature(t, db)

	out, err := wfs.GetFeatureGML(context.Background(), db, wfs.GetFeatureRequest{Typenames: "poi"})
	if err != nil {
		t.Fatalf("GetFeatureGML: %v", err)
	}
	if !strings.Contains(out, "<gml:lowerCorner>10 30</gml:lowerCorner>") {
		t.Errorf("expected swapped lowerCorner for EPSG:4326, got %s", out)
	}
}

func TestExecuteTransactionInsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.CreateLayer(ctx, &store.Layer{Name: "poi", SRID: 4326, AttributeSchema: map[string]string{}}); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}

	body := `<wfs:Transaction xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:gml="http://www.opengis.net/gml/3.2">
		<wfs:Insert>
			<poi gml:id="poi.x1">
				<geometry><gml:Point srsName="urn:ogc:def:crs:EPSG::4326"><gml:pos>10 30</gml:pos></gml:Point></geometry>
				<name>cafe</name>
			</poi>
		</wfs:Insert>
	</wfs:Transaction>`

	out := wfs.ExecuteTransaction(ctx, db, []byte(body))
	if !strings.Contains(out, "<wfs:totalInserted>1</wfs:totalInserted>") {
		t.Fatalf("expected totalInserted 1, got %s", out)
	}
	if !strings.Contains(out, `rid="poi.x1"`) {
		t.Errorf("expected InsertResults to reference poi.x1, got %s", out)
	}

	layer, err := db.GetLayerByName(ctx, "poi")
	if err != nil {
		t.Fatalf("GetLayerByName: %v", err)
	}
	f, err := db.GetFeature(ctx, layer.ID, "x1")
	if err != nil {
		t.Fatalf("GetFeature: %v", err)
	}
	if f.Properties["name"] != "cafe" {
		t.Errorf("expected property name=cafe, got %v", f.Properties)
	}
}

func TestExecuteTransactionUnknownLayerIsException(t *testing.T) {
	db := newTestDB(t)
	body := `<wfs:Transaction xmlns:wfs="http://www.opengis.net/wfs/2.0">
		<wfs:Insert><missing/></wfs:Insert>
	</wfs:Transaction>`

	out := wfs.ExecuteTransaction(context.Background(), db, []byte(body))
	if !strings.Contains(out, `exceptionCode="InvalidParameterValue"`) {
		t.Errorf("expected InvalidParameterValue exception, got %s", out)
	}
}

func TestExecuteTransactionMalformedXML(t *testing.T) {
	db := newTestDB(t)
	out := wfs.ExecuteTransaction(context.Background(), db, []byte("<not-closed>"))
	if !strings.Contains(out, `exceptionCode="InvalidParameterValue"`) {
		t.Errorf("expected InvalidParameterValue exception, got %s", out)
	}
}

func TestExecuteTransactionWrongRoot(t *testing.T) {
	db := newTestDB(t)
	out := wfs.ExecuteTransaction(context.Background(), db, []byte(`<NotATransaction/>`))
	if !strings.Contains(out, `exceptionCode="OperationNotSupported"`) {
		t.Errorf("expected OperationNotSupported exception, got %s", out)
	}
}

func TestExecuteTransactionDeleteByResourceId(t *testing.T) {
	db := newTestDB(t)
	layer := newLayerWithFeature(t, db)

	body := `<wfs:Transaction xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:fes="http://www.opengis.net/fes/2.0">
		<wfs:Delete typeName="poi">
			<fes:Filter><fes:ResourceId rid="poi.a"/></fes:Filter>
		</wfs:Delete>
	</wfs:Transaction>`

	out := wfs.ExecuteTransaction(context.Background(), db, []byte(body))
	if !strings.Contains(out, "<wfs:totalDeleted>1</wfs:totalDeleted>") {
		t.Fatalf("expected totalDeleted 1, got %s", out)
	}
	if _, err := db.GetFeature(context.Background(), layer.ID, "a"); err == nil {
		t.Error("expected feature to be deleted")
	}
}

func TestParseKVPNormalizesCaseAndTypename(t *testing.T) {
	values := url.Values{"Request": {"GetFeature"}, "typename": {"poi"}, "outputFormat": {"application/json"}}
	req, err := wfs.ParseKVP(values, nil, "")
	if err != nil {
		t.Fatalf("ParseKVP: %v", err)
	}
	if req.Operation != "GETFEATURE" {
		t.Errorf("Operation = %q, want GETFEATURE", req.Operation)
	}
	if req.Typenames != "poi" {
		t.Errorf("Typenames = %q, want poi", req.Typenames)
	}
}

func TestParseKVPBBOXSwapForEPSG4326(t *testing.T) {
	values := url.Values{"BBOX": {"10,30,20,40,EPSG:4326"}}
	req, err := wfs.ParseKVP(values, nil, "")
	if err != nil {
		t.Fatalf("ParseKVP: %v", err)
	}
	if req.Bbox == nil || req.Bbox.MinX != 30 || req.Bbox.MinY != 10 || req.Bbox.MaxX != 40 || req.Bbox.MaxY != 20 {
		t.Errorf("expected swapped bbox, got %+v", req.Bbox)
	}
}

func TestParseKVPBBOXNoSwapForCRS84(t *testing.T) {
	values := url.Values{"BBOX": {"10,30,20,40,urn:ogc:def:crs:OGC:1.3:CRS84"}}
	req, err := wfs.ParseKVP(values, nil, "")
	if err != nil {
		t.Fatalf("ParseKVP: %v", err)
	}
	if req.Bbox.MinX != 10 || req.Bbox.MinY != 30 {
		t.Errorf("expected unswapped bbox for CRS84, got %+v", req.Bbox)
	}
}

func TestDispatchTransactionFromPostBody(t *testing.T) {
	db := newTestDB(t)
	body := []byte(`<wfs:Transaction xmlns:wfs="http://www.opengis.net/wfs/2.0"><wfs:Insert><missing/></wfs:Insert></wfs:Transaction>`)
	req, err := wfs.ParseKVP(url.Values{}, body, "text/xml")
	if err != nil {
		t.Fatalf("ParseKVP: %v", err)
	}
	if req.Operation != "TRANSACTION" {
		t.Fatalf("Operation = %q, want TRANSACTION", req.Operation)
	}
	out, contentType, status := wfs.Dispatch(context.Background(), db, wfs.ServiceInfo{}, req)
	if contentType != "application/xml" {
		t.Errorf("contentType = %q", contentType)
	}
	if !strings.Contains(out, "exceptionCode") {
		t.Errorf("expected an exception report, got %s", out)
	}
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unknown feature type", status)
	}
}

func TestDispatchUnsupportedOperationIs400(t *testing.T) {
	db := newTestDB(t)
	req, err := wfs.ParseKVP(url.Values{"REQUEST": {"Nonsense"}}, nil, "")
	if err != nil {
		t.Fatalf("ParseKVP: %v", err)
	}
	_, _, status := wfs.Dispatch(context.Background(), db, wfs.ServiceInfo{}, req)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unsupported request verb", status)
	}
}
