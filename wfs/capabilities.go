package wfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlasdatatech/wfsd/store"
)

// ServiceInfo carries the collaborator-supplied service identification
// strings GetCapabilities embeds (§6); the core never reads these beyond
// passing them through.
type ServiceInfo struct {
	Title    string
	Abstract string
	URL      string
}

// GetCapabilities enumerates all layers ordered by name and returns a WFS
// capabilities XML document (§4.E).
func GetCapabilities(ctx context.Context, db *store.DB, info ServiceInfo) (string, error) {
	layers, err := db.ListLayers(ctx)
	if err != nil {
		return "", err
	}

	var featureTypes strings.Builder
	for _, l := range layers {
		featureTypes.WriteString(featureTypeXML(l))
	}

	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<wfs:WFS_Capabilities xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
		`xmlns:ows="http://www.opengis.net/ows/1.1" version="2.0.0">` +
		`<ows:ServiceIdentification>` +
		`<ows:Title>` + escapeXMLText(info.Title) + `</ows:Title>` +
		`<ows:Abstract>` + escapeXMLText(info.Abstract) + `</ows:Abstract>` +
		`<ows:ServiceType>WFS</ows:ServiceType>` +
		`<ows:ServiceTypeVersion>2.0.0</ows:ServiceTypeVersion>` +
		`</ows:ServiceIdentification>` +
		`<ows:OperationsMetadata>` +
		operationXML("GetCapabilities", info.URL) +
		operationXML("DescribeFeatureType", info.URL) +
		operationXML("GetFeature", info.URL) +
		operationXML("Transaction", info.URL) +
		`</ows:OperationsMetadata>` +
		`<wfs:FeatureTypeList>` + featureTypes.String() + `</wfs:FeatureTypeList>` +
		`</wfs:WFS_Capabilities>`, nil
}

func operationXML(name, url string) string {
	return `<ows:Operation name="` + name + `">` +
		`<ows:DCP><ows:HTTP><ows:Get xlink:href="` + escapeXMLText(url) + `"/></ows:HTTP></ows:DCP>` +
		`<ows:Parameter name="outputFormat">` +
		`<ows:Value>application/gml+xml; version=3.2</ows:Value>` +
		`<ows:Value>application/json</ows:Value>` +
		`</ows:Parameter>` +
		`</ows:Operation>`
}

func featureTypeXML(l store.Layer) string {
	var bbox string
	if l.HasBBox() {
		bbox = fmt.Sprintf(
			`<wfs:WGS84BoundingBox><wfs:LowerCorner>%v %v</wfs:LowerCorner><wfs:UpperCorner>%v %v</wfs:UpperCorner></wfs:WGS84BoundingBox>`,
			*l.BBoxMinX, *l.BBoxMinY, *l.BBoxMaxX, *l.BBoxMaxY)
	}
	return `<wfs:FeatureType>` +
		`<wfs:Name>` + escapeXMLText(l.Name) + `</wfs:Name>` +
		`<wfs:Title>` + escapeXMLText(l.Title) + `</wfs:Title>` +
		`<wfs:Abstract>` + escapeXMLText(l.Description) + `</wfs:Abstract>` +
		`<wfs:DefaultCRS>` + srsName(l.SRID) + `</wfs:DefaultCRS>` +
		bbox +
		`</wfs:FeatureType>`
}
