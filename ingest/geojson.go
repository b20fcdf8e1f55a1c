package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atlasdatatech/wfsd/geometry"
)

type geoFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoDoc struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// readGeoJSON accepts either a FeatureCollection or a single Feature
// (§4.D step 3); any other top-level type is a fatal format error.
func readGeoJSON(path string, opts Options) ([]record, []string, []map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	var doc geoDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var rawFeatures []geoFeature
	switch doc.Type {
	case "FeatureCollection":
		rawFeatures = doc.Features
	case "Feature":
		var f geoFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		rawFeatures = []geoFeature{f}
	default:
		return nil, nil, nil, fmt.Errorf("GeoJSON must be a FeatureCollection or Feature")
	}

	var records []record
	var errs []string
	var sample []map[string]interface{}

	for i, feat := range rawFeatures {
		rec, err := geojsonFeatureToRecord(feat, opts)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Feature %d: %v", i, err))
			continue
		}
		records = append(records, rec)
		if len(sample) < sampleLimit {
			sample = append(sample, feat.Properties)
		}
	}
	return records, errs, sample, nil
}

func geojsonFeatureToRecord(feat geoFeature, opts Options) (record, error) {
	if len(feat.Geometry) == 0 || string(feat.Geometry) == "null" {
		return record{}, fmt.Errorf("Null geometry")
	}

	g, err := geometry.FromGeoJSON(feat.Geometry)
	if err != nil {
		return record{}, err
	}
	g, err = reproject(g, opts.SourceSRID)
	if err != nil {
		return record{}, err
	}

	var fid *string
	if feat.ID != nil {
		s := fmt.Sprintf("%v", feat.ID)
		fid = &s
	}

	props := feat.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	return makeRecord(g, props, fid)
}
