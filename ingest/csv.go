package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atlasdatatech/wfsd/geometry"
)

var latColumnNames = map[string]bool{"lat": true, "latitude": true, "y": true, "northing": true, "ylat": true}
var lonColumnNames = map[string]bool{"lon": true, "lng": true, "longitude": true, "x": true, "easting": true, "xlon": true, "xlong": true}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV auto-detects lat/lon columns unless overridden (§4.D step 3);
// every other column becomes a property with numeric coercion.
func readCSV(path string, opts Options) ([]record, []string, []map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rows) == 0 {
		return nil, []string{"CSV has no data rows"}, nil, nil
	}

	header := rows[0]
	dataRows := rows[1:]
	if len(dataRows) == 0 {
		return nil, []string{"CSV has no data rows"}, nil, nil
	}

	latField, lonField := opts.LatField, opts.LonField
	if latField == "" {
		latField = detectColumn(header, latColumnNames)
	}
	if lonField == "" {
		lonField = detectColumn(header, lonColumnNames)
	}
	if latField == "" || lonField == "" {
		return nil, nil, nil, fmt.Errorf(
			"cannot detect lat/lon columns. Found: %v. Specify lat_field and lon_field explicitly.", header)
	}

	latIdx, lonIdx := indexOf(header, latField), indexOf(header, lonField)

	var records []record
	var errs []string
	var sample []map[string]interface{}

	for i, row := range dataRows {
		rec, props, err := csvRowToRecord(header, row, latIdx, lonIdx, opts)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		records = append(records, rec)
		if len(sample) < sampleLimit {
			sample = append(sample, props)
		}
	}
	return records, errs, sample, nil
}

func detectColumn(header []string, names map[string]bool) string {
	for _, h := range header {
		if names[strings.ToLower(h)] {
			return h
		}
	}
	return ""
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func csvRowToRecord(header, row []string, latIdx, lonIdx int, opts Options) (record, map[string]interface{}, error) {
	if latIdx < 0 || lonIdx < 0 || latIdx >= len(row) || lonIdx >= len(row) {
		return record{}, nil, fmt.Errorf("row is missing the latitude/longitude column")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
	if err != nil {
		return record{}, nil, fmt.Errorf("invalid latitude value: %v", row[latIdx])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
	if err != nil {
		return record{}, nil, fmt.Errorf("invalid longitude value: %v", row[lonIdx])
	}

	g, err := reproject(geometry.Point{lon, lat}, opts.SourceSRID)
	if err != nil {
		return record{}, nil, err
	}

	props := map[string]interface{}{}
	for i, h := range header {
		if i == latIdx || i == lonIdx || i >= len(row) {
			continue
		}
		props[h] = coerce(row[i])
	}

	rec, err := makeRecord(g, props, nil)
	return rec, props, err
}

// coerce tries integer, then real, then falls back to the raw string; an
// empty string becomes nil (§4.D step 4).
func coerce(v string) interface{} {
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
