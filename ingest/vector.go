package ingest

import (
	"archive/zip"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/atlasdatatech/wfsd/geometry"
)

// readShapefileZip extracts the first .shp it finds in the archive (§4.D
// step 3), reads its matching .dbf for attributes, and hands the result to
// the same per-feature reprojection/record-building path GeoJSON uses.
func readShapefileZip(path string, opts Options) ([]record, []string, []map[string]interface{}, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer zr.Close()

	var shpFile *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(filepath.Ext(f.Name), ".shp") {
			shpFile = f
			break
		}
	}
	if shpFile == nil {
		return nil, nil, nil, fmt.Errorf("no .shp file found in ZIP archive")
	}

	base := strings.TrimSuffix(shpFile.Name, filepath.Ext(shpFile.Name))
	var dbfFile *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, base+".dbf") {
			dbfFile = f
			break
		}
	}

	shapes, err := readShpShapes(shpFile)
	if err != nil {
		return nil, nil, nil, err
	}

	var attrRows []map[string]interface{}
	if dbfFile != nil {
		attrRows, err = readDbfRows(dbfFile)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	var records []record
	var errs []string
	var sample []map[string]interface{}

	for i, shp := range shapes {
		props := map[string]interface{}{}
		if i < len(attrRows) {
			props = attrRows[i]
		}

		rec, err := shapeToRecord(shp, props, opts)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Feature %d: %v", i, err))
			continue
		}
		records = append(records, rec)
		if len(sample) < sampleLimit {
			sample = append(sample, props)
		}
	}
	return records, errs, sample, nil
}

func shapeToRecord(g geometry.Geometry, props map[string]interface{}, opts Options) (record, error) {
	if g == nil {
		return record{}, fmt.Errorf("Null geometry")
	}
	rg, err := reproject(g, opts.SourceSRID)
	if err != nil {
		return record{}, err
	}
	return makeRecord(rg, props, nil)
}

// Shapefile shape type codes (ESRI Shapefile Technical Description).
const (
	shpNull       = 0
	shpPoint      = 1
	shpPolyLine   = 3
	shpPolygon    = 5
	shpMultiPoint = 8
)

func readShpShapes(f *zip.File) ([]geometry.Geometry, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if len(data) < 100 {
		return nil, fmt.Errorf("shapefile header truncated")
	}

	var shapes []geometry.Geometry
	pos := 100
	for pos+8 <= len(data) {
		// record header: record number (BE int32), content length in
		// 16-bit words (BE int32)
		contentWords := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		contentBytes := int(contentWords) * 2
		start := pos + 8
		end := start + contentBytes
		if end > len(data) {
			break
		}

		g, err := decodeShpRecord(data[start:end])
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, g)
		pos = end
	}
	return shapes, nil
}

func decodeShpRecord(b []byte) (geometry.Geometry, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("truncated shape record")
	}
	shapeType := binary.LittleEndian.Uint32(b[0:4])
	body := b[4:]

	switch shapeType {
	case shpNull:
		return nil, nil

	case shpPoint:
		if len(body) < 16 {
			return nil, fmt.Errorf("truncated point record")
		}
		x := littleEndianFloat64(body[0:8])
		y := littleEndianFloat64(body[8:16])
		return geometry.Point{x, y}, nil

	case shpPolyLine:
		parts, points := readPartsAndPoints(body)
		rings := splitParts(parts, points)
		if len(rings) == 1 {
			return geometry.LineString(rings[0]), nil
		}
		ml := make(geometry.MultiLineString, len(rings))
		for i, r := range rings {
			ml[i] = geometry.LineString(r)
		}
		return ml, nil

	case shpPolygon:
		parts, points := readPartsAndPoints(body)
		rings := splitParts(parts, points)
		poly := make(geometry.Polygon, len(rings))
		for i, r := range rings {
			poly[i] = geometry.LineString(r)
		}
		return poly, nil

	case shpMultiPoint:
		_, points := readPointsOnly(body)
		return geometry.MultiPoint(points), nil

	default:
		return nil, fmt.Errorf("unsupported shapefile shape type: %d", shapeType)
	}
}

func littleEndianFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func readPartsAndPoints(body []byte) ([]int32, []geometry.Point) {
	// box(32) numParts(4) numPoints(4) parts(4*numParts) points(16*numPoints)
	numParts := int(binary.LittleEndian.Uint32(body[32:36]))
	numPoints := int(binary.LittleEndian.Uint32(body[36:40]))

	parts := make([]int32, numParts)
	off := 40
	for i := 0; i < numParts; i++ {
		parts[i] = int32(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
	}

	points := make([]geometry.Point, numPoints)
	for i := 0; i < numPoints; i++ {
		x := littleEndianFloat64(body[off : off+8])
		y := littleEndianFloat64(body[off+8 : off+16])
		points[i] = geometry.Point{x, y}
		off += 16
	}
	return parts, points
}

func readPointsOnly(body []byte) ([]int32, []geometry.Point) {
	numPoints := int(binary.LittleEndian.Uint32(body[32:36]))
	points := make([]geometry.Point, numPoints)
	off := 36
	for i := 0; i < numPoints; i++ {
		x := littleEndianFloat64(body[off : off+8])
		y := littleEndianFloat64(body[off+8 : off+16])
		points[i] = geometry.Point{x, y}
		off += 16
	}
	return nil, points
}

func splitParts(parts []int32, points []geometry.Point) [][]geometry.Point {
	rings := make([][]geometry.Point, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		rings[i] = points[start:end]
	}
	return rings
}

// readDbfRows parses an xBase .dbf file into one map per record, in record
// order, matching the corresponding .shp shape by index.
func readDbfRows(f *zip.File) ([]map[string]interface{}, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if len(data) < 32 {
		return nil, fmt.Errorf("dbf header truncated")
	}

	numRecords := int(binary.LittleEndian.Uint32(data[4:8]))
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	recordLen := int(binary.LittleEndian.Uint16(data[10:12]))

	type field struct {
		name   string
		typ    byte
		length int
	}
	var fields []field
	for off := 32; off+1 < headerLen && data[off] != 0x0D; off += 32 {
		name := strings.TrimRight(string(data[off:off+11]), "\x00")
		typ := data[off+11]
		length := int(data[off+16])
		fields = append(fields, field{name: name, typ: typ, length: length})
	}

	rows := make([]map[string]interface{}, 0, numRecords)
	pos := headerLen
	for r := 0; r < numRecords && pos+recordLen <= len(data); r++ {
		rec := data[pos : pos+recordLen]
		pos += recordLen

		row := map[string]interface{}{}
		off := 1 // skip deletion flag
		for _, fl := range fields {
			if off+fl.length > len(rec) {
				break
			}
			raw := strings.TrimSpace(string(rec[off : off+fl.length]))
			off += fl.length

			switch fl.typ {
			case 'N', 'F':
				row[fl.name] = coerce(raw)
			default:
				if raw == "" {
					row[fl.name] = nil
				} else {
					row[fl.name] = raw
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readGeoPackage reads the first feature table of a GeoPackage (the same
// "pick the default layer" simplification as the teacher's config-driven
// gpkg provider, which names one table per configured layer). Geometry
// blobs are parsed with the GeoPackage binary header format: magic "GP",
// version, flags (byte order + envelope indicator), SRID, optional
// envelope, then standard WKB — mirroring the split the teacher's
// decodeGeometry performs between BinaryHeader and wkb.DecodeBytes.
func readGeoPackage(path string, opts Options) ([]record, []string, []map[string]interface{}, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	defer db.Close()

	var tableName, geomCol, geomType string
	var srid int
	row := db.QueryRow(`
		SELECT c.table_name, gc.column_name, gc.geometry_type_name, c.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns gc ON c.table_name = gc.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
		LIMIT 1`)
	if err := row.Scan(&tableName, &geomCol, &geomType, &srid); err != nil {
		return nil, nil, nil, fmt.Errorf("no feature table found in GeoPackage: %w", err)
	}
	_ = geomType

	rows, err := db.Query(fmt.Sprintf(`SELECT rowid, * FROM "%s"`, tableName))
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, nil, err
	}

	var records []record
	var errs []string
	var sample []map[string]interface{}
	i := 0
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for j := range vals {
			ptrs[j] = &vals[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, nil, err
		}

		rec, props, err := gpkgRowToRecord(cols, vals, geomCol, srid, opts)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Feature %d: %v", i, err))
			i++
			continue
		}
		records = append(records, rec)
		if len(sample) < sampleLimit {
			sample = append(sample, props)
		}
		i++
	}
	return records, errs, sample, rows.Err()
}

func gpkgRowToRecord(cols []string, vals []interface{}, geomCol string, layerSRID int, opts Options) (record, map[string]interface{}, error) {
	var fid *string
	props := map[string]interface{}{}
	var geomBlob []byte

	for i, c := range cols {
		v := vals[i]
		switch c {
		case "rowid":
			if v != nil {
				s := fmt.Sprintf("%v", v)
				fid = &s
			}
		case geomCol:
			if b, ok := v.([]byte); ok {
				geomBlob = b
			}
		default:
			props[c] = v
		}
	}

	if geomBlob == nil {
		return record{}, nil, fmt.Errorf("Null geometry")
	}

	featSRID, wkbBytes, err := decodeGpkgGeometryHeader(geomBlob)
	if err != nil {
		return record{}, nil, err
	}
	g, err := geometry.DecodeWKB(wkbBytes)
	if err != nil {
		return record{}, nil, err
	}

	sourceSRID := featSRID
	if sourceSRID == 0 {
		sourceSRID = layerSRID
	}
	if sourceSRID == 0 {
		sourceSRID = opts.SourceSRID
	}

	rg, err := reproject(g, sourceSRID)
	if err != nil {
		return record{}, nil, err
	}
	rec, err := makeRecord(rg, props, fid)
	return rec, props, err
}

var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 64, 4: 64}

func decodeGpkgGeometryHeader(b []byte) (srid int, wkbBytes []byte, err error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return 0, nil, fmt.Errorf("not a GeoPackage geometry blob")
	}
	flags := b[3]
	order := binary.ByteOrder(binary.BigEndian)
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}

	envIndicator := (flags >> 1) & 0x07
	envBytes, ok := envelopeSizes[envIndicator]
	if !ok {
		return 0, nil, fmt.Errorf("invalid GeoPackage envelope indicator: %d", envIndicator)
	}

	headerSize := 8 + envBytes
	if len(b) < headerSize {
		return 0, nil, fmt.Errorf("truncated GeoPackage geometry header")
	}

	srid = int(int32(order.Uint32(b[4:8])))
	return srid, b[headerSize:], nil
}
