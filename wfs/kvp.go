package wfs

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/atlasdatatech/wfsd/store"
)

// Request is a normalized WFS KVP request, framework-agnostic: it carries
// no *http.Request so it can be unit-tested without a server (§4.G).
type Request struct {
	Service      string
	Operation    string // uppercased REQUEST verb
	Typenames    string
	Bbox         *store.BBox
	Count        int
	StartIndex   int
	OutputFormat string
	Body         []byte // raw POST body, used for Transaction
	MaxFeatures  int    // server-configured hard cap (§5); set by the caller, not parsed from KVP
}

// ParseKVP normalizes a set of query parameters into a Request. Parameter
// names are matched case-insensitively.
func ParseKVP(values url.Values, body []byte, contentType string) (Request, error) {
	norm := map[string]string{}
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		norm[strings.ToUpper(k)] = v[0]
	}

	req := Request{
		Service:      norm["SERVICE"],
		Operation:    strings.ToUpper(norm["REQUEST"]),
		OutputFormat: norm["OUTPUTFORMAT"],
		Body:         body,
	}
	req.Typenames = norm["TYPENAMES"]
	if req.Typenames == "" {
		req.Typenames = norm["TYPENAME"]
	}

	if req.Operation == "" && strings.Contains(strings.ToLower(contentType), "xml") {
		if strings.Contains(string(body), "Transaction") {
			req.Operation = "TRANSACTION"
		}
	}

	if raw := norm["COUNT"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.Count = n
		}
	}
	if raw := norm["STARTINDEX"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.StartIndex = n
		}
	}

	if raw := norm["BBOX"]; raw != "" {
		bbox, err := parseBBOX(raw)
		if err != nil {
			return Request{}, Error{Code: CodeInvalidParameterValue, Message: err.Error()}
		}
		req.Bbox = bbox
	}

	return req, nil
}

var epsg4326Re = regexp.MustCompile(`EPSG:4326|EPSG::4326`)

// parseBBOX parses a comma-separated BBOX value. A fifth CRS token
// matching EPSG:4326 (but not CRS84) indicates the four values are given
// as (lat, lon) and must be swapped back to (lon, lat) before use (§4.G).
func parseBBOX(raw string) (*store.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 4 {
		return nil, errInvalidBBOX
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, errInvalidBBOX
		}
		vals[i] = v
	}
	minx, miny, maxx, maxy := vals[0], vals[1], vals[2], vals[3]
	if len(parts) >= 5 {
		crs := strings.TrimSpace(parts[4])
		if epsg4326Re.MatchString(crs) && !strings.Contains(crs, "CRS84") {
			minx, miny, maxx, maxy = vals[1], vals[0], vals[3], vals[2]
		}
	}
	return &store.BBox{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy}, nil
}

var errInvalidBBOX = Error{Code: CodeInvalidParameterValue, Message: "BBOX must have at least four numeric values"}

// Dispatch runs the normalized request against db and returns the response
// body, its content type, and the HTTP status the request boundary should
// reply with (§4.G, §6, §7).
func Dispatch(ctx context.Context, db *store.DB, info ServiceInfo, req Request) (body, contentType string, status int) {
	switch req.Operation {
	case "", "GETCAPABILITIES":
		out, err := GetCapabilities(ctx, db, info)
		if err != nil {
			return errToExceptionReport(err), "application/xml", StatusForErr(err)
		}
		return out, "application/xml", http.StatusOK

	case "DESCRIBEFEATURETYPE":
		out, err := DescribeFeatureType(ctx, db, req.Typenames)
		if err != nil {
			return errToExceptionReport(err), "application/xml", StatusForErr(err)
		}
		return out, "application/xml", http.StatusOK

	case "GETFEATURE":
		fr := GetFeatureRequest{
			Typenames:   req.Typenames,
			Bbox:        req.Bbox,
			Count:       req.Count,
			StartIndex:  req.StartIndex,
			MaxFeatures: req.MaxFeatures,
		}
		format := strings.ToLower(req.OutputFormat)
		if strings.Contains(format, "json") {
			out, err := GetFeatureGeoJSON(ctx, db, fr)
			if err != nil {
				return errToExceptionReport(err), "application/xml", StatusForErr(err)
			}
			return out, "application/json", http.StatusOK
		}
		out, err := GetFeatureGML(ctx, db, fr)
		if err != nil {
			return errToExceptionReport(err), "application/xml", StatusForErr(err)
		}
		return out, "application/gml+xml; version=3.2", http.StatusOK

	case "TRANSACTION":
		out, err := ExecuteTransactionErr(ctx, db, req.Body)
		return out, "application/xml", StatusForErr(err)

	default:
		unsupported := Error{Code: CodeOperationNotSupported, Message: "Unsupported request: " + req.Operation}
		return ExceptionReport(unsupported.Code, unsupported.Message), "application/xml", StatusForErr(unsupported)
	}
}
